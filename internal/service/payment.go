package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// PaymentVerifier confirms an out-of-band payment with the gateway.
type PaymentVerifier interface {
	VerifyExternalPayment(ctx context.Context, reference string) (bool, error)
}

// MockPaymentVerifier is a PaymentVerifier for local runs and tests.
type MockPaymentVerifier struct {
	// Reject lists references that fail verification. Everything else passes.
	Reject map[string]bool
}

// NewMockPaymentVerifier creates a new mock verifier.
func NewMockPaymentVerifier() *MockPaymentVerifier {
	return &MockPaymentVerifier{Reject: map[string]bool{}}
}

// VerifyExternalPayment accepts any reference not listed in Reject.
func (v *MockPaymentVerifier) VerifyExternalPayment(ctx context.Context, reference string) (bool, error) {
	return !v.Reject[reference], nil
}

// PaymentGate tracks what users owe and is the only path that completes a
// paid booking.
type PaymentGate struct {
	store               Store
	verifier            PaymentVerifier
	notificationService *NotificationService
	receiptService      *ReceiptService
	metrics             *Metrics
	logger              *zap.Logger

	now func() time.Time
}

// NewPaymentGate creates a new PaymentGate.
func NewPaymentGate(
	store Store,
	verifier PaymentVerifier,
	notificationService *NotificationService,
	receiptService *ReceiptService,
	metrics *Metrics,
	logger *zap.Logger,
) *PaymentGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentGate{
		store:               store,
		verifier:            verifier,
		notificationService: notificationService,
		receiptService:      receiptService,
		metrics:             metrics,
		logger:              logger,
		now:                 time.Now,
	}
}

// HasOutstanding reports whether the user has any unpaid obligation.
func (g *PaymentGate) HasOutstanding(ctx context.Context, userID string) (bool, error) {
	pending, err := g.ListOutstanding(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(pending) > 0, nil
}

// ListOutstanding returns the user's unpaid obligations, oldest first.
func (g *PaymentGate) ListOutstanding(ctx context.Context, userID string) ([]*domain.PaymentObligation, error) {
	pending, err := g.store.Repos.Obligations.ListPendingByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list outstanding obligations: %w", err)
	}
	return pending, nil
}

// CreateObligationRequest contains the parameters for creating an obligation.
type CreateObligationRequest struct {
	UserID        string
	BookingID     string
	Amount        float64
	RatingDraft   int
	FeedbackDraft string
}

// Create records what the user owes for an in-progress booking. A booking
// has at most one obligation; asking again returns the existing one.
func (g *PaymentGate) Create(ctx context.Context, req CreateObligationRequest) (*domain.PaymentObligation, error) {
	if req.Amount <= 0 {
		return nil, newError(ErrValidation, "amount must be positive")
	}
	if err := validateRating(req.RatingDraft); err != nil {
		return nil, err
	}

	var obligation *domain.PaymentObligation
	err := g.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		booking, err := repos.Bookings.GetByIDForUpdate(ctx, req.BookingID)
		if err != nil {
			return storeErr(err, "booking", req.BookingID)
		}
		if booking.UserID != req.UserID {
			return newError(ErrNotFound, "booking %s not found", req.BookingID)
		}

		existing, err := repos.Obligations.GetByBookingID(ctx, booking.ID)
		if err == nil {
			obligation = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return storeErr(err, "payment obligation", booking.ID)
		}

		if booking.Fulfillment != domain.FulfillmentInProgress {
			return newError(ErrInvalidState, "payment can only be requested while the service is in progress (fulfillment %s)", booking.Fulfillment)
		}

		o := &domain.PaymentObligation{
			ID:            uuid.New().String(),
			UserID:        booking.UserID,
			BookingID:     booking.ID,
			ServiceName:   booking.ServiceName,
			ProviderID:    booking.ProviderID,
			ProviderName:  booking.ProviderName,
			Amount:        req.Amount,
			Status:        domain.ObligationPending,
			RatingDraft:   req.RatingDraft,
			FeedbackDraft: strings.TrimSpace(req.FeedbackDraft),
			CreatedAt:     g.now(),
		}
		if err := repos.Obligations.Create(ctx, o); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return newError(ErrInvalidState, "booking %s already has a payment obligation", booking.ID)
			}
			return storeErr(err, "payment obligation", o.ID)
		}
		obligation = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obligation, nil
}

// SettlementResult is the outcome of a settlement.
type SettlementResult struct {
	Obligation *domain.PaymentObligation
	Booking    *domain.Booking
	Receipt    *domain.Receipt
	// AlreadySettled is true when the obligation was paid before this call.
	AlreadySettled bool
}

// Settle verifies the external payment, marks the obligation paid and
// completes the booking in one transaction. Settling a paid obligation is a
// no-op success.
func (g *PaymentGate) Settle(ctx context.Context, obligationID, userID, reference string) (*SettlementResult, error) {
	res, err := g.settle(ctx, obligationID, userID, reference)
	g.metrics.settled(err)
	return res, err
}

func (g *PaymentGate) settle(ctx context.Context, obligationID, userID, reference string) (*SettlementResult, error) {
	obligation, err := g.store.Repos.Obligations.GetByID(ctx, obligationID)
	if err != nil {
		return nil, storeErr(err, "payment obligation", obligationID)
	}
	if obligation.UserID != userID {
		return nil, newError(ErrNotFound, "payment obligation %s not found", obligationID)
	}
	if obligation.Status == domain.ObligationPaid {
		return g.alreadySettled(ctx, obligation)
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, newError(ErrValidation, "payment reference is required")
	}

	ok, err := g.verifier.VerifyExternalPayment(ctx, reference)
	if err != nil {
		g.logger.Warn("payment verification error",
			zap.String("obligation_id", obligationID),
			zap.Error(err),
		)
		ok = false
	}
	if !ok {
		return nil, newError(ErrPaymentVerificationFailed, "payment %s could not be verified, the obligation is still pending", reference)
	}

	now := g.now()
	var booking *domain.Booking
	transitioned := false
	err = g.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		paid, err := repos.Obligations.MarkPaid(ctx, obligation.ID, reference, now)
		if err != nil {
			return storeErr(err, "payment obligation", obligation.ID)
		}
		if !paid {
			return nil
		}
		b, err := finalizeCompletion(ctx, repos, obligation.BookingID, obligation.RatingDraft, obligation.FeedbackDraft, now)
		if err != nil {
			return err
		}
		booking, transitioned = b, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !transitioned {
		fresh, err := g.store.Repos.Obligations.GetByID(ctx, obligation.ID)
		if err != nil {
			return nil, storeErr(err, "payment obligation", obligation.ID)
		}
		return g.alreadySettled(ctx, fresh)
	}

	obligation.Status = domain.ObligationPaid
	obligation.PaymentReference = reference
	obligation.PaidAt = now

	g.logger.Info("payment settled",
		zap.String("obligation_id", obligation.ID),
		zap.String("booking_id", obligation.BookingID),
		zap.Float64("amount", obligation.Amount),
	)
	g.notificationService.NotifyPaymentSettled(ctx, obligation)
	g.notificationService.NotifyServiceCompleted(ctx, booking)

	result := &SettlementResult{Obligation: obligation, Booking: booking}
	if g.receiptService != nil {
		receipt, err := g.receiptService.GenerateReceipt(ctx, booking, obligation)
		if err != nil {
			g.logger.Warn("receipt generation failed", zap.String("booking_id", booking.ID), zap.Error(err))
		}
		result.Receipt = receipt
	}
	return result, nil
}

func (g *PaymentGate) alreadySettled(ctx context.Context, obligation *domain.PaymentObligation) (*SettlementResult, error) {
	booking, err := g.store.Repos.Bookings.GetByID(ctx, obligation.BookingID)
	if err != nil {
		return nil, storeErr(err, "booking", obligation.BookingID)
	}
	return &SettlementResult{Obligation: obligation, Booking: booking, AlreadySettled: true}, nil
}

func validateRating(rating int) error {
	if rating < 0 || rating > 5 {
		return newError(ErrValidation, "rating must be between 1 and 5")
	}
	return nil
}
