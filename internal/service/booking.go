package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment/internal/availability"
	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// BookingService owns the booking lifecycle: admission, the provider's
// decision, OTP-gated start and completion.
type BookingService struct {
	store               Store
	rules               Rules
	otpService          *OTPService
	paymentGate         *PaymentGate
	notificationService *NotificationService
	receiptService      *ReceiptService
	metrics             *Metrics
	logger              *zap.Logger

	now func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	store Store,
	rules Rules,
	otpService *OTPService,
	paymentGate *PaymentGate,
	notificationService *NotificationService,
	receiptService *ReceiptService,
	metrics *Metrics,
	logger *zap.Logger,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		store:               store,
		rules:               rules.withDefaults(),
		otpService:          otpService,
		paymentGate:         paymentGate,
		notificationService: notificationService,
		receiptService:      receiptService,
		metrics:             metrics,
		logger:              logger,
		now:                 time.Now,
	}
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	UserID            string
	ProviderServiceID string
	ServiceDateTime   time.Time
	Note              string
}

// Create admits a booking request after the payment-gate, profile and
// availability checks. The payment gate runs first so an indebted user always
// gets the outstanding obligations back, and again under a per-user lock in
// the same transaction as the insert.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	booking, err := s.create(ctx, req)
	s.metrics.bookingCreated(err)
	return booking, err
}

func (s *BookingService) create(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if req.UserID == "" {
		return nil, newError(ErrValidation, "user id is required")
	}

	pending, err := s.store.Repos.Obligations.ListPendingByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("list outstanding obligations: %w", err)
	}
	if len(pending) > 0 {
		return nil, outstandingPaymentError(pending)
	}

	if req.ProviderServiceID == "" {
		return nil, newError(ErrValidation, "provider service id is required")
	}
	if req.ServiceDateTime.IsZero() {
		return nil, newError(ErrValidation, "service date-time is required")
	}

	listing, err := s.store.Listings.GetProviderServiceByID(ctx, req.ProviderServiceID)
	if err != nil {
		return nil, storeErr(err, "service listing", req.ProviderServiceID)
	}
	if !listing.Active {
		return nil, newError(ErrNotFound, "service listing %s is not available", listing.ID)
	}
	if listing.ProviderID == req.UserID {
		return nil, newError(ErrValidation, "providers cannot book their own service")
	}

	now := s.now()
	window := availability.Window{Days: listing.AllowedDays, Hours: listing.AllowedHours}
	result := availability.ValidateWithLeadTime(window, req.ServiceDateTime.In(s.rules.Location), now, s.rules.LeadTime)
	if !result.Valid {
		e := newError(ErrAvailabilityViolation, "%s", result.Reason)
		e.Availability = &result
		return nil, e
	}

	profile, err := s.store.Profiles.GetUserProfile(ctx, req.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	if profile == nil || !profile.IsComplete() {
		return nil, newError(ErrIncompleteProfile, "add a phone number and address to your profile before booking")
	}

	booking := &domain.Booking{
		ID:                uuid.New().String(),
		UserID:            req.UserID,
		UserName:          profile.Name,
		UserEmail:         profile.Email,
		ContactPhone:      profile.Phone,
		Address:           profile.Address,
		ProviderID:        listing.ProviderID,
		ProviderName:      listing.ProviderName,
		ProviderServiceID: listing.ID,
		ServiceName:       listing.ServiceName,
		ServiceDateTime:   req.ServiceDateTime,
		Note:              strings.TrimSpace(req.Note),
		Approval:          domain.ApprovalPending,
		Fulfillment:       domain.FulfillmentNotStarted,
		PriceAmount:       listing.PriceAmount,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockUser(ctx, req.UserID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		pending, err := repos.Obligations.ListPendingByUser(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("list outstanding obligations: %w", err)
		}
		if len(pending) > 0 {
			return outstandingPaymentError(pending)
		}
		if err := repos.Bookings.Create(ctx, booking); err != nil {
			return storeErr(err, "booking", booking.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("provider_id", booking.ProviderID),
		zap.String("service", booking.ServiceName),
	)
	s.notificationService.NotifyBookingCreated(ctx, booking)
	return booking, nil
}

func outstandingPaymentError(pending []*domain.PaymentObligation) *Error {
	e := newError(ErrOutstandingPayment, "you have %d unpaid booking(s), settle them before booking again", len(pending))
	e.Outstanding = pending
	return e
}

// Get returns a booking visible to its user or its current provider.
func (s *BookingService) Get(ctx context.Context, bookingID, actorID string) (*domain.Booking, error) {
	booking, err := s.store.Repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "booking", bookingID)
	}
	if booking.UserID != actorID && booking.ProviderID != actorID {
		return nil, newError(ErrNotFound, "booking %s not found", bookingID)
	}
	return booking, nil
}

// ListForUser returns the user's bookings, newest first.
func (s *BookingService) ListForUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	bookings, err := s.store.Repos.Bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for user: %w", err)
	}
	return bookings, nil
}

// ListForProvider returns the provider's bookings, newest first.
func (s *BookingService) ListForProvider(ctx context.Context, providerID string) ([]*domain.Booking, error) {
	bookings, err := s.store.Repos.Bookings.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for provider: %w", err)
	}
	return bookings, nil
}

// Decide records the provider's accept or reject. The decision is made once.
func (s *BookingService) Decide(ctx context.Context, bookingID, providerID string, accept bool, message string) (*domain.Booking, error) {
	var booking *domain.Booking
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := s.providerBooking(ctx, repos, bookingID, providerID)
		if err != nil {
			return err
		}
		if !b.Decide(accept, strings.TrimSpace(message), s.now()) {
			return newError(ErrInvalidState, "booking %s was already %s", b.ID, strings.ToLower(string(b.Approval)))
		}
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return storeErr(err, "booking", bookingID)
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking decided",
		zap.String("booking_id", booking.ID),
		zap.String("approval", string(booking.Approval)),
	)
	s.notificationService.NotifyBookingDecided(ctx, booking)
	return booking, nil
}

// RequestServiceStart issues a start code for an accepted booking.
func (s *BookingService) RequestServiceStart(ctx context.Context, bookingID, providerID string) (*domain.OTPChallenge, error) {
	return s.otpService.Issue(ctx, bookingID, providerID)
}

// ConfirmServiceStart validates the code the user disclosed and moves the
// booking to IN_PROGRESS.
func (s *BookingService) ConfirmServiceStart(ctx context.Context, bookingID, providerID, code string) (*domain.Booking, error) {
	return s.otpService.Validate(ctx, bookingID, strings.TrimSpace(code), providerID)
}

// CompletionResult is the outcome of a stop or completion request.
type CompletionResult struct {
	Booking *domain.Booking
	// PaymentRequired is true when the booking completes only after the
	// obligation is settled.
	PaymentRequired bool
	Obligation      *domain.PaymentObligation
	Receipt         *domain.Receipt
}

// RequestServiceStop ends an in-progress service. Free bookings complete
// immediately; paid bookings wait for the user to settle.
func (s *BookingService) RequestServiceStop(ctx context.Context, bookingID, providerID string) (*CompletionResult, error) {
	booking, err := s.Get(ctx, bookingID, providerID)
	if err != nil {
		return nil, err
	}
	if booking.ProviderID != providerID {
		return nil, newError(ErrNotFound, "booking %s not found", bookingID)
	}
	if booking.Approval != domain.ApprovalAccepted || booking.Fulfillment != domain.FulfillmentInProgress {
		return nil, newError(ErrInvalidState, "only an in-progress service can be stopped (fulfillment %s)", booking.Fulfillment)
	}
	if booking.RequiresPayment() {
		return &CompletionResult{Booking: booking, PaymentRequired: true}, nil
	}
	return s.completeFree(ctx, bookingID, 0, "")
}

// InitiateCompletionRequest contains the parameters for completing a booking.
type InitiateCompletionRequest struct {
	BookingID string
	UserID    string
	Rating    int // 1-5, 0 when not rated
	Feedback  string
}

// InitiateCompletion is the user's side of completion. For a paid booking
// it creates (or returns) the payment obligation the user must settle; a
// free booking completes immediately.
func (s *BookingService) InitiateCompletion(ctx context.Context, req InitiateCompletionRequest) (*CompletionResult, error) {
	if err := validateRating(req.Rating); err != nil {
		return nil, err
	}
	booking, err := s.store.Repos.Bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, storeErr(err, "booking", req.BookingID)
	}
	if booking.UserID != req.UserID {
		return nil, newError(ErrNotFound, "booking %s not found", req.BookingID)
	}
	if booking.Fulfillment != domain.FulfillmentInProgress {
		return nil, newError(ErrInvalidState, "only an in-progress service can be completed (fulfillment %s)", booking.Fulfillment)
	}

	if !booking.RequiresPayment() {
		return s.completeFree(ctx, booking.ID, req.Rating, strings.TrimSpace(req.Feedback))
	}

	obligation, err := s.paymentGate.Create(ctx, CreateObligationRequest{
		UserID:        req.UserID,
		BookingID:     booking.ID,
		Amount:        booking.PriceAmount,
		RatingDraft:   req.Rating,
		FeedbackDraft: req.Feedback,
	})
	if err != nil {
		return nil, err
	}
	if obligation.Status == domain.ObligationPending {
		s.notificationService.NotifyPaymentRequired(ctx, booking, obligation)
	}
	return &CompletionResult{Booking: booking, PaymentRequired: obligation.Status == domain.ObligationPending, Obligation: obligation}, nil
}

func (s *BookingService) completeFree(ctx context.Context, bookingID string, rating int, feedback string) (*CompletionResult, error) {
	var booking *domain.Booking
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := finalizeCompletion(ctx, repos, bookingID, rating, feedback, s.now())
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking completed", zap.String("booking_id", booking.ID))
	s.notificationService.NotifyServiceCompleted(ctx, booking)

	result := &CompletionResult{Booking: booking}
	if s.receiptService != nil {
		receipt, err := s.receiptService.GenerateReceipt(ctx, booking, nil)
		if err != nil {
			s.logger.Warn("receipt generation failed", zap.String("booking_id", booking.ID), zap.Error(err))
		}
		result.Receipt = receipt
	}
	return result, nil
}

func (s *BookingService) providerBooking(ctx context.Context, repos repository.Repositories, bookingID, providerID string) (*domain.Booking, error) {
	b, err := repos.Bookings.GetByIDForUpdate(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "booking", bookingID)
	}
	if b.ProviderID != providerID {
		return nil, newError(ErrNotFound, "booking %s not found", bookingID)
	}
	return b, nil
}
