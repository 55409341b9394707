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

// TransferService coordinates handing an unstarted booking to another
// provider with the consent of the user and the new provider.
type TransferService struct {
	store               Store
	notificationService *NotificationService
	metrics             *Metrics
	logger              *zap.Logger

	now func() time.Time
}

// NewTransferService creates a new TransferService.
func NewTransferService(store Store, notificationService *NotificationService, metrics *Metrics, logger *zap.Logger) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		store:               store,
		notificationService: notificationService,
		metrics:             metrics,
		logger:              logger,
		now:                 time.Now,
	}
}

// CreateTransferRequest contains the parameters for proposing a transfer.
type CreateTransferRequest struct {
	BookingID     string
	ProviderID    string // acting (original) provider
	NewProviderID string
	Reason        string
}

// Create proposes moving the booking to another provider who offers the
// same service. Only the booking's current provider may do this, and only
// before the service has started.
func (s *TransferService) Create(ctx context.Context, req CreateTransferRequest) (*domain.TransferRequest, error) {
	if req.NewProviderID == "" {
		return nil, newError(ErrValidation, "new provider id is required")
	}

	booking, err := s.store.Repos.Bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, storeErr(err, "booking", req.BookingID)
	}
	if err := transferable(booking, req.ProviderID); err != nil {
		return nil, err
	}
	if req.NewProviderID == booking.ProviderID {
		return nil, newError(ErrValidation, "the new provider must differ from the current provider")
	}

	listing, err := s.store.Listings.FindActiveListing(ctx, req.NewProviderID, booking.ServiceName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrNotFound, "provider %s does not offer %s", req.NewProviderID, booking.ServiceName)
	}
	if err != nil {
		return nil, fmt.Errorf("find listing: %w", err)
	}

	now := s.now()
	transfer := &domain.TransferRequest{
		ID:                   uuid.New().String(),
		BookingID:            booking.ID,
		OriginalProviderID:   booking.ProviderID,
		OriginalProviderName: booking.ProviderName,
		NewProviderID:        listing.ProviderID,
		NewProviderName:      listing.ProviderName,
		NewProviderServiceID: listing.ID,
		UserID:               booking.UserID,
		Reason:               strings.TrimSpace(req.Reason),
		Status:               domain.TransferPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := repos.Bookings.GetByIDForUpdate(ctx, booking.ID)
		if err != nil {
			return storeErr(err, "booking", booking.ID)
		}
		if err := transferable(b, req.ProviderID); err != nil {
			return err
		}
		open, err := repos.Transfers.GetOpenByBookingID(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("get open transfer: %w", err)
		}
		if open != nil {
			return newError(ErrInvalidState, "booking %s already has an open transfer request", b.ID)
		}
		if err := repos.Transfers.Create(ctx, transfer); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return newError(ErrInvalidState, "booking %s already has an open transfer request", b.ID)
			}
			return storeErr(err, "transfer request", transfer.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer requested",
		zap.String("transfer_id", transfer.ID),
		zap.String("booking_id", transfer.BookingID),
		zap.String("new_provider_id", transfer.NewProviderID),
	)
	s.metrics.transferTransition(string(transfer.Status))
	s.notificationService.NotifyTransferRequested(ctx, transfer)
	return transfer, nil
}

func transferable(b *domain.Booking, providerID string) error {
	if b.ProviderID != providerID {
		return newError(ErrUnauthorized, "only the booking's current provider can request a transfer")
	}
	if b.Fulfillment != domain.FulfillmentNotStarted {
		return newError(ErrInvalidState, "a booking can only be transferred before the service starts (fulfillment %s)", b.Fulfillment)
	}
	if b.Approval == domain.ApprovalRejected {
		return newError(ErrInvalidState, "a rejected booking cannot be transferred")
	}
	return nil
}

// UserDecision records the booking user's approve or reject.
func (s *TransferService) UserDecision(ctx context.Context, transferID, userID string, approve bool, message string) (*domain.TransferRequest, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.UserID != userID {
		return nil, newError(ErrUnauthorized, "only the booking's user can approve this transfer")
	}
	if transfer.Status != domain.TransferPending {
		return nil, newError(ErrInvalidState, "transfer is %s, not awaiting the user", transfer.Status)
	}

	target := domain.TransferUserRejected
	if approve {
		target = domain.TransferUserApproved
	}
	transfer.UserMessage = strings.TrimSpace(message)
	if err := s.transition(ctx, s.store.Repos, transfer, target); err != nil {
		return nil, err
	}

	s.metrics.transferTransition(string(transfer.Status))
	s.notificationService.NotifyTransferUserDecided(ctx, transfer)
	return transfer, nil
}

// ProviderDecisionResult is the outcome of the new provider's decision.
type ProviderDecisionResult struct {
	Transfer *domain.TransferRequest
	// Booking is set when the transfer was accepted.
	Booking *domain.Booking
}

// ProviderDecision records the candidate provider's accept or reject. On
// accept the booking is reassigned in the same transaction as the status
// change.
func (s *TransferService) ProviderDecision(ctx context.Context, transferID, providerID string, accept bool, message string) (*ProviderDecisionResult, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.NewProviderID != providerID {
		return nil, newError(ErrUnauthorized, "only the proposed provider can accept this transfer")
	}
	if transfer.Status != domain.TransferUserApproved {
		return nil, newError(ErrInvalidState, "transfer is %s, not awaiting the provider", transfer.Status)
	}
	transfer.ProviderMessage = strings.TrimSpace(message)

	if !accept {
		if err := s.transition(ctx, s.store.Repos, transfer, domain.TransferProviderRejected); err != nil {
			return nil, err
		}
		s.metrics.transferTransition(string(transfer.Status))
		s.notificationService.NotifyTransferProviderDecided(ctx, transfer)
		return &ProviderDecisionResult{Transfer: transfer}, nil
	}

	var booking *domain.Booking
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := s.transition(ctx, repos, transfer, domain.TransferProviderAccepted); err != nil {
			return err
		}
		b, err := repos.Bookings.GetByIDForUpdate(ctx, transfer.BookingID)
		if err != nil {
			return storeErr(err, "booking", transfer.BookingID)
		}
		if b.ProviderID != transfer.OriginalProviderID {
			return newError(ErrInvalidState, "booking %s is no longer assigned to %s", b.ID, transfer.OriginalProviderName)
		}
		if b.Fulfillment != domain.FulfillmentNotStarted {
			return newError(ErrInvalidState, "booking %s has already started", b.ID)
		}
		b.ReassignProvider(transfer.NewProviderID, transfer.NewProviderName, transfer.NewProviderServiceID, transfer.UpdatedAt)
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return storeErr(err, "booking", b.ID)
		}
		booking = b
		return nil
	})
	if err != nil {
		transfer.Status = domain.TransferUserApproved
		return nil, err
	}

	s.logger.Info("booking transferred",
		zap.String("transfer_id", transfer.ID),
		zap.String("booking_id", booking.ID),
		zap.String("provider_id", booking.ProviderID),
	)
	s.metrics.transferTransition(string(transfer.Status))
	s.notificationService.NotifyTransferProviderDecided(ctx, transfer)
	return &ProviderDecisionResult{Transfer: transfer, Booking: booking}, nil
}

// Cancel withdraws an open transfer. Only the original provider may cancel.
func (s *TransferService) Cancel(ctx context.Context, transferID, providerID string) (*domain.TransferRequest, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.OriginalProviderID != providerID {
		return nil, newError(ErrUnauthorized, "only the provider who requested the transfer can cancel it")
	}
	if !transfer.Status.IsOpen() {
		return nil, newError(ErrInvalidState, "transfer is %s and can no longer be cancelled", transfer.Status)
	}

	previous := transfer.Status
	if err := s.transition(ctx, s.store.Repos, transfer, domain.TransferCancelled); err != nil {
		return nil, err
	}
	s.metrics.transferTransition(string(transfer.Status))
	s.notificationService.NotifyTransferCancelled(ctx, transfer, previous)
	return transfer, nil
}

// ListForActor returns the transfers the actor takes part in.
func (s *TransferService) ListForActor(ctx context.Context, actorID string) ([]*domain.TransferRequest, error) {
	transfers, err := s.store.Repos.Transfers.ListByParticipant(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}

// ListForBooking returns every transfer of a booking to its user or current provider.
func (s *TransferService) ListForBooking(ctx context.Context, bookingID, actorID string) ([]*domain.TransferRequest, error) {
	booking, err := s.store.Repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "booking", bookingID)
	}
	if booking.UserID != actorID && booking.ProviderID != actorID {
		return nil, newError(ErrNotFound, "booking %s not found", bookingID)
	}
	transfers, err := s.store.Repos.Transfers.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}

func (s *TransferService) load(ctx context.Context, transferID string) (*domain.TransferRequest, error) {
	transfer, err := s.store.Repos.Transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, storeErr(err, "transfer request", transferID)
	}
	return transfer, nil
}

// transition moves transfer to target with a compare-and-set on its
// current status. On failure transfer keeps its previous status.
func (s *TransferService) transition(ctx context.Context, repos repository.Repositories, transfer *domain.TransferRequest, target domain.TransferStatus) error {
	from := transfer.Status
	if !from.CanTransitionTo(target) {
		return newError(ErrInvalidState, "transfer cannot move from %s to %s", from, target)
	}
	transfer.Status = target
	transfer.UpdatedAt = s.now()
	if err := repos.Transfers.UpdateStatus(ctx, transfer, from); err != nil {
		transfer.Status = from
		return storeErr(err, "transfer request", transfer.ID)
	}
	return nil
}
