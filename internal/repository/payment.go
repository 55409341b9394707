package repository

import (
	"context"
	"time"

	"fulfillment/internal/domain"
)

// ObligationRepository defines the persistence operations for payment obligations.
type ObligationRepository interface {
	// Create persists a new obligation. Returns ErrDuplicate if the booking
	// already has one.
	Create(ctx context.Context, obligation *domain.PaymentObligation) error

	// GetByID retrieves an obligation by ID.
	GetByID(ctx context.Context, id string) (*domain.PaymentObligation, error)

	// GetByBookingID retrieves the obligation for a booking.
	GetByBookingID(ctx context.Context, bookingID string) (*domain.PaymentObligation, error)

	// ListPendingByUser retrieves a user's unpaid obligations.
	ListPendingByUser(ctx context.Context, userID string) ([]*domain.PaymentObligation, error)

	// MarkPaid flips a PENDING obligation to PAID. ok=false means it was
	// not pending any more.
	MarkPaid(ctx context.Context, id, reference string, at time.Time) (ok bool, err error)
}
