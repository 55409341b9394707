package repository

import (
	"context"

	"fulfillment/internal/domain"
)

// TransferRepository defines the persistence operations for transfer requests.
type TransferRepository interface {
	// Create persists a new transfer request. Returns ErrDuplicate if the
	// booking already has an open request.
	Create(ctx context.Context, transfer *domain.TransferRequest) error

	// GetByID retrieves a transfer request by ID.
	GetByID(ctx context.Context, id string) (*domain.TransferRequest, error)

	// GetOpenByBookingID retrieves the PENDING or USER_APPROVED request for
	// a booking, or nil if there is none.
	GetOpenByBookingID(ctx context.Context, bookingID string) (*domain.TransferRequest, error)

	// ListByParticipant retrieves requests where the actor is the user, the
	// original provider or the candidate provider.
	ListByParticipant(ctx context.Context, actorID string) ([]*domain.TransferRequest, error)

	// ListByBooking retrieves every request made for a booking.
	ListByBooking(ctx context.Context, bookingID string) ([]*domain.TransferRequest, error)

	// UpdateStatus writes the request's status and messages if its stored
	// status is still from. Returns ErrVersionConflict otherwise.
	UpdateStatus(ctx context.Context, transfer *domain.TransferRequest, from domain.TransferStatus) error
}
