package repository

import (
	"context"

	"fulfillment/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByIDForUpdate retrieves a booking and locks it until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error)

	// ListByUser retrieves a user's bookings, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error)

	// ListByProvider retrieves a provider's bookings, newest first.
	ListByProvider(ctx context.Context, providerID string) ([]*domain.Booking, error)

	// Update writes the booking if its stored version still equals
	// booking.Version and bumps the version. Returns ErrVersionConflict
	// otherwise.
	Update(ctx context.Context, booking *domain.Booking) error
}
