package repository

import (
	"context"

	"fulfillment/internal/domain"
)

// Repositories groups the aggregate repositories bound to one connection
// or transaction.
type Repositories struct {
	Bookings    BookingRepository
	Challenges  ChallengeRepository
	Obligations ObligationRepository
	Transfers   TransferRepository
	Locks       Locker
}

// Locker takes locks that last until the surrounding transaction ends.
type Locker interface {
	// LockUser serializes check-then-act sequences for one user.
	LockUser(ctx context.Context, userID string) error
}

// Transactor runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// ListingDirectory looks up provider service listings owned by the catalog.
type ListingDirectory interface {
	// GetProviderServiceByID retrieves a listing by ID.
	GetProviderServiceByID(ctx context.Context, id string) (*domain.ServiceListing, error)

	// FindActiveListing retrieves a provider's active listing for a service
	// name, or ErrNotFound.
	FindActiveListing(ctx context.Context, providerID, serviceName string) (*domain.ServiceListing, error)
}

// ProfileDirectory looks up user contact profiles.
type ProfileDirectory interface {
	// GetUserProfile retrieves a user's profile.
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}
