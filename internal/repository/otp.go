package repository

import (
	"context"
	"time"

	"fulfillment/internal/domain"
)

// ChallengeRepository defines the persistence operations for OTP challenges.
type ChallengeRepository interface {
	// Create persists a new challenge.
	Create(ctx context.Context, challenge *domain.OTPChallenge) error

	// GetByID retrieves a challenge by ID.
	GetByID(ctx context.Context, id string) (*domain.OTPChallenge, error)

	// RecordFailedAttempt atomically increments the attempt counter of an
	// unconsumed challenge whose counter is still below max. It returns the
	// new counter, or ok=false when no increment happened.
	RecordFailedAttempt(ctx context.Context, id string, max int) (attempts int, ok bool, err error)

	// Consume atomically marks an unconsumed challenge with fewer than max
	// attempts as consumed. ok=false means another caller got there first or
	// the challenge is exhausted.
	Consume(ctx context.Context, id string, max int, at time.Time) (ok bool, err error)

	// DeleteExpiredBefore removes challenges that expired before cutoff and
	// returns how many were removed.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
