package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// ChallengeRepository is a PostgreSQL implementation of repository.ChallengeRepository.
// Attempt counting and consumption are single conditional statements, so
// concurrent submissions never push attempts past the limit.
type ChallengeRepository struct {
	q Querier
}

// NewChallengeRepository creates a challenge repository on a connection or transaction.
func NewChallengeRepository(q Querier) *ChallengeRepository {
	return &ChallengeRepository{q: q}
}

// Create persists a new challenge.
func (r *ChallengeRepository) Create(ctx context.Context, c *domain.OTPChallenge) error {
	query := `
		INSERT INTO otp_challenges (id, booking_id, user_id, provider_id, code, issued_at, expires_at, attempts, consumed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		c.ID,
		c.BookingID,
		c.UserID,
		c.ProviderID,
		c.Code,
		c.IssuedAt,
		c.ExpiresAt,
		c.Attempts,
		nullTime(c.ConsumedAt),
	)
	return err
}

// GetByID retrieves a challenge by ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*domain.OTPChallenge, error) {
	query := `
		SELECT id, booking_id, user_id, provider_id, code, issued_at, expires_at, attempts, consumed_at
		FROM otp_challenges WHERE id = $1
	`

	var c domain.OTPChallenge
	var consumedAt sql.NullTime
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.BookingID,
		&c.UserID,
		&c.ProviderID,
		&c.Code,
		&c.IssuedAt,
		&c.ExpiresAt,
		&c.Attempts,
		&consumedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	c.ConsumedAt = consumedAt.Time
	return &c, nil
}

// RecordFailedAttempt increments the attempt counter while it is below max.
func (r *ChallengeRepository) RecordFailedAttempt(ctx context.Context, id string, max int) (int, bool, error) {
	query := `UPDATE otp_challenges SET attempts = attempts + 1
		WHERE id = $1 AND consumed_at IS NULL AND attempts < $2
		RETURNING attempts`

	var attempts int
	err := r.q.QueryRowContext(ctx, query, id, max).Scan(&attempts)
	if err == nil {
		return attempts, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	// Nothing was incremented; report the stored counter.
	err = r.q.QueryRowContext(ctx, `SELECT attempts FROM otp_challenges WHERE id = $1`, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, repository.ErrNotFound
		}
		return 0, false, err
	}
	return attempts, false, nil
}

// Consume marks an unconsumed, unexhausted challenge as used.
func (r *ChallengeRepository) Consume(ctx context.Context, id string, max int, at time.Time) (bool, error) {
	query := `UPDATE otp_challenges SET consumed_at = $1
		WHERE id = $2 AND consumed_at IS NULL AND attempts < $3`

	result, err := r.q.ExecContext(ctx, query, at, id, max)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpiredBefore removes challenges whose expiry is older than cutoff.
func (r *ChallengeRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var _ repository.ChallengeRepository = (*ChallengeRepository)(nil)
