package memory

import (
	"context"
	"time"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// ChallengeRepository is an in-memory repository.ChallengeRepository.
type ChallengeRepository struct {
	store *Store
	inTx  bool
}

func (r *ChallengeRepository) Create(ctx context.Context, challenge *domain.OTPChallenge) error {
	return r.store.do(r.inTx, func(st *state) error {
		if _, ok := st.challenges[challenge.ID]; ok {
			return repository.ErrDuplicate
		}
		cp := *challenge
		st.challenges[challenge.ID] = &cp
		return nil
	})
}

func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*domain.OTPChallenge, error) {
	var out *domain.OTPChallenge
	err := r.store.do(r.inTx, func(st *state) error {
		c, ok := st.challenges[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

func (r *ChallengeRepository) RecordFailedAttempt(ctx context.Context, id string, max int) (int, bool, error) {
	var attempts int
	var ok bool
	err := r.store.do(r.inTx, func(st *state) error {
		c, found := st.challenges[id]
		if !found {
			return repository.ErrNotFound
		}
		if c.IsConsumed() || c.Attempts >= max {
			attempts = c.Attempts
			return nil
		}
		c.Attempts++
		attempts, ok = c.Attempts, true
		return nil
	})
	return attempts, ok, err
}

func (r *ChallengeRepository) Consume(ctx context.Context, id string, max int, at time.Time) (bool, error) {
	var ok bool
	err := r.store.do(r.inTx, func(st *state) error {
		c, found := st.challenges[id]
		if !found {
			return repository.ErrNotFound
		}
		if c.IsConsumed() || c.Attempts >= max {
			return nil
		}
		c.ConsumedAt = at
		ok = true
		return nil
	})
	return ok, err
}

func (r *ChallengeRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.store.do(r.inTx, func(st *state) error {
		for id, c := range st.challenges {
			if c.ExpiresAt.Before(cutoff) {
				delete(st.challenges, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

var _ repository.ChallengeRepository = (*ChallengeRepository)(nil)
