package memory

import (
	"context"
	"sort"
	"time"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// ObligationRepository is an in-memory repository.ObligationRepository.
type ObligationRepository struct {
	store *Store
	inTx  bool
}

func (r *ObligationRepository) Create(ctx context.Context, obligation *domain.PaymentObligation) error {
	return r.store.do(r.inTx, func(st *state) error {
		for _, o := range st.obligations {
			if o.ID == obligation.ID || o.BookingID == obligation.BookingID {
				return repository.ErrDuplicate
			}
		}
		cp := *obligation
		st.obligations[obligation.ID] = &cp
		return nil
	})
}

func (r *ObligationRepository) GetByID(ctx context.Context, id string) (*domain.PaymentObligation, error) {
	var out *domain.PaymentObligation
	err := r.store.do(r.inTx, func(st *state) error {
		o, ok := st.obligations[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *o
		out = &cp
		return nil
	})
	return out, err
}

func (r *ObligationRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.PaymentObligation, error) {
	var out *domain.PaymentObligation
	err := r.store.do(r.inTx, func(st *state) error {
		for _, o := range st.obligations {
			if o.BookingID == bookingID {
				cp := *o
				out = &cp
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *ObligationRepository) ListPendingByUser(ctx context.Context, userID string) ([]*domain.PaymentObligation, error) {
	var out []*domain.PaymentObligation
	err := r.store.do(r.inTx, func(st *state) error {
		for _, o := range st.obligations {
			if o.UserID == userID && o.Status == domain.ObligationPending {
				cp := *o
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *ObligationRepository) MarkPaid(ctx context.Context, id, reference string, at time.Time) (bool, error) {
	var ok bool
	err := r.store.do(r.inTx, func(st *state) error {
		o, found := st.obligations[id]
		if !found {
			return repository.ErrNotFound
		}
		if o.Status != domain.ObligationPending {
			return nil
		}
		o.Status = domain.ObligationPaid
		o.PaymentReference = reference
		o.PaidAt = at
		ok = true
		return nil
	})
	return ok, err
}

// PutObligation stores an obligation as-is, for seeding tests.
func (s *Store) PutObligation(obligation *domain.PaymentObligation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *obligation
	s.data.obligations[obligation.ID] = &cp
}

var _ repository.ObligationRepository = (*ObligationRepository)(nil)
