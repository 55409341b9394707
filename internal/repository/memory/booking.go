package memory

import (
	"context"
	"sort"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// BookingRepository is an in-memory repository.BookingRepository.
type BookingRepository struct {
	store *Store
	inTx  bool
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	return r.store.do(r.inTx, func(st *state) error {
		if _, ok := st.bookings[booking.ID]; ok {
			return repository.ErrDuplicate
		}
		cp := *booking
		st.bookings[booking.ID] = &cp
		return nil
	})
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.store.do(r.inTx, func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *b
		out = &cp
		return nil
	})
	return out, err
}

// GetByIDForUpdate is GetByID; the store lock already serializes transactions.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool { return b.UserID == userID })
}

func (r *BookingRepository) ListByProvider(ctx context.Context, providerID string) ([]*domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool { return b.ProviderID == providerID })
}

func (r *BookingRepository) list(match func(*domain.Booking) bool) ([]*domain.Booking, error) {
	var out []*domain.Booking
	err := r.store.do(r.inTx, func(st *state) error {
		for _, b := range st.bookings {
			if match(b) {
				cp := *b
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	return r.store.do(r.inTx, func(st *state) error {
		current, ok := st.bookings[booking.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != booking.Version {
			return repository.ErrVersionConflict
		}
		cp := *booking
		cp.Version++
		st.bookings[booking.ID] = &cp
		booking.Version = cp.Version
		return nil
	})
}

// Put stores a booking as-is, for seeding tests.
func (s *Store) Put(booking *domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *booking
	s.data.bookings[booking.ID] = &cp
}

var _ repository.BookingRepository = (*BookingRepository)(nil)
