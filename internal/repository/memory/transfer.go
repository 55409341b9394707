package memory

import (
	"context"
	"sort"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// TransferRepository is an in-memory repository.TransferRepository.
type TransferRepository struct {
	store *Store
	inTx  bool
}

func (r *TransferRepository) Create(ctx context.Context, transfer *domain.TransferRequest) error {
	return r.store.do(r.inTx, func(st *state) error {
		for _, t := range st.transfers {
			if t.ID == transfer.ID || (t.BookingID == transfer.BookingID && t.Status.IsOpen()) {
				return repository.ErrDuplicate
			}
		}
		cp := *transfer
		st.transfers[transfer.ID] = &cp
		return nil
	})
}

func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.TransferRequest, error) {
	var out *domain.TransferRequest
	err := r.store.do(r.inTx, func(st *state) error {
		t, ok := st.transfers[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *t
		out = &cp
		return nil
	})
	return out, err
}

func (r *TransferRepository) GetOpenByBookingID(ctx context.Context, bookingID string) (*domain.TransferRequest, error) {
	var out *domain.TransferRequest
	err := r.store.do(r.inTx, func(st *state) error {
		for _, t := range st.transfers {
			if t.BookingID == bookingID && t.Status.IsOpen() {
				cp := *t
				out = &cp
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *TransferRepository) ListByParticipant(ctx context.Context, actorID string) ([]*domain.TransferRequest, error) {
	return r.list(func(t *domain.TransferRequest) bool {
		return t.UserID == actorID || t.OriginalProviderID == actorID || t.NewProviderID == actorID
	})
}

func (r *TransferRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.TransferRequest, error) {
	return r.list(func(t *domain.TransferRequest) bool { return t.BookingID == bookingID })
}

func (r *TransferRepository) list(match func(*domain.TransferRequest) bool) ([]*domain.TransferRequest, error) {
	var out []*domain.TransferRequest
	err := r.store.do(r.inTx, func(st *state) error {
		for _, t := range st.transfers {
			if match(t) {
				cp := *t
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *TransferRepository) UpdateStatus(ctx context.Context, transfer *domain.TransferRequest, from domain.TransferStatus) error {
	return r.store.do(r.inTx, func(st *state) error {
		current, ok := st.transfers[transfer.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Status != from {
			return repository.ErrVersionConflict
		}
		current.Status = transfer.Status
		current.UserMessage = transfer.UserMessage
		current.ProviderMessage = transfer.ProviderMessage
		current.UpdatedAt = transfer.UpdatedAt
		return nil
	})
}

var _ repository.TransferRepository = (*TransferRepository)(nil)
