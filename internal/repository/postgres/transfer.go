package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

const transferColumns = `id, booking_id, original_provider_id, original_provider_name,
	new_provider_id, new_provider_name, new_provider_service_id, user_id, reason,
	user_message, provider_message, status, created_at, updated_at`

// TransferRepository is a PostgreSQL implementation of repository.TransferRepository.
type TransferRepository struct {
	q Querier
}

// NewTransferRepository creates a transfer repository on a connection or transaction.
func NewTransferRepository(q Querier) *TransferRepository {
	return &TransferRepository{q: q}
}

// Create persists a new transfer request. A partial unique index allows
// only one open request per booking.
func (r *TransferRepository) Create(ctx context.Context, t *domain.TransferRequest) error {
	query := `INSERT INTO transfer_requests (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.q.ExecContext(ctx, query,
		t.ID,
		t.BookingID,
		t.OriginalProviderID,
		t.OriginalProviderName,
		t.NewProviderID,
		t.NewProviderName,
		t.NewProviderServiceID,
		t.UserID,
		nullString(t.Reason),
		nullString(t.UserMessage),
		nullString(t.ProviderMessage),
		t.Status,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a transfer request by ID.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE id = $1`

	t, err := scanTransfer(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// GetOpenByBookingID returns nil if the booking has no open request.
func (r *TransferRepository) GetOpenByBookingID(ctx context.Context, bookingID string) (*domain.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests
		WHERE booking_id = $1 AND status IN ('PENDING', 'USER_APPROVED')`

	t, err := scanTransfer(r.q.QueryRowContext(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// ListByParticipant retrieves requests the actor takes part in, newest first.
func (r *TransferRepository) ListByParticipant(ctx context.Context, actorID string) ([]*domain.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests
		WHERE user_id = $1 OR original_provider_id = $1 OR new_provider_id = $1
		ORDER BY created_at DESC`
	return r.list(ctx, query, actorID)
}

// ListByBooking retrieves every request for a booking, newest first.
func (r *TransferRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests
		WHERE booking_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, bookingID)
}

func (r *TransferRepository) list(ctx context.Context, query, arg string) ([]*domain.TransferRequest, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []*domain.TransferRequest
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// UpdateStatus moves the request out of status from.
func (r *TransferRepository) UpdateStatus(ctx context.Context, t *domain.TransferRequest, from domain.TransferStatus) error {
	query := `UPDATE transfer_requests
		SET status = $1, user_message = $2, provider_message = $3, updated_at = $4
		WHERE id = $5 AND status = $6`

	result, err := r.q.ExecContext(ctx, query,
		t.Status,
		nullString(t.UserMessage),
		nullString(t.ProviderMessage),
		t.UpdatedAt,
		t.ID,
		from,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrVersionConflict
	}
	return nil
}

func scanTransfer(s scanner) (*domain.TransferRequest, error) {
	var t domain.TransferRequest
	var reason, userMessage, providerMessage sql.NullString

	err := s.Scan(
		&t.ID,
		&t.BookingID,
		&t.OriginalProviderID,
		&t.OriginalProviderName,
		&t.NewProviderID,
		&t.NewProviderName,
		&t.NewProviderServiceID,
		&t.UserID,
		&reason,
		&userMessage,
		&providerMessage,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Reason = reason.String
	t.UserMessage = userMessage.String
	t.ProviderMessage = providerMessage.String
	return &t, nil
}

var _ repository.TransferRepository = (*TransferRepository)(nil)
