package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

const obligationColumns = `id, user_id, booking_id, service_name, provider_id, provider_name,
	amount, status, rating_draft, feedback_draft, payment_reference, paid_at, created_at`

// ObligationRepository is a PostgreSQL implementation of repository.ObligationRepository.
type ObligationRepository struct {
	q Querier
}

// NewObligationRepository creates an obligation repository on a connection or transaction.
func NewObligationRepository(q Querier) *ObligationRepository {
	return &ObligationRepository{q: q}
}

// Create persists a new obligation. The unique index on booking_id keeps
// it to one per booking.
func (r *ObligationRepository) Create(ctx context.Context, o *domain.PaymentObligation) error {
	query := `INSERT INTO payment_obligations (` + obligationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.q.ExecContext(ctx, query,
		o.ID,
		o.UserID,
		o.BookingID,
		o.ServiceName,
		o.ProviderID,
		o.ProviderName,
		o.Amount,
		o.Status,
		o.RatingDraft,
		nullString(o.FeedbackDraft),
		nullString(o.PaymentReference),
		nullTime(o.PaidAt),
		o.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves an obligation by ID.
func (r *ObligationRepository) GetByID(ctx context.Context, id string) (*domain.PaymentObligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM payment_obligations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByBookingID retrieves the obligation for a booking.
func (r *ObligationRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.PaymentObligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM payment_obligations WHERE booking_id = $1`
	return r.getOne(ctx, query, bookingID)
}

func (r *ObligationRepository) getOne(ctx context.Context, query, arg string) (*domain.PaymentObligation, error) {
	o, err := scanObligation(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// ListPendingByUser retrieves a user's unpaid obligations, oldest first.
func (r *ObligationRepository) ListPendingByUser(ctx context.Context, userID string) ([]*domain.PaymentObligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM payment_obligations
		WHERE user_id = $1 AND status = 'PENDING' ORDER BY created_at`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obligations []*domain.PaymentObligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, o)
	}
	return obligations, rows.Err()
}

// MarkPaid settles a pending obligation. ok is false when it was already paid.
func (r *ObligationRepository) MarkPaid(ctx context.Context, id, reference string, at time.Time) (bool, error) {
	query := `UPDATE payment_obligations SET status = 'PAID', payment_reference = $1, paid_at = $2
		WHERE id = $3 AND status = 'PENDING'`

	result, err := r.q.ExecContext(ctx, query, reference, at, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanObligation(s scanner) (*domain.PaymentObligation, error) {
	var o domain.PaymentObligation
	var feedback, reference sql.NullString
	var paidAt sql.NullTime

	err := s.Scan(
		&o.ID,
		&o.UserID,
		&o.BookingID,
		&o.ServiceName,
		&o.ProviderID,
		&o.ProviderName,
		&o.Amount,
		&o.Status,
		&o.RatingDraft,
		&feedback,
		&reference,
		&paidAt,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.FeedbackDraft = feedback.String
	o.PaymentReference = reference.String
	o.PaidAt = paidAt.Time
	return &o, nil
}

var _ repository.ObligationRepository = (*ObligationRepository)(nil)
