package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

const bookingColumns = `id, user_id, user_name, user_email, contact_phone, address,
	provider_id, provider_name, provider_service_id, service_name,
	service_date_time, note, approval_status, decision_message, decided_at,
	fulfillment_status, started_at, completed_at, active_challenge_id,
	price_amount, rating, feedback, version, created_at, updated_at`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a booking repository on a connection or transaction.
func NewBookingRepository(q Querier) *BookingRepository {
	return &BookingRepository{q: q}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	_, err := r.q.ExecContext(ctx, query,
		b.ID,
		b.UserID,
		b.UserName,
		b.UserEmail,
		b.ContactPhone,
		b.Address,
		b.ProviderID,
		b.ProviderName,
		b.ProviderServiceID,
		b.ServiceName,
		b.ServiceDateTime,
		nullString(b.Note),
		b.Approval,
		nullString(b.DecisionMessage),
		nullTime(b.DecidedAt),
		b.Fulfillment,
		nullTime(b.StartedAt),
		nullTime(b.CompletedAt),
		nullString(b.ActiveChallengeID),
		b.PriceAmount,
		b.Rating,
		nullString(b.Feedback),
		b.Version,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a booking and holds a row lock on it until
// the surrounding transaction ends.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *BookingRepository) getOne(ctx context.Context, query, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListByUser retrieves a user's bookings, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// ListByProvider retrieves a provider's bookings, newest first.
func (r *BookingRepository) ListByProvider(ctx context.Context, providerID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE provider_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, providerID)
}

func (r *BookingRepository) list(ctx context.Context, query string, arg string) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// Update writes every mutable field if the stored version still matches
// and bumps the version on success.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	query := `
		UPDATE bookings
		SET provider_id = $1, provider_name = $2, provider_service_id = $3,
			approval_status = $4, decision_message = $5, decided_at = $6,
			fulfillment_status = $7, started_at = $8, completed_at = $9,
			active_challenge_id = $10, rating = $11, feedback = $12,
			updated_at = $13, version = version + 1
		WHERE id = $14 AND version = $15
		RETURNING version
	`

	var version int64
	err := r.q.QueryRowContext(ctx, query,
		b.ProviderID,
		b.ProviderName,
		b.ProviderServiceID,
		b.Approval,
		nullString(b.DecisionMessage),
		nullTime(b.DecidedAt),
		b.Fulfillment,
		nullTime(b.StartedAt),
		nullTime(b.CompletedAt),
		nullString(b.ActiveChallengeID),
		b.Rating,
		nullString(b.Feedback),
		b.UpdatedAt,
		b.ID,
		b.Version,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrVersionConflict
		}
		return err
	}

	b.Version = version
	return nil
}

func scanBooking(s scanner) (*domain.Booking, error) {
	var b domain.Booking
	var note, decisionMessage, activeChallengeID, feedback sql.NullString
	var decidedAt, startedAt, completedAt sql.NullTime

	err := s.Scan(
		&b.ID,
		&b.UserID,
		&b.UserName,
		&b.UserEmail,
		&b.ContactPhone,
		&b.Address,
		&b.ProviderID,
		&b.ProviderName,
		&b.ProviderServiceID,
		&b.ServiceName,
		&b.ServiceDateTime,
		&note,
		&b.Approval,
		&decisionMessage,
		&decidedAt,
		&b.Fulfillment,
		&startedAt,
		&completedAt,
		&activeChallengeID,
		&b.PriceAmount,
		&b.Rating,
		&feedback,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Note = note.String
	b.DecisionMessage = decisionMessage.String
	b.ActiveChallengeID = activeChallengeID.String
	b.Feedback = feedback.String
	b.DecidedAt = decidedAt.Time
	b.StartedAt = startedAt.Time
	b.CompletedAt = completedAt.Time
	return &b, nil
}

var _ repository.BookingRepository = (*BookingRepository)(nil)
