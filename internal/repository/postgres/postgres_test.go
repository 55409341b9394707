package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var at = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

func TestBookingUpdate_BumpsVersion(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), domain.ApprovalAccepted,
			sqlmock.AnyArg(), sqlmock.AnyArg(), domain.FulfillmentNotStarted, sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), 0, sqlmock.AnyArg(), at, "b1", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))

	b := &domain.Booking{ID: "b1", Approval: domain.ApprovalAccepted, Fulfillment: domain.FulfillmentNotStarted, Version: 3, UpdatedAt: at}
	require.NoError(t, repo.Update(context.Background(), b))
	assert.Equal(t, int64(4), b.Version)
}

func TestBookingUpdate_StaleVersion(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	b := &domain.Booking{ID: "b1", Version: 3}
	assert.ErrorIs(t, repo.Update(context.Background(), b), repository.ErrVersionConflict)
	assert.Equal(t, int64(3), b.Version)
}

func TestBookingGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)

	columns := []string{"id", "user_id", "user_name", "user_email", "contact_phone", "address",
		"provider_id", "provider_name", "provider_service_id", "service_name",
		"service_date_time", "note", "approval_status", "decision_message", "decided_at",
		"fulfillment_status", "started_at", "completed_at", "active_challenge_id",
		"price_amount", "rating", "feedback", "version", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = $1 FOR UPDATE")).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"b1", "u1", "Kiran", "kiran@example.com", "+91 98765 43210", "12 MG Road",
			"p1", "Asha", "svc-p1", "Plumbing",
			at, nil, "ACCEPTED", nil, at,
			"NOT_STARTED", nil, nil, "c1",
			500.0, 0, nil, int64(2), at, at,
		))

	b, err := repo.GetByIDForUpdate(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalAccepted, b.Approval)
	assert.Equal(t, "c1", b.ActiveChallengeID)
	assert.Empty(t, b.Note)
	assert.True(t, b.StartedAt.IsZero())
	assert.Equal(t, 500.0, b.PriceAmount)

	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordFailedAttempt(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE otp_challenges SET attempts = attempts + 1")).
		WithArgs("c1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))

	attempts, ok, err := repo.RecordFailedAttempt(ctx, "c1", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, attempts)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE otp_challenges SET attempts = attempts + 1")).
		WithArgs("c1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT attempts FROM otp_challenges")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))

	attempts, ok, err = repo.RecordFailedAttempt(ctx, "c1", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, attempts)
}

func TestConsumeAndSweep(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE otp_challenges SET consumed_at = $1")).
		WithArgs(at, "c1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE otp_challenges SET consumed_at = $1")).
		WithArgs(at, "c1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM otp_challenges WHERE expires_at < $1")).
		WithArgs(at).
		WillReturnResult(sqlmock.NewResult(0, 4))

	ok, err := repo.Consume(ctx, "c1", 3, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Consume(ctx, "c1", 3, at)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.DeleteExpiredBefore(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestObligationCreate_DuplicateBooking(t *testing.T) {
	db, mock := newMock(t)
	repo := NewObligationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_obligations")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &domain.PaymentObligation{ID: "o1", BookingID: "b1", Amount: 500})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestObligationMarkPaid(t *testing.T) {
	db, mock := newMock(t)
	repo := NewObligationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_obligations SET status = 'PAID'")).
		WithArgs("pay_123", at, "o1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkPaid(context.Background(), "o1", "pay_123", at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransferUpdateStatus_Conflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransferRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transfer_requests")).
		WithArgs(domain.TransferUserApproved, sqlmock.AnyArg(), sqlmock.AnyArg(), at, "t1", domain.TransferPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tr := &domain.TransferRequest{ID: "t1", Status: domain.TransferUserApproved, UpdatedAt: at}
	err := repo.UpdateStatus(context.Background(), tr, domain.TransferPending)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestTransferGetOpen_None(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransferRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transfer_requests")).
		WithArgs("b1").
		WillReturnError(sql.ErrNoRows)

	tr, err := repo.GetOpenByBookingID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, tr)
}

func TestWithinTx(t *testing.T) {
	db, mock := newMock(t)
	store := NewStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("user:u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Locks.LockUser(ctx, "u1")
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDirectoryFindActiveListing(t *testing.T) {
	db, mock := newMock(t)
	dir := NewDirectory(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM provider_services")).
		WithArgs("p2", "Plumbing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_id", "provider_name", "service_name",
			"allowed_days", "allowed_hours", "price_amount", "active"}).
			AddRow("svc-p2", "p2", "Ravi", "plumbing", "{Mon,Tue}", "8 AM - 8 PM", 650.0, true))

	l, err := dir.FindActiveListing(context.Background(), "p2", "Plumbing")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mon", "Tue"}, l.AllowedDays)
	assert.Equal(t, "8 AM - 8 PM", l.AllowedHours)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles")).
		WithArgs("u9").
		WillReturnError(sql.ErrNoRows)
	_, err = dir.GetUserProfile(context.Background(), "u9")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
