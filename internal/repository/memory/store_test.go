package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

func newBooking(id string) *domain.Booking {
	return &domain.Booking{
		ID:          id,
		UserID:      "u1",
		ProviderID:  "p1",
		Approval:    domain.ApprovalPending,
		Fulfillment: domain.FulfillmentNotStarted,
		Version:     1,
		CreatedAt:   time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC),
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		require.NoError(t, repos.Bookings.Create(ctx, newBooking("b1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Repositories().Bookings.GetByID(ctx, "b1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Bookings.Create(ctx, newBooking("b2"))
	})
	require.NoError(t, err)
	_, err = s.Repositories().Bookings.GetByID(ctx, "b2")
	assert.NoError(t, err)
}

func TestBookingUpdate_VersionCheck(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Repositories().Bookings
	require.NoError(t, repo.Create(ctx, newBooking("b1")))

	first, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)

	first.Approval = domain.ApprovalAccepted
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Approval = domain.ApprovalRejected
	assert.ErrorIs(t, repo.Update(ctx, second), repository.ErrVersionConflict)

	stored, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalAccepted, stored.Approval)
}

func TestBookingUpdate_VersionOnlyAdvancesWithStoredCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Repositories().Bookings
	require.NoError(t, repo.Create(ctx, newBooking("b1")))

	stale, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	stale.Version = 7
	require.ErrorIs(t, repo.Update(ctx, stale), repository.ErrVersionConflict)
	assert.Equal(t, int64(7), stale.Version)

	var inTx *domain.Booking
	err = s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := repos.Bookings.GetByIDForUpdate(ctx, "b1")
		require.NoError(t, err)
		b.Approval = domain.ApprovalAccepted
		require.NoError(t, repos.Bookings.Update(ctx, b))
		inTx = b
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Equal(t, int64(2), inTx.Version)

	stored, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, domain.ApprovalPending, stored.Approval)

	stored.Approval = domain.ApprovalAccepted
	require.NoError(t, repo.Update(ctx, stored))
	stored.Approval = domain.ApprovalRejected

	again, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, stored.Version, again.Version)
	assert.Equal(t, domain.ApprovalAccepted, again.Approval)
}

func TestBookingRepository_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Repositories().Bookings
	require.NoError(t, repo.Create(ctx, newBooking("b1")))

	got, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	got.ProviderID = "changed"

	again, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "p1", again.ProviderID)
}

func TestChallengeAttemptsAndConsume(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Repositories().Challenges
	require.NoError(t, repo.Create(ctx, &domain.OTPChallenge{ID: "c1", BookingID: "b1"}))

	for want := 1; want <= 3; want++ {
		attempts, ok, err := repo.RecordFailedAttempt(ctx, "c1", 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, attempts)
	}
	attempts, ok, err := repo.RecordFailedAttempt(ctx, "c1", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, attempts)

	consumed, err := repo.Consume(ctx, "c1", 3, time.Now())
	require.NoError(t, err)
	assert.False(t, consumed, "exhausted challenge cannot be consumed")

	require.NoError(t, repo.Create(ctx, &domain.OTPChallenge{ID: "c2", BookingID: "b1"}))
	consumed, err = repo.Consume(ctx, "c2", 3, time.Now())
	require.NoError(t, err)
	assert.True(t, consumed)
	consumed, err = repo.Consume(ctx, "c2", 3, time.Now())
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestObligationRules(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Repositories().Obligations
	o := &domain.PaymentObligation{ID: "o1", UserID: "u1", BookingID: "b1", Amount: 500, Status: domain.ObligationPending}
	require.NoError(t, repo.Create(ctx, o))

	dup := *o
	dup.ID = "o2"
	assert.ErrorIs(t, repo.Create(ctx, &dup), repository.ErrDuplicate)

	pending, err := repo.ListPendingByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	paid, err := repo.MarkPaid(ctx, "o1", "ref", time.Now())
	require.NoError(t, err)
	assert.True(t, paid)
	paid, err = repo.MarkPaid(ctx, "o1", "ref-2", time.Now())
	require.NoError(t, err)
	assert.False(t, paid)

	pending, err = repo.ListPendingByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTransferOpenUniqueness(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Repositories().Transfers
	tr := &domain.TransferRequest{ID: "t1", BookingID: "b1", Status: domain.TransferPending}
	require.NoError(t, repo.Create(ctx, tr))

	second := &domain.TransferRequest{ID: "t2", BookingID: "b1", Status: domain.TransferPending}
	assert.ErrorIs(t, repo.Create(ctx, second), repository.ErrDuplicate)

	tr.Status = domain.TransferCancelled
	assert.ErrorIs(t, repo.UpdateStatus(ctx, tr, domain.TransferUserApproved), repository.ErrVersionConflict)
	require.NoError(t, repo.UpdateStatus(ctx, tr, domain.TransferPending))

	open, err := repo.GetOpenByBookingID(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, open)
	require.NoError(t, repo.Create(ctx, second))
}

func TestDirectory(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	dir := s.Directory()
	dir.AddListing(&domain.ServiceListing{ID: "l1", ProviderID: "p1", ServiceName: "Plumbing", Active: true})
	dir.AddListing(&domain.ServiceListing{ID: "l2", ProviderID: "p2", ServiceName: "Plumbing", Active: false})

	l, err := dir.FindActiveListing(ctx, "p1", "plumbing")
	require.NoError(t, err)
	assert.Equal(t, "l1", l.ID)

	_, err = dir.FindActiveListing(ctx, "p2", "Plumbing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = dir.GetUserProfile(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
