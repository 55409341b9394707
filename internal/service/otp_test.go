package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/internal/domain"
)

func TestGenerateCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestConfirmServiceStart_CorrectCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")

	c, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)
	require.Equal(t, "482913", c.Code)
	require.Zero(t, c.Attempts)

	env.clock.Advance(5 * time.Minute)
	started, err := env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "482913")
	require.NoError(t, err)
	assert.Equal(t, domain.FulfillmentInProgress, started.Fulfillment)
	assert.Equal(t, baseTime.Add(5*time.Minute), started.StartedAt)
	assert.Empty(t, started.ActiveChallengeID)
	assert.Equal(t, []string{"u1"}, env.sink.recipients(NotificationServiceStarted))

	stored, err := env.store.Repositories().Challenges.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsConsumed())
}

func TestConfirmServiceStart_ExhaustsAfterThreeMismatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")
	_, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	_, err = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "000000")
	e := requireKind(t, err, ErrOtpMismatch)
	assert.Equal(t, 2, e.RemainingAttempts)

	_, err = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "000000")
	e = requireKind(t, err, ErrOtpMismatch)
	assert.Equal(t, 1, e.RemainingAttempts)

	_, err = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "000000")
	requireKind(t, err, ErrOtpAttemptsExhausted)

	_, err = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "482913")
	requireKind(t, err, ErrOtpAttemptsExhausted)
	assert.Equal(t, domain.FulfillmentNotStarted, env.booking(t, b.ID).Fulfillment)

	// A fresh challenge restores the attempts.
	env.codes <- "135790"
	_, err = env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)
	started, err := env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "135790")
	require.NoError(t, err)
	assert.Equal(t, domain.FulfillmentInProgress, started.Fulfillment)
}

func TestConfirmServiceStart_StaleCodeAfterReissue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")

	env.codes <- "111111"
	_, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)
	env.codes <- "222222"
	_, err = env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	_, err = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "111111")
	requireKind(t, err, ErrOtpMismatch)

	started, err := env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "222222")
	require.NoError(t, err)
	assert.Equal(t, domain.FulfillmentInProgress, started.Fulfillment)
}

func TestConfirmServiceStart_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")
	_, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	_, err = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "482913")
	e := requireKind(t, err, ErrOtpExpired)
	assert.Equal(t, "OtpExpired", e.Category)
	assert.Equal(t, domain.FulfillmentNotStarted, env.booking(t, b.ID).Fulfillment)
}

func TestConfirmServiceStart_WrongProviderAndNoChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")

	_, err := env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "482913")
	requireKind(t, err, ErrInvalidState)

	_, err = env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	_, err = env.bookings.ConfirmServiceStart(ctx, b.ID, "p2", "482913")
	requireKind(t, err, ErrUnauthorized)

	_, err = env.bookings.ConfirmServiceStart(ctx, "missing", "p1", "482913")
	requireKind(t, err, ErrNotFound)
}

func TestConfirmServiceStart_ConcurrentSubmissionsStartOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")
	_, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "482913")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, env.sink.count(NotificationServiceStarted))
}

func TestConfirmServiceStart_ConcurrentMismatchesNeverExceedLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")
	c, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "000000")
		}()
	}
	wg.Wait()

	stored, err := env.store.Repositories().Challenges.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Attempts)
}

func TestRevealOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")

	_, err := env.otp.Reveal(ctx, b.ID, "u1")
	requireKind(t, err, ErrNotFound)

	issued, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	revealed, err := env.otp.Reveal(ctx, b.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, issued.Code, revealed.Code)

	_, err = env.otp.Reveal(ctx, b.ID, "p1")
	requireKind(t, err, ErrNotFound)

	env.clock.Advance(11 * time.Minute)
	_, err = env.otp.Reveal(ctx, b.ID, "u1")
	requireKind(t, err, ErrNotFound)
}

func TestOTPNotificationNeverCarriesCode(t *testing.T) {
	env := newTestEnv(t)
	b := env.accepted(t, "svc-p1")
	_, err := env.bookings.RequestServiceStart(context.Background(), b.ID, "p1")
	require.NoError(t, err)

	env.sink.mu.Lock()
	defer env.sink.mu.Unlock()
	for _, n := range env.sink.sent {
		assert.NotContains(t, n.Message, "482913")
		assert.NotContains(t, n.Title, "482913")
	}
}

func TestSweepExpiredThenConfirmReportsExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")
	_, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	n, err := env.otp.SweepExpired(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = env.bookings.ConfirmServiceStart(ctx, b.ID, "p1", "482913")
	requireKind(t, err, ErrOtpExpired)
}
