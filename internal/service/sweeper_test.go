package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLease struct {
	held  map[string]bool
	err   error
	calls int
}

func (l *fakeLease) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.calls++
	if l.err != nil {
		return false, l.err
	}
	if l.held[name] {
		return false, nil
	}
	l.held[name] = true
	return true, nil
}

func TestOTPSweeper_SweepOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")
	_, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)

	lease := &fakeLease{held: map[string]bool{}}
	sweeper := NewOTPSweeper(env.otp, lease, time.Minute, 5*time.Minute, nil)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "challenge has not expired yet")

	env.clock.Advance(time.Hour)
	lease.held = map[string]bool{}
	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOTPSweeper_SkipsWhenLeaseHeld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.accepted(t, "svc-p1")
	_, err := env.bookings.RequestServiceStart(ctx, b.ID, "p1")
	require.NoError(t, err)
	env.clock.Advance(time.Hour)

	lease := &fakeLease{held: map[string]bool{sweepLockName: true}}
	sweeper := NewOTPSweeper(env.otp, lease, time.Minute, 0, nil)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	lease.err = errors.New("redis down")
	_, err = sweeper.SweepOnce(ctx)
	assert.Error(t, err)
}

func TestOTPSweeper_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	sweeper := NewOTPSweeper(env.otp, nil, time.Millisecond, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
