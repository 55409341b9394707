package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const sweepLockName = "otp-sweeper"

// Lease is a lock shared between replicas.
type Lease interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// OTPSweeper periodically deletes long-expired OTP challenges. With a lease
// only one replica sweeps per interval.
type OTPSweeper struct {
	otpService *OTPService
	lease      Lease
	interval   time.Duration
	grace      time.Duration
	logger     *zap.Logger
}

// NewOTPSweeper creates a sweeper. lease may be nil for single-instance runs.
func NewOTPSweeper(otpService *OTPService, lease Lease, interval, grace time.Duration, logger *zap.Logger) *OTPSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &OTPSweeper{
		otpService: otpService,
		lease:      lease,
		interval:   interval,
		grace:      grace,
		logger:     logger,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (w *OTPSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.logger.Warn("otp sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce runs a single sweep if the lease is free.
func (w *OTPSweeper) SweepOnce(ctx context.Context) (int64, error) {
	if w.lease != nil {
		ok, err := w.lease.AcquireLock(ctx, sweepLockName, w.interval)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		// The lease is left to expire so other replicas skip the rest of
		// this interval.
	}

	n, err := w.otpService.SweepExpired(ctx, w.grace)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.logger.Info("expired otp challenges removed", zap.Int64("count", n))
	}
	return n, nil
}
