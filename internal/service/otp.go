package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

const otpDigits = 6

var otpSpace = big.NewInt(1_000_000)

// generateCode returns a uniformly random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// OTPService issues and verifies the codes that gate service start.
type OTPService struct {
	store               Store
	rules               Rules
	notificationService *NotificationService
	metrics             *Metrics
	logger              *zap.Logger

	now      func() time.Time
	generate func() (string, error)
}

// NewOTPService creates a new OTPService.
func NewOTPService(store Store, rules Rules, notificationService *NotificationService, metrics *Metrics, logger *zap.Logger) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPService{
		store:               store,
		rules:               rules.withDefaults(),
		notificationService: notificationService,
		metrics:             metrics,
		logger:              logger,
		now:                 time.Now,
		generate:            generateCode,
	}
}

// Issue mints a new challenge for an accepted, unstarted booking and makes
// it the booking's only usable challenge.
func (s *OTPService) Issue(ctx context.Context, bookingID, providerID string) (*domain.OTPChallenge, error) {
	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	var challenge *domain.OTPChallenge
	var booking *domain.Booking
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := repos.Bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return storeErr(err, "booking", bookingID)
		}
		if b.ProviderID != providerID {
			return newError(ErrNotFound, "booking %s not found", bookingID)
		}
		if !b.CanStart() {
			return newError(ErrInvalidState, "service can only start on an accepted booking that has not started (approval %s, fulfillment %s)", b.Approval, b.Fulfillment)
		}

		now := s.now()
		c := &domain.OTPChallenge{
			ID:         uuid.New().String(),
			BookingID:  b.ID,
			UserID:     b.UserID,
			ProviderID: b.ProviderID,
			Code:       code,
			IssuedAt:   now,
			ExpiresAt:  now.Add(s.rules.OTPTTL),
		}
		if err := repos.Challenges.Create(ctx, c); err != nil {
			return storeErr(err, "otp challenge", c.ID)
		}

		b.ActiveChallengeID = c.ID
		b.UpdatedAt = now
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return storeErr(err, "booking", bookingID)
		}
		challenge, booking = c, b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("otp issued",
		zap.String("booking_id", booking.ID),
		zap.String("challenge_id", challenge.ID),
		zap.Time("expires_at", challenge.ExpiresAt),
	)
	s.notificationService.NotifyOTPIssued(ctx, booking, challenge)
	return challenge, nil
}

// Validate checks code against the booking's active challenge. On success
// the challenge is consumed and the booking moves to IN_PROGRESS in one
// transaction.
func (s *OTPService) Validate(ctx context.Context, bookingID, code, providerID string) (*domain.Booking, error) {
	booking, err := s.validate(ctx, bookingID, code, providerID)
	s.metrics.otpValidated(err)
	return booking, err
}

func (s *OTPService) validate(ctx context.Context, bookingID, code, providerID string) (*domain.Booking, error) {
	booking, err := s.store.Repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "booking", bookingID)
	}
	if booking.ActiveChallengeID == "" {
		return nil, newError(ErrInvalidState, "no active start code for booking %s, request a new one", bookingID)
	}
	challenge, err := s.store.Repos.Challenges.GetByID(ctx, booking.ActiveChallengeID)
	if errors.Is(err, repository.ErrNotFound) {
		// Swept after expiry.
		return nil, newError(ErrOtpExpired, "start code expired, request a new one")
	}
	if err != nil {
		return nil, storeErr(err, "otp challenge", booking.ActiveChallengeID)
	}

	maxAttempts := s.rules.OTPMaxAttempts
	now := s.now()
	switch {
	case challenge.ProviderID != providerID:
		return nil, newError(ErrUnauthorized, "only the assigned provider can submit the start code")
	case challenge.IsConsumed():
		return nil, newError(ErrInvalidState, "start code already used")
	case challenge.IsExpired(now):
		return nil, newError(ErrOtpExpired, "start code expired at %s, request a new one", challenge.ExpiresAt.Format(time.RFC3339))
	case challenge.Attempts >= maxAttempts:
		return nil, exhausted()
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(challenge.Code)) != 1 {
		return nil, s.recordMismatch(ctx, challenge, maxAttempts)
	}

	var (
		withdrawn *domain.TransferRequest
		previous  domain.TransferStatus
	)
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ok, err := repos.Challenges.Consume(ctx, challenge.ID, maxAttempts, now)
		if err != nil {
			return storeErr(err, "otp challenge", challenge.ID)
		}
		if !ok {
			return newError(ErrInvalidState, "start code already used or exhausted")
		}

		b, err := repos.Bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return storeErr(err, "booking", bookingID)
		}
		if b.ActiveChallengeID != challenge.ID {
			return newError(ErrInvalidState, "start code was replaced, use the latest code")
		}
		if !b.MarkStarted(now) {
			return newError(ErrInvalidState, "booking %s cannot start (approval %s, fulfillment %s)", b.ID, b.Approval, b.Fulfillment)
		}
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return storeErr(err, "booking", bookingID)
		}
		booking = b

		// A started booking can no longer change hands.
		open, err := repos.Transfers.GetOpenByBookingID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get open transfer: %w", err)
		}
		if open != nil {
			previous = open.Status
			open.Status = domain.TransferCancelled
			open.UpdatedAt = now
			if err := repos.Transfers.UpdateStatus(ctx, open, previous); err != nil {
				return storeErr(err, "transfer request", open.ID)
			}
			withdrawn = open
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("service started", zap.String("booking_id", booking.ID))
	s.notificationService.NotifyServiceStarted(ctx, booking)
	if withdrawn != nil {
		s.logger.Info("open transfer cancelled by service start",
			zap.String("transfer_id", withdrawn.ID),
			zap.String("booking_id", booking.ID),
		)
		s.metrics.transferTransition(string(withdrawn.Status))
		s.notificationService.NotifyTransferSuperseded(ctx, withdrawn, previous)
	}
	return booking, nil
}

func (s *OTPService) recordMismatch(ctx context.Context, challenge *domain.OTPChallenge, maxAttempts int) error {
	attempts, ok, err := s.store.Repos.Challenges.RecordFailedAttempt(ctx, challenge.ID, maxAttempts)
	if err != nil {
		return storeErr(err, "otp challenge", challenge.ID)
	}
	if !ok {
		if attempts >= maxAttempts {
			return exhausted()
		}
		return newError(ErrInvalidState, "start code already used")
	}
	if attempts >= maxAttempts {
		return exhausted()
	}
	e := newError(ErrOtpMismatch, "incorrect start code, %d attempt(s) left", maxAttempts-attempts)
	e.RemainingAttempts = maxAttempts - attempts
	return e
}

func exhausted() *Error {
	return newError(ErrOtpAttemptsExhausted, "too many incorrect attempts, request a new start code")
}

// Reveal returns the booking's usable challenge to the booking's user so the
// code can be disclosed in person.
func (s *OTPService) Reveal(ctx context.Context, bookingID, userID string) (*domain.OTPChallenge, error) {
	booking, err := s.store.Repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "booking", bookingID)
	}
	if booking.UserID != userID || booking.ActiveChallengeID == "" {
		return nil, newError(ErrNotFound, "no active start code for booking %s", bookingID)
	}
	challenge, err := s.store.Repos.Challenges.GetByID(ctx, booking.ActiveChallengeID)
	if err != nil {
		return nil, storeErr(err, "otp challenge", booking.ActiveChallengeID)
	}
	if challenge.IsConsumed() || challenge.IsExpired(s.now()) || challenge.Attempts >= s.rules.OTPMaxAttempts {
		return nil, newError(ErrNotFound, "no active start code for booking %s", bookingID)
	}
	return challenge, nil
}

// SweepExpired deletes challenges that expired more than grace ago.
func (s *OTPService) SweepExpired(ctx context.Context, grace time.Duration) (int64, error) {
	n, err := s.store.Repos.Challenges.DeleteExpiredBefore(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("sweep expired otp challenges: %w", err)
	}
	s.metrics.swept(n)
	return n, nil
}
