package service

import (
	"errors"
	"fmt"

	"fulfillment/internal/availability"
	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

var (
	// ErrNotFound is returned when the referenced entity does not exist or
	// does not belong to the actor.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the actor is not the party allowed
	// to perform the transition.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState is returned when a transition guard is not satisfied.
	ErrInvalidState = errors.New("invalid state")

	// ErrAvailabilityViolation is returned when the requested time is
	// outside the listing's availability.
	ErrAvailabilityViolation = errors.New("availability violation")

	// ErrOutstandingPayment is returned when the user still owes payment
	// for an earlier booking.
	ErrOutstandingPayment = errors.New("outstanding payment")

	// ErrIncompleteProfile is returned when the user profile lacks phone or address.
	ErrIncompleteProfile = errors.New("incomplete profile")

	// ErrOtpExpired is returned when the active challenge has expired.
	ErrOtpExpired = errors.New("otp expired")

	// ErrOtpAttemptsExhausted is returned when the challenge has no attempts left.
	ErrOtpAttemptsExhausted = errors.New("otp attempts exhausted")

	// ErrOtpMismatch is returned when the submitted code is wrong but
	// attempts remain.
	ErrOtpMismatch = errors.New("otp mismatch")

	// ErrPaymentVerificationFailed is returned when the payment gateway does
	// not confirm the reference.
	ErrPaymentVerificationFailed = errors.New("external payment verification failed")

	// ErrValidation is returned when request input is malformed.
	ErrValidation = errors.New("validation failed")
)

var categories = map[error]string{
	ErrNotFound:                  "NotFound",
	ErrUnauthorized:              "Unauthorized",
	ErrInvalidState:              "InvalidState",
	ErrAvailabilityViolation:     "AvailabilityViolation",
	ErrOutstandingPayment:        "OutstandingPayment",
	ErrIncompleteProfile:         "IncompleteProfile",
	ErrOtpExpired:                "OtpExpired",
	ErrOtpAttemptsExhausted:      "OtpAttemptsExhausted",
	ErrOtpMismatch:               "OtpMismatch",
	ErrPaymentVerificationFailed: "ExternalPaymentVerificationFailed",
	ErrValidation:                "Validation",
}

// Error is a business-rule failure the caller is expected to branch on.
type Error struct {
	Kind     error
	Category string
	Message  string

	// Outstanding is set for ErrOutstandingPayment.
	Outstanding []*domain.PaymentObligation
	// Availability is set for ErrAvailabilityViolation.
	Availability *availability.Result
	// RemainingAttempts is set for ErrOtpMismatch.
	RemainingAttempts int
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Category: categories[kind],
		Message:  fmt.Sprintf(format, args...),
	}
}

// Category returns the machine-readable category of err, or "" for
// infrastructure failures.
func Category(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// storeErr translates repository sentinels into business errors and wraps
// anything else as an infrastructure failure.
func storeErr(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return newError(ErrNotFound, "%s %s not found", entity, id)
	case errors.Is(err, repository.ErrVersionConflict):
		return newError(ErrInvalidState, "%s %s was modified concurrently, reload and retry", entity, id)
	default:
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
}
