package domain

import "time"

// OTPChallenge is a short-lived code the user discloses in person so the
// provider can start the service.
type OTPChallenge struct {
	ID         string
	BookingID  string
	UserID     string // discloses the code
	ProviderID string // collects and submits the code
	Code       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Attempts   int
	ConsumedAt time.Time
}

// IsExpired reports whether the challenge can no longer be used at now.
func (c *OTPChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsConsumed reports whether the challenge already started a service.
func (c *OTPChallenge) IsConsumed() bool {
	return !c.ConsumedAt.IsZero()
}

// RemainingAttempts returns how many submissions are left under max.
func (c *OTPChallenge) RemainingAttempts(max int) int {
	if c.Attempts >= max {
		return 0
	}
	return max - c.Attempts
}
