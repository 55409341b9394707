package domain

import "time"

// Receipt summarizes a completed booking for the user.
type Receipt struct {
	ID               string
	BookingID        string
	UserID           string
	ProviderID       string
	ProviderName     string
	ServiceName      string
	Amount           float64
	Rating           int
	PaymentReference string
	ServiceDuration  time.Duration
	StartedAt        time.Time
	CompletedAt      time.Time
	CreatedAt        time.Time
}
