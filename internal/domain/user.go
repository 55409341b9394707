package domain

import (
	"strings"
	"time"
)

// UserProfile is the contact data a booking is created with.
type UserProfile struct {
	UserID    string
	Name      string
	Email     string
	Phone     string
	Address   string
	UpdatedAt time.Time
}

// IsComplete reports whether the profile has what a provider needs to show up.
func (p *UserProfile) IsComplete() bool {
	return strings.TrimSpace(p.Phone) != "" && strings.TrimSpace(p.Address) != ""
}

// ServiceListing is a provider's offer of one service.
type ServiceListing struct {
	ID           string
	ProviderID   string
	ProviderName string
	ServiceName  string
	AllowedDays  []string
	AllowedHours string
	PriceAmount  float64
	Active       bool
}
