package service

import (
	"context"
	"time"

	"fulfillment/internal/availability"
	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// Store bundles the persistence dependencies shared by the services.
type Store struct {
	Tx       repository.Transactor
	Repos    repository.Repositories
	Listings repository.ListingDirectory
	Profiles repository.ProfileDirectory
}

// Rules are the configurable booking rules.
type Rules struct {
	OTPTTL         time.Duration
	OTPMaxAttempts int
	LeadTime       time.Duration
	// Location is the zone listing days and hours are evaluated in.
	Location *time.Location
}

// DefaultRules returns the rules used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		OTPTTL:         10 * time.Minute,
		OTPMaxAttempts: 3,
		LeadTime:       availability.DefaultLeadTime,
		Location:       time.UTC,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.OTPTTL <= 0 {
		r.OTPTTL = d.OTPTTL
	}
	if r.OTPMaxAttempts <= 0 {
		r.OTPMaxAttempts = d.OTPMaxAttempts
	}
	if r.LeadTime < 0 {
		r.LeadTime = d.LeadTime
	}
	if r.Location == nil {
		r.Location = d.Location
	}
	return r
}

// finalizeCompletion moves an in-progress booking to COMPLETED inside the
// caller's transaction. Payment settlement and the free-booking stop path
// are its only callers.
func finalizeCompletion(ctx context.Context, repos repository.Repositories, bookingID string, rating int, feedback string, at time.Time) (*domain.Booking, error) {
	booking, err := repos.Bookings.GetByIDForUpdate(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "booking", bookingID)
	}
	if !booking.MarkCompleted(at, rating, feedback) {
		return nil, newError(ErrInvalidState, "booking %s cannot be completed while %s", booking.ID, booking.Fulfillment)
	}
	if err := repos.Bookings.Update(ctx, booking); err != nil {
		return nil, storeErr(err, "booking", bookingID)
	}
	return booking, nil
}
