package domain

import "time"

// ApprovalStatus is the provider's decision on a booking request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalAccepted ApprovalStatus = "ACCEPTED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalPending:  {ApprovalAccepted, ApprovalRejected},
	ApprovalAccepted: {},
	ApprovalRejected: {},
}

// CanTransitionTo reports whether the approval status may move to target.
func (s ApprovalStatus) CanTransitionTo(target ApprovalStatus) bool {
	return contains(approvalTransitions[s], target)
}

// IsTerminal reports whether no further approval decision is possible.
func (s ApprovalStatus) IsTerminal() bool {
	next, ok := approvalTransitions[s]
	return !ok || len(next) == 0
}

// FulfillmentStatus tracks whether the service itself has been delivered.
type FulfillmentStatus string

const (
	FulfillmentNotStarted FulfillmentStatus = "NOT_STARTED"
	FulfillmentInProgress FulfillmentStatus = "IN_PROGRESS"
	FulfillmentCompleted  FulfillmentStatus = "COMPLETED"
)

// Fulfillment only moves forward.
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentNotStarted: {FulfillmentInProgress},
	FulfillmentInProgress: {FulfillmentCompleted},
	FulfillmentCompleted:  {},
}

// CanTransitionTo reports whether the fulfillment status may move to target.
func (s FulfillmentStatus) CanTransitionTo(target FulfillmentStatus) bool {
	return contains(fulfillmentTransitions[s], target)
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Booking is a user's request for a provider's service at a given time.
type Booking struct {
	ID string

	UserID       string
	UserName     string
	UserEmail    string
	ContactPhone string
	Address      string

	ProviderID        string
	ProviderName      string
	ProviderServiceID string
	ServiceName       string

	ServiceDateTime time.Time
	Note            string

	Approval        ApprovalStatus
	DecisionMessage string
	DecidedAt       time.Time

	Fulfillment FulfillmentStatus
	StartedAt   time.Time
	CompletedAt time.Time

	// ActiveChallengeID points at the only OTP challenge that may start the service.
	ActiveChallengeID string
	// PriceAmount is the settlement price captured from the listing at creation.
	PriceAmount float64

	Rating   int // 0 = not rated
	Feedback string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequiresPayment reports whether completing the booking needs a settled obligation.
func (b *Booking) RequiresPayment() bool {
	return b.PriceAmount > 0
}

// CanStart reports whether an OTP may be issued for the booking.
func (b *Booking) CanStart() bool {
	return b.Approval == ApprovalAccepted && b.Fulfillment == FulfillmentNotStarted
}

// MarkStarted moves fulfillment to IN_PROGRESS.
func (b *Booking) MarkStarted(at time.Time) bool {
	if b.Approval != ApprovalAccepted || !b.Fulfillment.CanTransitionTo(FulfillmentInProgress) {
		return false
	}
	b.Fulfillment = FulfillmentInProgress
	b.StartedAt = at
	b.ActiveChallengeID = ""
	b.UpdatedAt = at
	return true
}

// MarkCompleted moves fulfillment to COMPLETED and records the outcome
// fields. Rating and feedback are only written here.
func (b *Booking) MarkCompleted(at time.Time, rating int, feedback string) bool {
	if !b.Fulfillment.CanTransitionTo(FulfillmentCompleted) {
		return false
	}
	b.Fulfillment = FulfillmentCompleted
	b.CompletedAt = at
	b.Rating = rating
	b.Feedback = feedback
	b.UpdatedAt = at
	return true
}

// Decide records the provider's accept/reject decision.
func (b *Booking) Decide(accept bool, message string, at time.Time) bool {
	target := ApprovalRejected
	if accept {
		target = ApprovalAccepted
	}
	if !b.Approval.CanTransitionTo(target) {
		return false
	}
	b.Approval = target
	b.DecisionMessage = message
	b.DecidedAt = at
	b.UpdatedAt = at
	return true
}

// ReassignProvider rewrites the provider identity after an accepted transfer.
func (b *Booking) ReassignProvider(providerID, providerName, providerServiceID string, at time.Time) {
	b.ProviderID = providerID
	b.ProviderName = providerName
	b.ProviderServiceID = providerServiceID
	// A challenge issued by the previous provider can no longer start the service.
	b.ActiveChallengeID = ""
	b.UpdatedAt = at
}
