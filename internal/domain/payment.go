package domain

import "time"

// ObligationStatus represents the settlement state of a payment obligation.
type ObligationStatus string

const (
	ObligationPending ObligationStatus = "PENDING"
	ObligationPaid    ObligationStatus = "PAID"
)

// PaymentObligation is money a user owes for one booking.
type PaymentObligation struct {
	ID           string
	UserID       string
	BookingID    string
	ServiceName  string
	ProviderID   string
	ProviderName string
	Amount       float64
	Status       ObligationStatus

	// Rating and feedback are captured when completion is initiated and
	// copied into the booking on settlement.
	RatingDraft   int
	FeedbackDraft string

	PaymentReference string
	PaidAt           time.Time
	CreatedAt        time.Time
}

// SettlementReference is the link a client follows to pay the obligation.
func (o *PaymentObligation) SettlementReference() string {
	return "/v1/payments/" + o.ID + "/settle"
}
