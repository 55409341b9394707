package domain

import "time"

// TransferStatus represents the current state of a transfer request.
type TransferStatus string

const (
	TransferPending          TransferStatus = "PENDING"
	TransferUserApproved     TransferStatus = "USER_APPROVED"
	TransferUserRejected     TransferStatus = "USER_REJECTED"
	TransferProviderAccepted TransferStatus = "PROVIDER_ACCEPTED"
	TransferProviderRejected TransferStatus = "PROVIDER_REJECTED"
	TransferCancelled        TransferStatus = "CANCELLED"
)

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPending:          {TransferUserApproved, TransferUserRejected, TransferCancelled},
	TransferUserApproved:     {TransferProviderAccepted, TransferProviderRejected, TransferCancelled},
	TransferUserRejected:     {},
	TransferProviderAccepted: {},
	TransferProviderRejected: {},
	TransferCancelled:        {},
}

// CanTransitionTo reports whether a transfer may move from s to target.
func (s TransferStatus) CanTransitionTo(target TransferStatus) bool {
	return contains(transferTransitions[s], target)
}

// IsOpen reports whether the transfer still awaits a decision.
func (s TransferStatus) IsOpen() bool {
	return s == TransferPending || s == TransferUserApproved
}

// OpenTransferStatuses lists statuses that block a second transfer on the same booking.
var OpenTransferStatuses = []TransferStatus{TransferPending, TransferUserApproved}

// TransferRequest proposes handing an unstarted booking to another provider.
type TransferRequest struct {
	ID        string
	BookingID string

	OriginalProviderID   string
	OriginalProviderName string

	NewProviderID        string
	NewProviderName      string
	NewProviderServiceID string

	UserID string
	Reason string

	UserMessage     string
	ProviderMessage string

	Status    TransferStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
