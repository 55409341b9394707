package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApprovalTransitions(t *testing.T) {
	assert.True(t, ApprovalPending.CanTransitionTo(ApprovalAccepted))
	assert.True(t, ApprovalPending.CanTransitionTo(ApprovalRejected))
	assert.False(t, ApprovalAccepted.CanTransitionTo(ApprovalRejected))
	assert.False(t, ApprovalRejected.CanTransitionTo(ApprovalAccepted))
	assert.True(t, ApprovalAccepted.IsTerminal())
	assert.False(t, ApprovalPending.IsTerminal())
}

func TestFulfillmentOnlyMovesForward(t *testing.T) {
	all := []FulfillmentStatus{FulfillmentNotStarted, FulfillmentInProgress, FulfillmentCompleted}
	allowed := map[[2]FulfillmentStatus]bool{
		{FulfillmentNotStarted, FulfillmentInProgress}: true,
		{FulfillmentInProgress, FulfillmentCompleted}:  true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]FulfillmentStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestBookingLifecycle(t *testing.T) {
	at := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	b := &Booking{Approval: ApprovalPending, Fulfillment: FulfillmentNotStarted, ActiveChallengeID: "c1"}

	assert.False(t, b.CanStart())
	assert.False(t, b.MarkStarted(at), "cannot start before acceptance")

	assert.True(t, b.Decide(true, "see you", at))
	assert.False(t, b.Decide(false, "", at))
	assert.Equal(t, "see you", b.DecisionMessage)
	assert.True(t, b.CanStart())

	assert.True(t, b.MarkStarted(at))
	assert.Empty(t, b.ActiveChallengeID)
	assert.False(t, b.MarkStarted(at))

	assert.True(t, b.MarkCompleted(at.Add(time.Hour), 5, "great"))
	assert.Equal(t, 5, b.Rating)
	assert.False(t, b.MarkCompleted(at.Add(2*time.Hour), 1, "overwrite"))
	assert.Equal(t, "great", b.Feedback)
	assert.Equal(t, at.Add(time.Hour), b.CompletedAt)
}

func TestReassignProviderTouchesOnlyProviderFields(t *testing.T) {
	at := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	b := &Booking{
		ID: "b1", UserID: "u1", ProviderID: "p1", ProviderName: "Asha", ProviderServiceID: "l1",
		Approval: ApprovalAccepted, Fulfillment: FulfillmentNotStarted, ActiveChallengeID: "c1", PriceAmount: 500,
	}
	b.ReassignProvider("p2", "Ravi", "l2", at)

	assert.Equal(t, "p2", b.ProviderID)
	assert.Equal(t, "Ravi", b.ProviderName)
	assert.Equal(t, "l2", b.ProviderServiceID)
	assert.Empty(t, b.ActiveChallengeID)
	assert.Equal(t, ApprovalAccepted, b.Approval)
	assert.Equal(t, FulfillmentNotStarted, b.Fulfillment)
	assert.Equal(t, "u1", b.UserID)
	assert.Equal(t, 500.0, b.PriceAmount)
}

func TestTransferTransitions(t *testing.T) {
	assert.True(t, TransferPending.CanTransitionTo(TransferUserApproved))
	assert.True(t, TransferUserApproved.CanTransitionTo(TransferProviderAccepted))
	assert.True(t, TransferUserApproved.CanTransitionTo(TransferCancelled))
	assert.False(t, TransferPending.CanTransitionTo(TransferProviderAccepted))
	assert.False(t, TransferProviderAccepted.CanTransitionTo(TransferCancelled))
	assert.True(t, TransferUserApproved.IsOpen())
	assert.False(t, TransferUserRejected.IsOpen())
}

func TestOTPChallenge(t *testing.T) {
	issued := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	c := &OTPChallenge{IssuedAt: issued, ExpiresAt: issued.Add(10 * time.Minute), Attempts: 1}

	assert.False(t, c.IsExpired(issued.Add(9*time.Minute)))
	assert.True(t, c.IsExpired(issued.Add(10*time.Minute)))
	assert.Equal(t, 2, c.RemainingAttempts(3))
	c.Attempts = 4
	assert.Zero(t, c.RemainingAttempts(3))
	assert.False(t, c.IsConsumed())
}

func TestUserProfileIsComplete(t *testing.T) {
	assert.True(t, (&UserProfile{Phone: "1", Address: "x"}).IsComplete())
	assert.False(t, (&UserProfile{Phone: "1", Address: "  "}).IsComplete())
	assert.False(t, (&UserProfile{Address: "x"}).IsComplete())
}
