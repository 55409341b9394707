package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationBookingCreated           NotificationType = "BOOKING_CREATED"
	NotificationBookingAccepted          NotificationType = "BOOKING_ACCEPTED"
	NotificationBookingRejected          NotificationType = "BOOKING_REJECTED"
	NotificationOTPIssued                NotificationType = "OTP_ISSUED"
	NotificationServiceStarted           NotificationType = "SERVICE_STARTED"
	NotificationPaymentRequired          NotificationType = "PAYMENT_REQUIRED"
	NotificationServiceCompleted         NotificationType = "SERVICE_COMPLETED"
	NotificationPaymentSettled           NotificationType = "PAYMENT_SETTLED"
	NotificationReceiptReady             NotificationType = "RECEIPT_READY"
	NotificationTransferRequested        NotificationType = "TRANSFER_REQUESTED"
	NotificationTransferUserApproved     NotificationType = "TRANSFER_USER_APPROVED"
	NotificationTransferUserRejected     NotificationType = "TRANSFER_USER_REJECTED"
	NotificationTransferProviderAccepted NotificationType = "TRANSFER_PROVIDER_ACCEPTED"
	NotificationTransferProviderRejected NotificationType = "TRANSFER_PROVIDER_REJECTED"
	NotificationTransferCancelled        NotificationType = "TRANSFER_CANCELLED"
)

// Notification represents a lifecycle event addressed to one recipient.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipient_id"`
	BookingID   string           `json:"booking_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	ActionRef   string           `json:"action_ref,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Sink delivers notifications to an external channel.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// NotificationService fans lifecycle events out to sinks. Delivery is fire
// and forget: sink failures are logged, never returned to the caller.
type NotificationService struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *zap.Logger, sinks ...Sink) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{sinks: sinks, logger: logger}
}

func bookingRef(id string) string { return "/v1/bookings/" + id }

// NotifyBookingCreated tells the provider about a new request.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, b *domain.Booking) {
	s.send(ctx, Notification{
		Type:        NotificationBookingCreated,
		RecipientID: b.ProviderID,
		BookingID:   b.ID,
		Title:       "New Booking Request",
		Message:     fmt.Sprintf("%s requested %s on %s", b.UserName, b.ServiceName, b.ServiceDateTime.Format("Mon Jan 2 15:04")),
		ActionRef:   bookingRef(b.ID),
	})
}

// NotifyBookingDecided tells the user whether the provider accepted.
func (s *NotificationService) NotifyBookingDecided(ctx context.Context, b *domain.Booking) {
	n := Notification{
		Type:        NotificationBookingAccepted,
		RecipientID: b.UserID,
		BookingID:   b.ID,
		Title:       "Booking Accepted",
		Message:     fmt.Sprintf("%s accepted your %s booking", b.ProviderName, b.ServiceName),
		ActionRef:   bookingRef(b.ID),
	}
	if b.Approval == domain.ApprovalRejected {
		n.Type = NotificationBookingRejected
		n.Title = "Booking Rejected"
		n.Message = fmt.Sprintf("%s declined your %s booking", b.ProviderName, b.ServiceName)
	}
	if b.DecisionMessage != "" {
		n.Message += ": " + b.DecisionMessage
	}
	s.send(ctx, n)
}

// NotifyOTPIssued tells the user a start code is waiting. The code itself
// is only readable through the booking's OTP endpoint.
func (s *NotificationService) NotifyOTPIssued(ctx context.Context, b *domain.Booking, c *domain.OTPChallenge) {
	s.send(ctx, Notification{
		Type:        NotificationOTPIssued,
		RecipientID: b.UserID,
		BookingID:   b.ID,
		Title:       "Service Start Code",
		Message:     fmt.Sprintf("%s is ready to start. Share your code before %s", b.ProviderName, c.ExpiresAt.Format("15:04")),
		ActionRef:   bookingRef(b.ID) + "/otp",
	})
}

// NotifyServiceStarted tells the user the service is under way.
func (s *NotificationService) NotifyServiceStarted(ctx context.Context, b *domain.Booking) {
	s.send(ctx, Notification{
		Type:        NotificationServiceStarted,
		RecipientID: b.UserID,
		BookingID:   b.ID,
		Title:       "Service Started",
		Message:     fmt.Sprintf("%s has started your %s", b.ProviderName, b.ServiceName),
		ActionRef:   bookingRef(b.ID),
	})
}

// NotifyPaymentRequired asks the user to settle before the booking completes.
func (s *NotificationService) NotifyPaymentRequired(ctx context.Context, b *domain.Booking, o *domain.PaymentObligation) {
	s.send(ctx, Notification{
		Type:        NotificationPaymentRequired,
		RecipientID: b.UserID,
		BookingID:   b.ID,
		Title:       "Payment Required",
		Message:     fmt.Sprintf("Pay %.2f for %s to complete the booking", o.Amount, b.ServiceName),
		ActionRef:   o.SettlementReference(),
	})
}

// NotifyServiceCompleted tells both parties the booking is done.
func (s *NotificationService) NotifyServiceCompleted(ctx context.Context, b *domain.Booking) {
	for _, recipient := range []string{b.UserID, b.ProviderID} {
		s.send(ctx, Notification{
			Type:        NotificationServiceCompleted,
			RecipientID: recipient,
			BookingID:   b.ID,
			Title:       "Service Completed",
			Message:     fmt.Sprintf("%s by %s is complete", b.ServiceName, b.ProviderName),
			ActionRef:   bookingRef(b.ID),
		})
	}
}

// NotifyPaymentSettled tells the provider the user has paid.
func (s *NotificationService) NotifyPaymentSettled(ctx context.Context, o *domain.PaymentObligation) {
	s.send(ctx, Notification{
		Type:        NotificationPaymentSettled,
		RecipientID: o.ProviderID,
		BookingID:   o.BookingID,
		Title:       "Payment Received",
		Message:     fmt.Sprintf("Payment of %.2f for %s was received", o.Amount, o.ServiceName),
		ActionRef:   bookingRef(o.BookingID),
	})
}

// NotifyReceiptReady notifies the user that the receipt is ready.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, r *domain.Receipt) {
	s.send(ctx, Notification{
		Type:        NotificationReceiptReady,
		RecipientID: r.UserID,
		BookingID:   r.BookingID,
		Title:       "Receipt Ready",
		Message:     fmt.Sprintf("Your receipt for %s (%.2f) is ready", r.ServiceName, r.Amount),
		ActionRef:   bookingRef(r.BookingID),
	})
}

// NotifyTransferRequested asks the user to approve a provider change.
func (s *NotificationService) NotifyTransferRequested(ctx context.Context, t *domain.TransferRequest) {
	s.send(ctx, Notification{
		Type:        NotificationTransferRequested,
		RecipientID: t.UserID,
		BookingID:   t.BookingID,
		Title:       "Provider Change Requested",
		Message:     fmt.Sprintf("%s wants to hand your booking to %s", t.OriginalProviderName, t.NewProviderName),
		ActionRef:   transferRef(t.ID),
	})
}

// NotifyTransferUserDecided informs the next party after the user decides.
func (s *NotificationService) NotifyTransferUserDecided(ctx context.Context, t *domain.TransferRequest) {
	if t.Status == domain.TransferUserApproved {
		s.send(ctx, Notification{
			Type:        NotificationTransferUserApproved,
			RecipientID: t.NewProviderID,
			BookingID:   t.BookingID,
			Title:       "Booking Transfer Offered",
			Message:     fmt.Sprintf("%s offered you a booking", t.OriginalProviderName),
			ActionRef:   transferRef(t.ID),
		})
		return
	}
	s.send(ctx, Notification{
		Type:        NotificationTransferUserRejected,
		RecipientID: t.OriginalProviderID,
		BookingID:   t.BookingID,
		Title:       "Transfer Declined",
		Message:     "The user declined the provider change",
		ActionRef:   transferRef(t.ID),
	})
}

// NotifyTransferProviderDecided informs the user and the original provider.
func (s *NotificationService) NotifyTransferProviderDecided(ctx context.Context, t *domain.TransferRequest) {
	typ, title, msg := NotificationTransferProviderAccepted, "Provider Changed",
		fmt.Sprintf("%s will now deliver your booking", t.NewProviderName)
	if t.Status == domain.TransferProviderRejected {
		typ, title, msg = NotificationTransferProviderRejected, "Transfer Declined",
			fmt.Sprintf("%s declined the booking", t.NewProviderName)
	}
	for _, recipient := range []string{t.UserID, t.OriginalProviderID} {
		s.send(ctx, Notification{
			Type:        typ,
			RecipientID: recipient,
			BookingID:   t.BookingID,
			Title:       title,
			Message:     msg,
			ActionRef:   transferRef(t.ID),
		})
	}
}

// NotifyTransferCancelled tells whoever was waiting on the request.
func (s *NotificationService) NotifyTransferCancelled(ctx context.Context, t *domain.TransferRequest, previous domain.TransferStatus) {
	recipients := []string{t.UserID}
	if previous == domain.TransferUserApproved {
		recipients = append(recipients, t.NewProviderID)
	}
	for _, recipient := range recipients {
		s.send(ctx, Notification{
			Type:        NotificationTransferCancelled,
			RecipientID: recipient,
			BookingID:   t.BookingID,
			Title:       "Transfer Cancelled",
			Message:     fmt.Sprintf("%s withdrew the provider change", t.OriginalProviderName),
			ActionRef:   transferRef(t.ID),
		})
	}
}

// NotifyTransferSuperseded tells the waiting parties that the original
// provider started the service before the transfer completed.
func (s *NotificationService) NotifyTransferSuperseded(ctx context.Context, t *domain.TransferRequest, previous domain.TransferStatus) {
	recipients := []string{t.UserID}
	if previous == domain.TransferUserApproved {
		recipients = append(recipients, t.NewProviderID)
	}
	for _, recipient := range recipients {
		s.send(ctx, Notification{
			Type:        NotificationTransferCancelled,
			RecipientID: recipient,
			BookingID:   t.BookingID,
			Title:       "Transfer Cancelled",
			Message:     fmt.Sprintf("%s has started the service, the provider change no longer applies", t.OriginalProviderName),
			ActionRef:   transferRef(t.ID),
		})
	}
}

func transferRef(id string) string { return "/v1/transfers/" + id }

func (s *NotificationService) send(ctx context.Context, n Notification) {
	if s == nil {
		return
	}
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()

	s.logger.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("recipient_id", n.RecipientID),
		zap.String("booking_id", n.BookingID),
		zap.String("title", n.Title),
	)

	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, n); err != nil {
			s.logger.Warn("notification delivery failed",
				zap.String("type", string(n.Type)),
				zap.String("booking_id", n.BookingID),
				zap.Error(err),
			)
		}
	}
}
