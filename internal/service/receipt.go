package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fulfillment/internal/domain"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	notificationService *NotificationService
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(notificationService *NotificationService) *ReceiptService {
	return &ReceiptService{
		notificationService: notificationService,
	}
}

// GenerateReceipt builds the receipt for a completed booking. obligation is
// nil for free bookings.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, booking *domain.Booking, obligation *domain.PaymentObligation) (*domain.Receipt, error) {
	if booking == nil || booking.Fulfillment != domain.FulfillmentCompleted {
		return nil, newError(ErrInvalidState, "receipts are only issued for completed bookings")
	}

	receipt := &domain.Receipt{
		ID:              uuid.New().String(),
		BookingID:       booking.ID,
		UserID:          booking.UserID,
		ProviderID:      booking.ProviderID,
		ProviderName:    booking.ProviderName,
		ServiceName:     booking.ServiceName,
		Amount:          booking.PriceAmount,
		Rating:          booking.Rating,
		ServiceDuration: booking.CompletedAt.Sub(booking.StartedAt),
		StartedAt:       booking.StartedAt,
		CompletedAt:     booking.CompletedAt,
		CreatedAt:       time.Now(),
	}
	if obligation != nil {
		receipt.Amount = obligation.Amount
		receipt.PaymentReference = obligation.PaymentReference
	}

	if s.notificationService != nil {
		s.notificationService.NotifyReceiptReady(ctx, receipt)
	}

	return receipt, nil
}

// FormatReceipt formats the receipt as plain text (for email/print).
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder
	line := "=====================================\n"
	b.WriteString(line)
	b.WriteString("          SERVICE RECEIPT\n")
	b.WriteString(line)
	fmt.Fprintf(&b, "Receipt ID: %s\n", receipt.ID)
	fmt.Fprintf(&b, "Booking ID: %s\n", receipt.BookingID)
	fmt.Fprintf(&b, "Date: %s\n\n", receipt.CompletedAt.Format("Jan 02, 2006 3:04 PM"))
	fmt.Fprintf(&b, "Service:  %s\n", receipt.ServiceName)
	fmt.Fprintf(&b, "Provider: %s\n", receipt.ProviderName)
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(receipt.ServiceDuration))
	if receipt.Rating > 0 {
		fmt.Fprintf(&b, "Rating:   %s\n", strings.Repeat("*", receipt.Rating))
	}
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "TOTAL:    %s\n", formatAmount(receipt.Amount))
	if receipt.PaymentReference != "" {
		fmt.Fprintf(&b, "Payment:  %s\n", receipt.PaymentReference)
	}
	b.WriteString(line)
	return b.String()
}

func formatAmount(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	return fmt.Sprintf("%d min", minutes)
}
