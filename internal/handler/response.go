package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
	"fulfillment/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable category clients branch on.
type ErrorBody struct {
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)

	var e *service.Error
	if !errors.As(err, &e) {
		_ = c.Error(err)
		if code == http.StatusNotFound {
			c.JSON(code, ErrorResponse{Error: ErrorBody{Category: "NotFound", Message: "not found"}})
			return
		}
		c.JSON(code, ErrorResponse{Error: ErrorBody{Category: "Internal", Message: "internal error"}})
		return
	}

	c.JSON(code, ErrorResponse{Error: ErrorBody{
		Category: e.Category,
		Message:  e.Message,
		Details:  errorDetails(e),
	}})
}

func respondValidation(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorBody{Category: "Validation", Message: message}})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

func errorDetails(e *service.Error) map[string]any {
	details := map[string]any{}
	if len(e.Outstanding) > 0 {
		outstanding := make([]ObligationResponse, 0, len(e.Outstanding))
		for _, o := range e.Outstanding {
			outstanding = append(outstanding, toObligationResponse(o))
		}
		details["outstanding"] = outstanding
	}
	if a := e.Availability; a != nil {
		details["violation"] = a.Violation
		details["reason"] = a.Reason
		details["allowed_days"] = a.AllowedDays
		details["allowed_hours"] = a.AllowedHours
	}
	if errors.Is(e, service.ErrOtpMismatch) {
		details["remaining_attempts"] = e.RemainingAttempts
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict

	case errors.Is(err, service.ErrAvailabilityViolation),
		errors.Is(err, service.ErrIncompleteProfile),
		errors.Is(err, service.ErrOtpMismatch):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrOutstandingPayment),
		errors.Is(err, service.ErrPaymentVerificationFailed):
		return http.StatusPaymentRequired

	case errors.Is(err, service.ErrOtpExpired):
		return http.StatusGone

	case errors.Is(err, service.ErrOtpAttemptsExhausted):
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID                string  `json:"id"`
	UserID            string  `json:"user_id"`
	UserName          string  `json:"user_name"`
	ContactPhone      string  `json:"contact_phone"`
	Address           string  `json:"address"`
	ProviderID        string  `json:"provider_id"`
	ProviderName      string  `json:"provider_name"`
	ProviderServiceID string  `json:"provider_service_id"`
	ServiceName       string  `json:"service_name"`
	ServiceDateTime   string  `json:"service_date_time"`
	Note              string  `json:"note,omitempty"`
	ApprovalStatus    string  `json:"approval_status"`
	DecisionMessage   string  `json:"decision_message,omitempty"`
	FulfillmentStatus string  `json:"fulfillment_status"`
	StartedAt         string  `json:"started_at,omitempty"`
	CompletedAt       string  `json:"completed_at,omitempty"`
	PriceAmount       float64 `json:"price_amount"`
	Rating            int     `json:"rating,omitempty"`
	Feedback          string  `json:"feedback,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:                b.ID,
		UserID:            b.UserID,
		UserName:          b.UserName,
		ContactPhone:      b.ContactPhone,
		Address:           b.Address,
		ProviderID:        b.ProviderID,
		ProviderName:      b.ProviderName,
		ProviderServiceID: b.ProviderServiceID,
		ServiceName:       b.ServiceName,
		ServiceDateTime:   formatTime(b.ServiceDateTime),
		Note:              b.Note,
		ApprovalStatus:    string(b.Approval),
		DecisionMessage:   b.DecisionMessage,
		FulfillmentStatus: string(b.Fulfillment),
		StartedAt:         formatTime(b.StartedAt),
		CompletedAt:       formatTime(b.CompletedAt),
		PriceAmount:       b.PriceAmount,
		Rating:            b.Rating,
		Feedback:          b.Feedback,
		CreatedAt:         formatTime(b.CreatedAt),
	}
}

func toBookingResponses(bookings []*domain.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return out
}

// ObligationResponse is the HTTP representation of a payment obligation.
type ObligationResponse struct {
	ID                  string  `json:"id"`
	BookingID           string  `json:"booking_id"`
	ServiceName         string  `json:"service_name"`
	ProviderName        string  `json:"provider_name"`
	Amount              float64 `json:"amount"`
	Status              string  `json:"status"`
	SettlementReference string  `json:"settlement_reference"`
	PaymentReference    string  `json:"payment_reference,omitempty"`
	PaidAt              string  `json:"paid_at,omitempty"`
}

func toObligationResponse(o *domain.PaymentObligation) ObligationResponse {
	return ObligationResponse{
		ID:                  o.ID,
		BookingID:           o.BookingID,
		ServiceName:         o.ServiceName,
		ProviderName:        o.ProviderName,
		Amount:              o.Amount,
		Status:              string(o.Status),
		SettlementReference: o.SettlementReference(),
		PaymentReference:    o.PaymentReference,
		PaidAt:              formatTime(o.PaidAt),
	}
}

// ReceiptResponse contains receipt details in the response.
type ReceiptResponse struct {
	ID               string  `json:"id"`
	BookingID        string  `json:"booking_id"`
	ServiceName      string  `json:"service_name"`
	ProviderName     string  `json:"provider_name"`
	Amount           float64 `json:"amount"`
	Rating           int     `json:"rating,omitempty"`
	PaymentReference string  `json:"payment_reference,omitempty"`
	DurationMinutes  float64 `json:"duration_minutes"`
	CompletedAt      string  `json:"completed_at"`
}

func toReceiptResponse(r *domain.Receipt) *ReceiptResponse {
	if r == nil {
		return nil
	}
	return &ReceiptResponse{
		ID:               r.ID,
		BookingID:        r.BookingID,
		ServiceName:      r.ServiceName,
		ProviderName:     r.ProviderName,
		Amount:           r.Amount,
		Rating:           r.Rating,
		PaymentReference: r.PaymentReference,
		DurationMinutes:  r.ServiceDuration.Minutes(),
		CompletedAt:      formatTime(r.CompletedAt),
	}
}

// TransferResponse is the HTTP representation of a transfer request.
type TransferResponse struct {
	ID                   string `json:"id"`
	BookingID            string `json:"booking_id"`
	OriginalProviderID   string `json:"original_provider_id"`
	OriginalProviderName string `json:"original_provider_name"`
	NewProviderID        string `json:"new_provider_id"`
	NewProviderName      string `json:"new_provider_name"`
	UserID               string `json:"user_id"`
	Reason               string `json:"reason,omitempty"`
	UserMessage          string `json:"user_message,omitempty"`
	ProviderMessage      string `json:"provider_message,omitempty"`
	Status               string `json:"status"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

func toTransferResponse(t *domain.TransferRequest) TransferResponse {
	return TransferResponse{
		ID:                   t.ID,
		BookingID:            t.BookingID,
		OriginalProviderID:   t.OriginalProviderID,
		OriginalProviderName: t.OriginalProviderName,
		NewProviderID:        t.NewProviderID,
		NewProviderName:      t.NewProviderName,
		UserID:               t.UserID,
		Reason:               t.Reason,
		UserMessage:          t.UserMessage,
		ProviderMessage:      t.ProviderMessage,
		Status:               string(t.Status),
		CreatedAt:            formatTime(t.CreatedAt),
		UpdatedAt:            formatTime(t.UpdatedAt),
	}
}

func toTransferResponses(transfers []*domain.TransferRequest) []TransferResponse {
	out := make([]TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, toTransferResponse(t))
	}
	return out
}

// DecisionRequest is the body of every accept/reject style call.
type DecisionRequest struct {
	Accept  *bool  `json:"accept"`
	Message string `json:"message"`
}

func bindDecision(c *gin.Context) (DecisionRequest, bool) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body")
		return req, false
	}
	if req.Accept == nil {
		respondValidation(c, "accept is required")
		return req, false
	}
	return req, true
}
