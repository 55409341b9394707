package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fulfillment/internal/middleware"
	"fulfillment/internal/service"
)

// BookingHandler handles HTTP requests for bookings and their fulfillment.
type BookingHandler struct {
	bookingService *service.BookingService
	otpService     *service.OTPService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService, otpService *service.OTPService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, otpService: otpService}
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	ProviderServiceID string    `json:"provider_service_id"`
	ServiceDateTime   time.Time `json:"service_date_time"`
	Note              string    `json:"note"`
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body")
		return
	}

	booking, err := h.bookingService.Create(c.Request.Context(), service.CreateBookingRequest{
		UserID:            middleware.ActorID(c),
		ProviderServiceID: req.ProviderServiceID,
		ServiceDateTime:   req.ServiceDateTime,
		Note:              req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// ListBookings handles GET /v1/bookings?as=user|provider
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor := middleware.ActorID(c)
	ctx := c.Request.Context()

	var err error
	var result []BookingResponse
	switch c.DefaultQuery("as", "user") {
	case "user":
		bookings, listErr := h.bookingService.ListForUser(ctx, actor)
		result, err = toBookingResponses(bookings), listErr
	case "provider":
		bookings, listErr := h.bookingService.ListForProvider(ctx, actor)
		result, err = toBookingResponses(bookings), listErr
	default:
		respondValidation(c, "as must be user or provider")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, result)
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.Get(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// DecideBooking handles POST /v1/bookings/:id/decision
func (h *BookingHandler) DecideBooking(c *gin.Context) {
	req, ok := bindDecision(c)
	if !ok {
		return
	}

	booking, err := h.bookingService.Decide(c.Request.Context(), c.Param("id"), middleware.ActorID(c), *req.Accept, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ChallengeResponse describes an issued OTP. The code is only present
// when the booking's user reads it.
type ChallengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	BookingID   string `json:"booking_id"`
	Code        string `json:"code,omitempty"`
	ExpiresAt   string `json:"expires_at"`
	Attempts    int    `json:"attempts"`
}

// RequestServiceStart handles POST /v1/bookings/:id/start
func (h *BookingHandler) RequestServiceStart(c *gin.Context) {
	challenge, err := h.bookingService.RequestServiceStart(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, ChallengeResponse{
		ChallengeID: challenge.ID,
		BookingID:   challenge.BookingID,
		ExpiresAt:   formatTime(challenge.ExpiresAt),
		Attempts:    challenge.Attempts,
	})
}

// RevealOTP handles GET /v1/bookings/:id/otp
func (h *BookingHandler) RevealOTP(c *gin.Context) {
	challenge, err := h.otpService.Reveal(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	respondJSON(c, http.StatusOK, ChallengeResponse{
		ChallengeID: challenge.ID,
		BookingID:   challenge.BookingID,
		Code:        challenge.Code,
		ExpiresAt:   formatTime(challenge.ExpiresAt),
		Attempts:    challenge.Attempts,
	})
}

// ConfirmStartRequest is the HTTP request body for confirming a start.
type ConfirmStartRequest struct {
	Code string `json:"code"`
}

// ConfirmServiceStart handles POST /v1/bookings/:id/start/confirm
func (h *BookingHandler) ConfirmServiceStart(c *gin.Context) {
	var req ConfirmStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body")
		return
	}

	booking, err := h.bookingService.ConfirmServiceStart(c.Request.Context(), c.Param("id"), middleware.ActorID(c), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// CompletionResponse is the HTTP response for stop and completion calls.
type CompletionResponse struct {
	Booking         BookingResponse     `json:"booking"`
	PaymentRequired bool                `json:"payment_required"`
	Obligation      *ObligationResponse `json:"obligation,omitempty"`
	Receipt         *ReceiptResponse    `json:"receipt,omitempty"`
}

func toCompletionResponse(res *service.CompletionResult) CompletionResponse {
	out := CompletionResponse{
		Booking:         toBookingResponse(res.Booking),
		PaymentRequired: res.PaymentRequired,
		Receipt:         toReceiptResponse(res.Receipt),
	}
	if res.Obligation != nil {
		o := toObligationResponse(res.Obligation)
		out.Obligation = &o
	}
	return out
}

// RequestServiceStop handles POST /v1/bookings/:id/stop
func (h *BookingHandler) RequestServiceStop(c *gin.Context) {
	res, err := h.bookingService.RequestServiceStop(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCompletionResponse(res))
}

// CompleteRequest is the HTTP request body for initiating completion.
type CompleteRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// InitiateCompletion handles POST /v1/bookings/:id/complete
func (h *BookingHandler) InitiateCompletion(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body")
		return
	}

	res, err := h.bookingService.InitiateCompletion(c.Request.Context(), service.InitiateCompletionRequest{
		BookingID: c.Param("id"),
		UserID:    middleware.ActorID(c),
		Rating:    req.Rating,
		Feedback:  req.Feedback,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	code := http.StatusOK
	if res.PaymentRequired {
		code = http.StatusAccepted
	}
	respondJSON(c, code, toCompletionResponse(res))
}
