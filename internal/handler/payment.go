package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillment/internal/middleware"
	"fulfillment/internal/service"
)

// PaymentHandler handles HTTP requests for payment obligations.
type PaymentHandler struct {
	paymentGate *service.PaymentGate
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentGate *service.PaymentGate) *PaymentHandler {
	return &PaymentHandler{paymentGate: paymentGate}
}

// ListOutstanding handles GET /v1/payments/outstanding
func (h *PaymentHandler) ListOutstanding(c *gin.Context) {
	obligations, err := h.paymentGate.ListOutstanding(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ObligationResponse, 0, len(obligations))
	for _, o := range obligations {
		response = append(response, toObligationResponse(o))
	}
	respondJSON(c, http.StatusOK, response)
}

// SettleRequest is the HTTP request body for settling an obligation.
type SettleRequest struct {
	PaymentReference string `json:"payment_reference"`
}

// SettlementResponse is the HTTP response for a settlement.
type SettlementResponse struct {
	Obligation     ObligationResponse `json:"obligation"`
	Booking        BookingResponse    `json:"booking"`
	Receipt        *ReceiptResponse   `json:"receipt,omitempty"`
	AlreadySettled bool               `json:"already_settled"`
}

// Settle handles POST /v1/payments/:id/settle
func (h *PaymentHandler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body")
		return
	}

	res, err := h.paymentGate.Settle(c.Request.Context(), c.Param("id"), middleware.ActorID(c), req.PaymentReference)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, SettlementResponse{
		Obligation:     toObligationResponse(res.Obligation),
		Booking:        toBookingResponse(res.Booking),
		Receipt:        toReceiptResponse(res.Receipt),
		AlreadySettled: res.AlreadySettled,
	})
}
