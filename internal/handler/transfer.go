package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillment/internal/domain"
	"fulfillment/internal/middleware"
	"fulfillment/internal/service"
)

// TransferHandler handles HTTP requests for provider transfers.
type TransferHandler struct {
	transferService *service.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferService *service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

// CreateTransferRequest is the HTTP request body for proposing a transfer.
type CreateTransferRequest struct {
	NewProviderID string `json:"new_provider_id"`
	Reason        string `json:"reason"`
}

// CreateTransfer handles POST /v1/bookings/:id/transfers
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body")
		return
	}

	transfer, err := h.transferService.Create(c.Request.Context(), service.CreateTransferRequest{
		BookingID:     c.Param("id"),
		ProviderID:    middleware.ActorID(c),
		NewProviderID: req.NewProviderID,
		Reason:        req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTransferResponse(transfer))
}

// ListTransfers handles GET /v1/transfers and GET /v1/bookings/:id/transfers
func (h *TransferHandler) ListTransfers(c *gin.Context) {
	ctx := c.Request.Context()
	actor := middleware.ActorID(c)

	bookingID := c.Param("id")
	if bookingID == "" {
		bookingID = c.Query("booking_id")
	}

	var transfers []*domain.TransferRequest
	var err error
	if bookingID != "" {
		transfers, err = h.transferService.ListForBooking(ctx, bookingID, actor)
	} else {
		transfers, err = h.transferService.ListForActor(ctx, actor)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTransferResponses(transfers))
}

// UserDecision handles POST /v1/transfers/:id/user-decision
func (h *TransferHandler) UserDecision(c *gin.Context) {
	req, ok := bindDecision(c)
	if !ok {
		return
	}

	transfer, err := h.transferService.UserDecision(c.Request.Context(), c.Param("id"), middleware.ActorID(c), *req.Accept, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTransferResponse(transfer))
}

// ProviderDecisionResponse is the HTTP response for the candidate
// provider's decision. Booking is present when the transfer was accepted.
type ProviderDecisionResponse struct {
	Transfer TransferResponse `json:"transfer"`
	Booking  *BookingResponse `json:"booking,omitempty"`
}

// ProviderDecision handles POST /v1/transfers/:id/provider-decision
func (h *TransferHandler) ProviderDecision(c *gin.Context) {
	req, ok := bindDecision(c)
	if !ok {
		return
	}

	res, err := h.transferService.ProviderDecision(c.Request.Context(), c.Param("id"), middleware.ActorID(c), *req.Accept, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	response := ProviderDecisionResponse{Transfer: toTransferResponse(res.Transfer)}
	if res.Booking != nil {
		b := toBookingResponse(res.Booking)
		response.Booking = &b
	}
	respondJSON(c, http.StatusOK, response)
}

// CancelTransfer handles POST /v1/transfers/:id/cancel
func (h *TransferHandler) CancelTransfer(c *gin.Context) {
	transfer, err := h.transferService.Cancel(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTransferResponse(transfer))
}
