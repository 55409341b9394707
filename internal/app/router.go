package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"fulfillment/internal/handler"
	"fulfillment/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	Services       *Services
	Responses      middleware.ResponseStore
	NewRelicApp    *newrelic.Application
	Logger         *zap.Logger
	JWTSecret      []byte
	AllowedOrigins []string
	// Metrics serves /metrics; omitted when nil.
	Metrics http.Handler
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	bookingHandler := handler.NewBookingHandler(deps.Services.Bookings, deps.Services.OTP)
	paymentHandler := handler.NewPaymentHandler(deps.Services.Payments)
	transferHandler := handler.NewTransferHandler(deps.Services.Transfers)

	v1 := router.Group("/v1")
	v1.Use(
		middleware.AuthMiddleware(deps.JWTSecret),
		middleware.NewRelicAttributes(),
		middleware.IdempotencyMiddleware(deps.Responses, logger),
	)
	{
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/decision", bookingHandler.DecideBooking)
			bookings.POST("/:id/start", bookingHandler.RequestServiceStart)
			bookings.GET("/:id/otp", bookingHandler.RevealOTP)
			bookings.POST("/:id/start/confirm", bookingHandler.ConfirmServiceStart)
			bookings.POST("/:id/stop", bookingHandler.RequestServiceStop)
			bookings.POST("/:id/complete", bookingHandler.InitiateCompletion)
			bookings.POST("/:id/transfers", transferHandler.CreateTransfer)
			bookings.GET("/:id/transfers", transferHandler.ListTransfers)
		}

		payments := v1.Group("/payments")
		{
			payments.GET("/outstanding", paymentHandler.ListOutstanding)
			payments.POST("/:id/settle", paymentHandler.Settle)
		}

		transfers := v1.Group("/transfers")
		{
			transfers.GET("", transferHandler.ListTransfers)
			transfers.POST("/:id/user-decision", transferHandler.UserDecision)
			transfers.POST("/:id/provider-decision", transferHandler.ProviderDecision)
			transfers.POST("/:id/cancel", transferHandler.CancelTransfer)
		}
	}

	return router
}
