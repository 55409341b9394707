package app

import (
	"go.uber.org/zap"

	"fulfillment/internal/service"
)

// Services is the wired service graph.
type Services struct {
	Bookings  *service.BookingService
	OTP       *service.OTPService
	Payments  *service.PaymentGate
	Transfers *service.TransferService
}

// ServiceDeps contains what NewServices needs.
type ServiceDeps struct {
	Store    service.Store
	Rules    service.Rules
	Verifier service.PaymentVerifier
	Sinks    []service.Sink
	Metrics  *service.Metrics
	Logger   *zap.Logger
}

// NewServices wires the services in dependency order.
func NewServices(deps ServiceDeps) *Services {
	notifications := service.NewNotificationService(deps.Logger, deps.Sinks...)
	receipts := service.NewReceiptService(notifications)

	otp := service.NewOTPService(deps.Store, deps.Rules, notifications, deps.Metrics, deps.Logger)
	payments := service.NewPaymentGate(deps.Store, deps.Verifier, notifications, receipts, deps.Metrics, deps.Logger)
	bookings := service.NewBookingService(deps.Store, deps.Rules, otp, payments, notifications, receipts, deps.Metrics, deps.Logger)
	transfers := service.NewTransferService(deps.Store, notifications, deps.Metrics, deps.Logger)

	return &Services{
		Bookings:  bookings,
		OTP:       otp,
		Payments:  payments,
		Transfers: transfers,
	}
}
