package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository/memory"
)

// Monday 2026-10-12 08:00 UTC.
var baseTime = time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)

// wednesdaySlot is inside the Mon/Wed/Fri 09:00-18:00 window.
var wednesdaySlot = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu   sync.Mutex
	sent []Notification
}

func (s *recordingSink) Deliver(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) count(typ NotificationType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sent := range s.sent {
		if sent.Type == typ {
			n++
		}
	}
	return n
}

func (s *recordingSink) recipients(typ NotificationType) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, sent := range s.sent {
		if sent.Type == typ {
			out = append(out, sent.RecipientID)
		}
	}
	return out
}

type testEnv struct {
	store     *memory.Store
	dir       *memory.Directory
	clock     *fakeClock
	sink      *recordingSink
	verifier  *MockPaymentVerifier
	otp       *OTPService
	gate      *PaymentGate
	bookings  *BookingService
	transfers *TransferService
	codes     chan string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	dir := store.Directory()
	seedDirectory(dir)

	env := &testEnv{
		store:    store,
		dir:      dir,
		clock:    &fakeClock{now: baseTime},
		sink:     &recordingSink{},
		verifier: NewMockPaymentVerifier(),
		codes:    make(chan string, 16),
	}

	deps := Store{
		Tx:       store,
		Repos:    store.Repositories(),
		Listings: dir,
		Profiles: dir,
	}
	rules := Rules{OTPTTL: 10 * time.Minute, OTPMaxAttempts: 3, LeadTime: 30 * time.Minute, Location: time.UTC}
	notifications := NewNotificationService(nil, env.sink)
	receipts := NewReceiptService(notifications)

	env.otp = NewOTPService(deps, rules, notifications, nil, nil)
	env.otp.now = env.clock.Now
	env.otp.generate = func() (string, error) {
		select {
		case code := <-env.codes:
			return code, nil
		default:
			return "482913", nil
		}
	}
	env.gate = NewPaymentGate(deps, env.verifier, notifications, receipts, nil, nil)
	env.gate.now = env.clock.Now
	env.bookings = NewBookingService(deps, rules, env.otp, env.gate, notifications, receipts, nil, nil)
	env.bookings.now = env.clock.Now
	env.transfers = NewTransferService(deps, notifications, nil, nil)
	env.transfers.now = env.clock.Now
	return env
}

func seedDirectory(dir *memory.Directory) {
	dir.AddListing(&domain.ServiceListing{
		ID: "svc-p1", ProviderID: "p1", ProviderName: "Asha", ServiceName: "Plumbing",
		AllowedDays: []string{"Mon,Wed,Fri"}, AllowedHours: "09:00–18:00", PriceAmount: 500, Active: true,
	})
	dir.AddListing(&domain.ServiceListing{
		ID: "svc-p2", ProviderID: "p2", ProviderName: "Ravi", ServiceName: "plumbing",
		AllowedHours: "8 AM - 8 PM", PriceAmount: 650, Active: true,
	})
	dir.AddListing(&domain.ServiceListing{
		ID: "svc-p3", ProviderID: "p3", ProviderName: "Meera", ServiceName: "Electrical",
		PriceAmount: 300, Active: true,
	})
	dir.AddListing(&domain.ServiceListing{
		ID: "svc-free", ProviderID: "p1", ProviderName: "Asha", ServiceName: "Consultation",
		Active: true,
	})
	dir.AddProfile(&domain.UserProfile{
		UserID: "u1", Name: "Kiran", Email: "kiran@example.com", Phone: "+91 98765 43210", Address: "12 MG Road",
	})
	dir.AddProfile(&domain.UserProfile{
		UserID: "u2", Name: "Dev", Email: "dev@example.com", Phone: "+91 90000 00000",
	})
}

func (e *testEnv) create(t *testing.T, listingID string) *domain.Booking {
	t.Helper()
	b, err := e.bookings.Create(context.Background(), CreateBookingRequest{
		UserID:            "u1",
		ProviderServiceID: listingID,
		ServiceDateTime:   wednesdaySlot,
	})
	require.NoError(t, err)
	return b
}

func (e *testEnv) accepted(t *testing.T, listingID string) *domain.Booking {
	t.Helper()
	b := e.create(t, listingID)
	b, err := e.bookings.Decide(context.Background(), b.ID, b.ProviderID, true, "")
	require.NoError(t, err)
	return b
}

func (e *testEnv) started(t *testing.T, listingID string) *domain.Booking {
	t.Helper()
	b := e.accepted(t, listingID)
	ctx := context.Background()
	c, err := e.bookings.RequestServiceStart(ctx, b.ID, b.ProviderID)
	require.NoError(t, err)
	b, err = e.bookings.ConfirmServiceStart(ctx, b.ID, b.ProviderID, c.Code)
	require.NoError(t, err)
	return b
}

func (e *testEnv) booking(t *testing.T, id string) *domain.Booking {
	t.Helper()
	b, err := e.store.Repositories().Bookings.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

func requireKind(t *testing.T, err error, kind error) *Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var e *Error
	require.ErrorAs(t, err, &e)
	return e
}
