// Package memory is an in-process implementation of every repository. All
// operations share one mutex; WithinTx holds it for the whole callback and
// restores a snapshot when the callback fails.
package memory

import (
	"context"
	"sync"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

type state struct {
	bookings    map[string]*domain.Booking
	challenges  map[string]*domain.OTPChallenge
	obligations map[string]*domain.PaymentObligation
	transfers   map[string]*domain.TransferRequest
	listings    map[string]*domain.ServiceListing
	profiles    map[string]*domain.UserProfile
}

func newState() *state {
	return &state{
		bookings:    make(map[string]*domain.Booking),
		challenges:  make(map[string]*domain.OTPChallenge),
		obligations: make(map[string]*domain.PaymentObligation),
		transfers:   make(map[string]*domain.TransferRequest),
		listings:    make(map[string]*domain.ServiceListing),
		profiles:    make(map[string]*domain.UserProfile),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.bookings {
		cp := *v
		c.bookings[k] = &cp
	}
	for k, v := range s.challenges {
		cp := *v
		c.challenges[k] = &cp
	}
	for k, v := range s.obligations {
		cp := *v
		c.obligations[k] = &cp
	}
	for k, v := range s.transfers {
		cp := *v
		c.transfers[k] = &cp
	}
	for k, v := range s.listings {
		cp := *v
		c.listings[k] = &cp
	}
	for k, v := range s.profiles {
		cp := *v
		c.profiles[k] = &cp
	}
	return c
}

// Store holds every aggregate in memory.
type Store struct {
	mu   sync.Mutex
	data *state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: newState()}
}

// do runs f against the current state, taking the lock unless the caller
// already holds it inside WithinTx.
func (s *Store) do(inTx bool, f func(st *state) error) error {
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return f(s.data)
}

func (s *Store) repos(inTx bool) repository.Repositories {
	return repository.Repositories{
		Bookings:    &BookingRepository{store: s, inTx: inTx},
		Challenges:  &ChallengeRepository{store: s, inTx: inTx},
		Obligations: &ObligationRepository{store: s, inTx: inTx},
		Transfers:   &TransferRepository{store: s, inTx: inTx},
		Locks:       noopLocker{},
	}
}

// Repositories returns repositories that each take the store lock per call.
func (s *Store) Repositories() repository.Repositories {
	return s.repos(false)
}

// WithinTx implements repository.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, s.repos(true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// noopLocker satisfies repository.Locker; WithinTx already serializes everything.
type noopLocker struct{}

func (noopLocker) LockUser(context.Context, string) error { return nil }

var _ repository.Transactor = (*Store)(nil)
