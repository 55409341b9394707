package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	"fulfillment/internal/repository"
)

//go:embed schema.sql
var schema string

// Store hands out repositories bound to the pool or to a single transaction.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables this service owns if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Repositories returns repositories that run each statement on the pool.
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.db)
}

func newRepositories(q Querier) repository.Repositories {
	return repository.Repositories{
		Bookings:    NewBookingRepository(q),
		Challenges:  NewChallengeRepository(q),
		Obligations: NewObligationRepository(q),
		Transfers:   NewTransferRepository(q),
		Locks:       &AdvisoryLocker{q: q},
	}
}

// WithinTx runs fn inside a transaction. fn's error rolls it back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, newRepositories(tx)); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// AdvisoryLocker takes transaction-scoped advisory locks keyed by user.
type AdvisoryLocker struct {
	q Querier
}

// LockUser blocks until no other transaction holds the user's lock.
func (l *AdvisoryLocker) LockUser(ctx context.Context, userID string) error {
	_, err := l.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "user:"+userID)
	return err
}

var (
	_ repository.Transactor = (*Store)(nil)
	_ repository.Locker     = (*AdvisoryLocker)(nil)
)
