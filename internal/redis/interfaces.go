package redis

import (
	"context"
	"time"

	"fulfillment/internal/middleware"
	"fulfillment/internal/repository"
	"fulfillment/internal/service"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// CacheStoreInterface defines the interface for listing caching.
type CacheStoreInterface interface {
	GetListing(ctx context.Context, id string) (*CachedListing, error)
	SetListing(ctx context.Context, listing *CachedListing) error
	InvalidateListing(ctx context.Context, id string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface          = (*LockStore)(nil)
	_ CacheStoreInterface         = (*CacheStore)(nil)
	_ repository.ListingDirectory = (*ListingCache)(nil)
	_ middleware.ResponseStore    = (*ResponseStore)(nil)
	_ service.Lease               = (*LockStore)(nil)
)
