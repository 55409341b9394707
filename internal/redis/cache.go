package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// ListingCacheTTL bounds how stale a cached price or availability window can be.
const ListingCacheTTL = 60 * time.Second

const listingCachePrefix = "cache:listing:"

// CachedListing represents a cached service listing.
type CachedListing struct {
	ID           string   `json:"id"`
	ProviderID   string   `json:"provider_id"`
	ProviderName string   `json:"provider_name"`
	ServiceName  string   `json:"service_name"`
	AllowedDays  []string `json:"allowed_days"`
	AllowedHours string   `json:"allowed_hours"`
	PriceAmount  float64  `json:"price_amount"`
	Active       bool     `json:"active"`
}

func toCached(l *domain.ServiceListing) *CachedListing {
	return &CachedListing{
		ID:           l.ID,
		ProviderID:   l.ProviderID,
		ProviderName: l.ProviderName,
		ServiceName:  l.ServiceName,
		AllowedDays:  l.AllowedDays,
		AllowedHours: l.AllowedHours,
		PriceAmount:  l.PriceAmount,
		Active:       l.Active,
	}
}

func (c *CachedListing) toDomain() *domain.ServiceListing {
	return &domain.ServiceListing{
		ID:           c.ID,
		ProviderID:   c.ProviderID,
		ProviderName: c.ProviderName,
		ServiceName:  c.ServiceName,
		AllowedDays:  c.AllowedDays,
		AllowedHours: c.AllowedHours,
		PriceAmount:  c.PriceAmount,
		Active:       c.Active,
	}
}

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetListing retrieves a listing from cache. Returns nil on a miss.
func (s *CacheStore) GetListing(ctx context.Context, id string) (*CachedListing, error) {
	data, err := s.client.Get(ctx, listingCachePrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var listing CachedListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// SetListing stores a listing in cache.
func (s *CacheStore) SetListing(ctx context.Context, listing *CachedListing) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, listingCachePrefix+listing.ID, data, ListingCacheTTL).Err()
}

// InvalidateListing removes a listing from cache.
func (s *CacheStore) InvalidateListing(ctx context.Context, id string) error {
	return s.client.Del(ctx, listingCachePrefix+id).Err()
}

// ListingCache is a read-through cache in front of a ListingDirectory.
// Lookups by provider and service name are not cached.
type ListingCache struct {
	cache  CacheStoreInterface
	next   repository.ListingDirectory
	logger *zap.Logger
}

// NewListingCache wraps next with cache.
func NewListingCache(cache CacheStoreInterface, next repository.ListingDirectory, logger *zap.Logger) *ListingCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingCache{cache: cache, next: next, logger: logger}
}

// GetProviderServiceByID serves from cache, falling back to the directory.
// Cache errors degrade to a directory read.
func (c *ListingCache) GetProviderServiceByID(ctx context.Context, id string) (*domain.ServiceListing, error) {
	cached, err := c.cache.GetListing(ctx, id)
	if err != nil {
		c.logger.Warn("listing cache read failed", zap.String("listing_id", id), zap.Error(err))
	}
	if cached != nil {
		return cached.toDomain(), nil
	}

	listing, err := c.next.GetProviderServiceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetListing(ctx, toCached(listing)); err != nil {
		c.logger.Warn("listing cache write failed", zap.String("listing_id", id), zap.Error(err))
	}
	return listing, nil
}

// FindActiveListing delegates to the directory.
func (c *ListingCache) FindActiveListing(ctx context.Context, providerID, serviceName string) (*domain.ServiceListing, error) {
	return c.next.FindActiveListing(ctx, providerID, serviceName)
}
