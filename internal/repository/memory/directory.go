package memory

import (
	"context"
	"strings"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// Directory serves listings and profiles from the store.
type Directory struct {
	store *Store
}

// Directory returns the listing/profile directory backed by s.
func (s *Store) Directory() *Directory {
	return &Directory{store: s}
}

// AddListing adds or replaces a listing.
func (d *Directory) AddListing(listing *domain.ServiceListing) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	cp := *listing
	d.store.data.listings[listing.ID] = &cp
}

// AddProfile adds or replaces a profile.
func (d *Directory) AddProfile(profile *domain.UserProfile) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	cp := *profile
	d.store.data.profiles[profile.UserID] = &cp
}

func (d *Directory) GetProviderServiceByID(ctx context.Context, id string) (*domain.ServiceListing, error) {
	var out *domain.ServiceListing
	err := d.store.do(false, func(st *state) error {
		l, ok := st.listings[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *l
		out = &cp
		return nil
	})
	return out, err
}

func (d *Directory) FindActiveListing(ctx context.Context, providerID, serviceName string) (*domain.ServiceListing, error) {
	var out *domain.ServiceListing
	err := d.store.do(false, func(st *state) error {
		for _, l := range st.listings {
			if l.ProviderID == providerID && l.Active && strings.EqualFold(l.ServiceName, serviceName) {
				cp := *l
				out = &cp
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (d *Directory) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var out *domain.UserProfile
	err := d.store.do(false, func(st *state) error {
		p, ok := st.profiles[userID]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

var (
	_ repository.ListingDirectory = (*Directory)(nil)
	_ repository.ProfileDirectory = (*Directory)(nil)
)
