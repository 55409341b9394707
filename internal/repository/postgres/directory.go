package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// Directory reads provider listings and user profiles. Both tables are
// owned by the catalog and identity services; this service never writes them.
type Directory struct {
	db *sql.DB
}

// NewDirectory creates a new Directory.
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

const listingColumns = `id, provider_id, provider_name, service_name, allowed_days, allowed_hours, price_amount, active`

// GetProviderServiceByID retrieves a listing by ID.
func (d *Directory) GetProviderServiceByID(ctx context.Context, id string) (*domain.ServiceListing, error) {
	query := `SELECT ` + listingColumns + ` FROM provider_services WHERE id = $1`
	return d.getListing(ctx, query, id)
}

// FindActiveListing retrieves a provider's active listing for a service,
// matching the name case-insensitively.
func (d *Directory) FindActiveListing(ctx context.Context, providerID, serviceName string) (*domain.ServiceListing, error) {
	query := `SELECT ` + listingColumns + ` FROM provider_services
		WHERE provider_id = $1 AND lower(service_name) = lower($2) AND active
		LIMIT 1`
	return d.getListing(ctx, query, providerID, serviceName)
}

func (d *Directory) getListing(ctx context.Context, query string, args ...any) (*domain.ServiceListing, error) {
	var l domain.ServiceListing
	var hours sql.NullString

	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&l.ID,
		&l.ProviderID,
		&l.ProviderName,
		&l.ServiceName,
		pq.Array(&l.AllowedDays),
		&hours,
		&l.PriceAmount,
		&l.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	l.AllowedHours = hours.String
	return &l, nil
}

// GetUserProfile retrieves a user's contact profile.
func (d *Directory) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `SELECT user_id, name, email, phone, address, updated_at FROM user_profiles WHERE user_id = $1`

	var p domain.UserProfile
	var phone, address sql.NullString
	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.Name,
		&p.Email,
		&phone,
		&address,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	p.Phone = phone.String
	p.Address = address.String
	return &p, nil
}

var (
	_ repository.ListingDirectory = (*Directory)(nil)
	_ repository.ProfileDirectory = (*Directory)(nil)
)
