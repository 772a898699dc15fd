package store

import (
	"context"
	"database/sql"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// SavedListingRepository handles the favorites join table.
type SavedListingRepository struct {
	db *sql.DB
}

func NewSavedListingRepository(db *sql.DB) *SavedListingRepository {
	return &SavedListingRepository{db: db}
}

func (r *SavedListingRepository) Exists(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM saved_listings WHERE user_id = $1 AND listing_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, listingID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Insert saves the listing. Saving an already saved listing is a no-op.
func (r *SavedListingRepository) Insert(ctx context.Context, userID, listingID uuid.UUID) error {
	const query = `
		INSERT INTO saved_listings (user_id, listing_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, listing_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, userID, listingID)
	return err
}

// Delete unsaves the listing. Deleting a missing row is a no-op.
func (r *SavedListingRepository) Delete(ctx context.Context, userID, listingID uuid.UUID) error {
	const query = `DELETE FROM saved_listings WHERE user_id = $1 AND listing_id = $2`
	_, err := r.db.ExecContext(ctx, query, userID, listingID)
	return err
}

// ListListings returns the listings saved by user, most recently saved first.
func (r *SavedListingRepository) ListListings(ctx context.Context, userID uuid.UUID) ([]types.Listing, error) {
	const query = `
		SELECT l.id, l.user_id, l.title, l.description, l.price, l.category, l.condition, l.location, l.status,
			l.cover_image, l.banner_image, l.gallery_images, l.created_at, l.updated_at
		FROM saved_listings s
		JOIN listings l ON l.id = s.listing_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]types.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}
