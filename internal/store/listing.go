package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// ListingRepository handles persistence for listings.
type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

const listingColumns = `id, user_id, title, description, price, category, condition, location, status,
	cover_image, banner_image, gallery_images, created_at, updated_at`

// Search returns listings matching the filter, newest first, together with
// the total number of matches.
func (r *ListingRepository) Search(ctx context.Context, filter types.ListingFilter, offset, limit int) ([]types.Listing, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := listingWhere(filter)

	countQuery := `SELECT COUNT(1) FROM listings` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM listings%s
		ORDER BY created_at DESC, id
		OFFSET $%d LIMIT $%d`, listingColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	listings := make([]types.Listing, 0, limit)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

func listingWhere(filter types.ListingFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR category ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}
	if filter.Category != "" {
		add("category ILIKE $%d", filter.Category)
	}
	if filter.Condition != "" {
		add("condition = $%d", filter.Condition)
	}
	if filter.UserID != uuid.Nil {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.MinPrice > 0 {
		add("price >= $%d", filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		add("price <= $%d", filter.MaxPrice)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *ListingRepository) Get(ctx context.Context, id uuid.UUID) (types.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	return scanListing(r.db.QueryRowContext(ctx, query, id))
}

func (r *ListingRepository) Create(ctx context.Context, listing types.Listing) (types.Listing, error) {
	now := time.Now().UTC()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	if listing.Status == "" {
		listing.Status = types.ListingActive
	}

	galleryJSON, err := json.Marshal(nonNilStrings(listing.GalleryImages))
	if err != nil {
		return types.Listing{}, err
	}

	const query = `
		INSERT INTO listings (id, user_id, title, description, price, category, condition, location, status,
			cover_image, banner_image, gallery_images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14)`
	_, err = r.db.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.UserID,
		listing.Title,
		listing.Description,
		listing.Price,
		listing.Category,
		listing.Condition,
		listing.Location,
		string(listing.Status),
		listing.CoverImage,
		listing.BannerImage,
		string(galleryJSON),
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		return types.Listing{}, mapWriteError(err)
	}
	return listing, nil
}

// Update writes the owner-editable fields. Owner and creation time are
// never touched.
func (r *ListingRepository) Update(ctx context.Context, listing types.Listing) (types.Listing, error) {
	listing.UpdatedAt = time.Now().UTC()

	galleryJSON, err := json.Marshal(nonNilStrings(listing.GalleryImages))
	if err != nil {
		return types.Listing{}, err
	}

	const query = `
		UPDATE listings
		SET title = $1,
			description = $2,
			price = $3,
			category = $4,
			condition = $5,
			location = $6,
			cover_image = $7,
			banner_image = $8,
			gallery_images = $9::jsonb,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		listing.Title,
		listing.Description,
		listing.Price,
		listing.Category,
		listing.Condition,
		listing.Location,
		listing.CoverImage,
		listing.BannerImage,
		string(galleryJSON),
		listing.UpdatedAt,
		listing.ID,
	)
	if err != nil {
		return types.Listing{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Listing{}, err
	}
	return r.Get(ctx, listing.ID)
}

func (r *ListingRepository) SetStatus(ctx context.Context, id uuid.UUID, status types.ListingStatus) error {
	const query = `UPDATE listings SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *ListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM listings WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func scanListing(row rowScanner) (types.Listing, error) {
	var listing types.Listing
	var status string
	var galleryJSON []byte
	err := row.Scan(
		&listing.ID,
		&listing.UserID,
		&listing.Title,
		&listing.Description,
		&listing.Price,
		&listing.Category,
		&listing.Condition,
		&listing.Location,
		&status,
		&listing.CoverImage,
		&listing.BannerImage,
		&galleryJSON,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Listing{}, ErrNotFound
		}
		return types.Listing{}, err
	}
	listing.Status = types.ListingStatus(status)
	if len(galleryJSON) > 0 {
		if err := json.Unmarshal(galleryJSON, &listing.GalleryImages); err != nil {
			return types.Listing{}, fmt.Errorf("decode gallery images of listing %s: %w", listing.ID, err)
		}
	}
	return listing, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
