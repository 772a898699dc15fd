package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// OfferRepository handles persistence for offers.
type OfferRepository struct {
	db *sql.DB
}

func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `o.id, o.listing_id, o.buyer_id, o.seller_id, o.offered_price, o.message, o.status,
	o.created_at, o.expires_at, o.updated_at`

func (r *OfferRepository) Create(ctx context.Context, offer types.Offer) (types.Offer, error) {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	offer.UpdatedAt = offer.CreatedAt

	const query = `
		INSERT INTO offers (id, listing_id, buyer_id, seller_id, offered_price, message, status, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		offer.ID,
		offer.ListingID,
		offer.BuyerID,
		offer.SellerID,
		offer.OfferedPrice,
		offer.Message,
		offer.Status,
		offer.CreatedAt,
		offer.ExpiresAt,
		offer.UpdatedAt,
	)
	if err != nil {
		return types.Offer{}, mapWriteError(err)
	}
	return r.Get(ctx, offer.ID)
}

func (r *OfferRepository) Get(ctx context.Context, id uuid.UUID) (types.Offer, error) {
	query := `SELECT ` + offerColumns + `, p.username
		FROM offers o
		LEFT JOIN profiles p ON p.id = o.buyer_id
		WHERE o.id = $1`
	return scanOfferWithBuyer(r.db.QueryRowContext(ctx, query, id))
}

// ListByListing returns the offers on a listing, newest first, each
// decorated with the buyer's username.
func (r *OfferRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]types.Offer, error) {
	query := `SELECT ` + offerColumns + `, p.username
		FROM offers o
		LEFT JOIN profiles p ON p.id = o.buyer_id
		WHERE o.listing_id = $1
		ORDER BY o.created_at DESC, o.id`
	return r.list(ctx, query, listingID)
}

// ListByBuyer returns the offers made by buyer, newest first.
func (r *OfferRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]types.Offer, error) {
	query := `SELECT ` + offerColumns + `, p.username
		FROM offers o
		LEFT JOIN profiles p ON p.id = o.buyer_id
		WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC, o.id`
	return r.list(ctx, query, buyerID)
}

// Update locks the offer, lets mutate change it and writes price, message
// and status back. Nothing is written when mutate returns an error.
func (r *OfferRepository) Update(ctx context.Context, id uuid.UUID, mutate func(offer *types.Offer) error) (types.Offer, error) {
	var updated types.Offer
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		offer, err := lockOffer(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := mutate(&offer); err != nil {
			return err
		}
		if err := writeOffer(ctx, tx, &offer); err != nil {
			return err
		}
		updated = offer
		return nil
	})
	if err != nil {
		return types.Offer{}, err
	}
	return updated, nil
}

// Accept marks the offer accepted and every other pending offer on the same
// listing rejected, in one transaction. guard runs against the locked offer
// and must perform the status transition. ErrConflict is returned when the
// listing already has an accepted offer.
func (r *OfferRepository) Accept(ctx context.Context, id uuid.UUID, guard func(offer *types.Offer) error) (types.Offer, []types.Offer, error) {
	var accepted types.Offer
	var rejected []types.Offer
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var listingID uuid.UUID
		if err := tx.QueryRowContext(ctx, `SELECT listing_id FROM offers WHERE id = $1`, id).Scan(&listingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		// Serialises concurrent accepts on the same listing.
		if _, err := tx.ExecContext(ctx, `SELECT id FROM listings WHERE id = $1 FOR UPDATE`, listingID); err != nil {
			return err
		}

		offer, err := lockOffer(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := guard(&offer); err != nil {
			return err
		}

		var exists bool
		const acceptedQuery = `SELECT EXISTS (SELECT 1 FROM offers WHERE listing_id = $1 AND status = 'accepted' AND id <> $2)`
		if err := tx.QueryRowContext(ctx, acceptedQuery, listingID, id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}

		now := time.Now().UTC()
		siblingQuery := `
			UPDATE offers o
			SET status = 'rejected', updated_at = $3
			WHERE o.listing_id = $1 AND o.status = 'pending' AND o.id <> $2
			RETURNING ` + offerColumns
		rows, err := tx.QueryContext(ctx, siblingQuery, listingID, id, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			sibling, err := scanOffer(rows)
			if err != nil {
				return err
			}
			rejected = append(rejected, sibling)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if err := writeOffer(ctx, tx, &offer); err != nil {
			return err
		}
		accepted = offer
		return nil
	})
	if err != nil {
		return types.Offer{}, nil, err
	}
	return accepted, rejected, nil
}

func lockOffer(ctx context.Context, tx *sql.Tx, id uuid.UUID) (types.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers o WHERE o.id = $1 FOR UPDATE`
	return scanOffer(tx.QueryRowContext(ctx, query, id))
}

func writeOffer(ctx context.Context, q queryer, offer *types.Offer) error {
	offer.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE offers
		SET offered_price = $1,
			message = $2,
			status = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := q.ExecContext(ctx, query, offer.OfferedPrice, offer.Message, offer.Status, offer.UpdatedAt, offer.ID)
	if err != nil {
		return mapWriteError(err)
	}
	return expectAffected(result)
}

func (r *OfferRepository) list(ctx context.Context, query string, args ...any) ([]types.Offer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := make([]types.Offer, 0)
	for rows.Next() {
		offer, err := scanOfferWithBuyer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return offers, nil
}

func scanOffer(row rowScanner) (types.Offer, error) {
	var offer types.Offer
	err := row.Scan(
		&offer.ID,
		&offer.ListingID,
		&offer.BuyerID,
		&offer.SellerID,
		&offer.OfferedPrice,
		&offer.Message,
		&offer.Status,
		&offer.CreatedAt,
		&offer.ExpiresAt,
		&offer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Offer{}, ErrNotFound
		}
		return types.Offer{}, err
	}
	return offer, nil
}

func scanOfferWithBuyer(row rowScanner) (types.Offer, error) {
	var offer types.Offer
	var buyer sql.NullString
	err := row.Scan(
		&offer.ID,
		&offer.ListingID,
		&offer.BuyerID,
		&offer.SellerID,
		&offer.OfferedPrice,
		&offer.Message,
		&offer.Status,
		&offer.CreatedAt,
		&offer.ExpiresAt,
		&offer.UpdatedAt,
		&buyer,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Offer{}, ErrNotFound
		}
		return types.Offer{}, err
	}
	offer.BuyerUsername = buyer.String
	return offer, nil
}
