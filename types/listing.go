package types

import (
	"time"

	"github.com/google/uuid"
)

// ListingStatus is the visibility state of a listing.
type ListingStatus string

const (
	// ListingActive listings are visible in search and accept offers.
	ListingActive ListingStatus = "active"

	// ListingSold listings stay visible on the seller's profile only.
	ListingSold ListingStatus = "sold"

	// ListingHidden listings were taken down by an administrator.
	ListingHidden ListingStatus = "hidden"
)

// Valid reports whether s is one of the known listing states.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingSold, ListingHidden:
		return true
	default:
		return false
	}
}

// MinListingImages is the number of images a new listing must carry:
// one cover plus at least two more.
const MinListingImages = 3

// Listing is an item offered for sale by a single seller.
type Listing struct {
	// ID is the unique identifier of the listing.
	ID uuid.UUID `json:"id" db:"id"`

	// UserID is the owning seller. It never changes after creation.
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	// Price is the asking price. Always positive.
	Price float64 `json:"price" db:"price"`

	Category  string `json:"category" db:"category"`
	Condition string `json:"condition" db:"condition"`
	Location  string `json:"location" db:"location"`

	Status ListingStatus `json:"status" db:"status"`

	// CoverImage, BannerImage and GalleryImages are public object URLs.
	CoverImage    string   `json:"cover_image" db:"cover_image"`
	BannerImage   string   `json:"banner_image" db:"banner_image"`
	GalleryImages []string `json:"gallery_images" db:"gallery_images"`

	// CreatedAt is set once, at creation.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ImageCount returns the number of images attached to the listing.
func (l Listing) ImageCount() int {
	n := len(l.GalleryImages)
	if l.CoverImage != "" {
		n++
	}
	if l.BannerImage != "" {
		n++
	}
	return n
}

// ListingFilter narrows a listing search. Zero values are ignored.
type ListingFilter struct {
	// Query is matched case-insensitively as a substring of the title,
	// category and location.
	Query     string
	Category  string
	Condition string
	UserID    uuid.UUID
	Status    ListingStatus
	MinPrice  float64
	MaxPrice  float64
}

// SavedListing marks a listing as a favorite of a user.
type SavedListing struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ListingID uuid.UUID `json:"listing_id" db:"listing_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Report flags a listing for moderator review.
type Report struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ListingID uuid.UUID `json:"listing_id" db:"listing_id"`

	// ReporterID is empty when the reporter account no longer exists.
	ReporterID *uuid.UUID `json:"reporter_id,omitempty" db:"reporter_id"`

	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// ListingTitle is resolved for the moderation list.
	ListingTitle string `json:"listing_title,omitempty" db:"-"`
}
