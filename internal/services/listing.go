package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// ListingRepository defines persistence operations for listings.
type ListingRepository interface {
	Search(ctx context.Context, filter types.ListingFilter, offset, limit int) ([]types.Listing, int, error)
	Get(ctx context.Context, id uuid.UUID) (types.Listing, error)
	Create(ctx context.Context, listing types.Listing) (types.Listing, error)
	Update(ctx context.Context, listing types.Listing) (types.Listing, error)
	SetStatus(ctx context.Context, id uuid.UUID, status types.ListingStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListingImages are the images submitted with a new listing.
type ListingImages struct {
	Cover   *Upload
	Banner  *Upload
	Gallery []Upload
}

func (i ListingImages) count() int {
	n := len(i.Gallery)
	if i.Cover != nil {
		n++
	}
	if i.Banner != nil {
		n++
	}
	return n
}

// ListingDraft holds the owner-editable fields of a listing.
type ListingDraft struct {
	Title       string
	Description string
	Price       float64
	Category    string
	Condition   string
	Location    string
}

// validate checks the draft and returns it with the price rounded to cents.
func (d ListingDraft) validate() (ListingDraft, error) {
	if strings.TrimSpace(d.Title) == "" {
		return d, fmt.Errorf("%w: title", ErrMissingField)
	}
	price, err := normalizePrice(d.Price)
	if err != nil {
		return d, err
	}
	d.Price = price
	return d, nil
}

// ListingService encapsulates listing use-cases.
type ListingService struct {
	listings ListingRepository
	profiles ProfileRepository
	images   ImageStore
}

func NewListingService(listings ListingRepository, profiles ProfileRepository, images ImageStore) *ListingService {
	return &ListingService{listings: listings, profiles: profiles, images: images}
}

// Create uploads the images and stores a new active listing owned by owner.
// A failed cover upload aborts creation; other failed images are skipped as
// long as the listing still ends up with enough images.
func (s *ListingService) Create(ctx context.Context, owner uuid.UUID, draft ListingDraft, images ListingImages) (types.Listing, error) {
	draft, err := draft.validate()
	if err != nil {
		return types.Listing{}, err
	}
	if images.Cover == nil || images.count() < types.MinListingImages {
		return types.Listing{}, ErrTooFewImages
	}
	if _, err := activeProfile(ctx, s.profiles, owner); err != nil {
		return types.Listing{}, err
	}

	listing := types.Listing{
		ID:          uuid.New(),
		UserID:      owner,
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		Price:       draft.Price,
		Category:    strings.TrimSpace(draft.Category),
		Condition:   strings.TrimSpace(draft.Condition),
		Location:    strings.TrimSpace(draft.Location),
		Status:      types.ListingActive,
	}
	prefix := fmt.Sprintf("listings/%s/%s", owner, listing.ID)

	cover, err := uploadImage(ctx, s.images, prefix, *images.Cover)
	if err != nil {
		log.Printf("listings: cover upload for %s failed: %v", listing.ID, err)
		return types.Listing{}, fmt.Errorf("%w: cover: %v", ErrUploadFailed, err)
	}
	listing.CoverImage = cover

	if images.Banner != nil {
		if url, err := uploadImage(ctx, s.images, prefix, *images.Banner); err != nil {
			log.Printf("listings: banner upload for %s failed, skipping: %v", listing.ID, err)
		} else {
			listing.BannerImage = url
		}
	}
	for _, upload := range images.Gallery {
		url, err := uploadImage(ctx, s.images, prefix, upload)
		if err != nil {
			log.Printf("listings: gallery upload %q for %s failed, skipping: %v", upload.Filename, listing.ID, err)
			continue
		}
		listing.GalleryImages = append(listing.GalleryImages, url)
	}
	if listing.ImageCount() < types.MinListingImages {
		return types.Listing{}, fmt.Errorf("%w: %v", ErrUploadFailed, ErrTooFewImages)
	}

	return s.listings.Create(ctx, listing)
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (types.Listing, error) {
	return s.listings.Get(ctx, id)
}

// Search lists listings matching filter, newest first. Without an explicit
// status or owner, only active listings are returned.
func (s *ListingService) Search(ctx context.Context, filter types.ListingFilter, offset, limit int) ([]types.Listing, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if filter.Status == "" && filter.UserID == uuid.Nil {
		filter.Status = types.ListingActive
	}
	return s.listings.Search(ctx, filter, offset, limit)
}

// Update edits a listing on behalf of its owner.
func (s *ListingService) Update(ctx context.Context, actor, id uuid.UUID, draft ListingDraft) (types.Listing, error) {
	draft, err := draft.validate()
	if err != nil {
		return types.Listing{}, err
	}
	listing, err := s.ownedListing(ctx, actor, id)
	if err != nil {
		return types.Listing{}, err
	}

	listing.Title = strings.TrimSpace(draft.Title)
	listing.Description = strings.TrimSpace(draft.Description)
	listing.Price = draft.Price
	listing.Category = strings.TrimSpace(draft.Category)
	listing.Condition = strings.TrimSpace(draft.Condition)
	listing.Location = strings.TrimSpace(draft.Location)
	return s.listings.Update(ctx, listing)
}

// SetStatus changes the listing status. Owners toggle between active and
// sold; administrators may also hide or restore any listing. Owners cannot
// lift a hide.
func (s *ListingService) SetStatus(ctx context.Context, actor, id uuid.UUID, status types.ListingStatus) (types.Listing, error) {
	if !status.Valid() {
		return types.Listing{}, ErrInvalidStatus
	}
	profile, err := activeProfile(ctx, s.profiles, actor)
	if err != nil {
		return types.Listing{}, err
	}
	listing, err := s.listings.Get(ctx, id)
	if err != nil {
		return types.Listing{}, err
	}

	if !profile.IsAdmin {
		if listing.UserID != actor {
			return types.Listing{}, ErrForbidden
		}
		if status == types.ListingHidden || listing.Status == types.ListingHidden {
			return types.Listing{}, ErrForbidden
		}
	}

	if err := s.listings.SetStatus(ctx, id, status); err != nil {
		return types.Listing{}, err
	}
	return s.listings.Get(ctx, id)
}

// Delete removes a listing on behalf of its owner.
func (s *ListingService) Delete(ctx context.Context, actor, id uuid.UUID) error {
	if _, err := s.ownedListing(ctx, actor, id); err != nil {
		return err
	}
	return s.listings.Delete(ctx, id)
}

func (s *ListingService) ownedListing(ctx context.Context, actor, id uuid.UUID) (types.Listing, error) {
	if _, err := activeProfile(ctx, s.profiles, actor); err != nil {
		return types.Listing{}, err
	}
	listing, err := s.listings.Get(ctx, id)
	if err != nil {
		return types.Listing{}, err
	}
	if listing.UserID != actor {
		return types.Listing{}, ErrForbidden
	}
	return listing, nil
}
