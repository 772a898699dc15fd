package services

import (
	"context"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// SavedListingRepository defines persistence operations for favorites.
type SavedListingRepository interface {
	Exists(ctx context.Context, userID, listingID uuid.UUID) (bool, error)
	Insert(ctx context.Context, userID, listingID uuid.UUID) error
	Delete(ctx context.Context, userID, listingID uuid.UUID) error
	ListListings(ctx context.Context, userID uuid.UUID) ([]types.Listing, error)
}

// SavedService toggles favorites.
type SavedService struct {
	saved    SavedListingRepository
	listings ListingRepository
}

func NewSavedService(saved SavedListingRepository, listings ListingRepository) *SavedService {
	return &SavedService{saved: saved, listings: listings}
}

func (s *SavedService) IsSaved(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	return s.saved.Exists(ctx, userID, listingID)
}

// Toggle saves the listing if it is not saved and unsaves it otherwise.
// It returns the new state. Two racing toggles may both insert; the second
// insert is a no-op.
func (s *SavedService) Toggle(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	saved, err := s.saved.Exists(ctx, userID, listingID)
	if err != nil {
		return false, err
	}
	if saved {
		if err := s.saved.Delete(ctx, userID, listingID); err != nil {
			return true, err
		}
		return false, nil
	}

	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return false, err
	}
	if err := s.saved.Insert(ctx, userID, listingID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SavedService) List(ctx context.Context, userID uuid.UUID) ([]types.Listing, error) {
	return s.saved.ListListings(ctx, userID)
}
