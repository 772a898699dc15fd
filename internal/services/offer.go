package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/bazaar-market/apiserver/internal/store"
	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// OfferRepository defines persistence operations for offers.
type OfferRepository interface {
	Create(ctx context.Context, offer types.Offer) (types.Offer, error)
	Get(ctx context.Context, id uuid.UUID) (types.Offer, error)
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]types.Offer, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]types.Offer, error)
	Update(ctx context.Context, id uuid.UUID, mutate func(offer *types.Offer) error) (types.Offer, error)
	Accept(ctx context.Context, id uuid.UUID, guard func(offer *types.Offer) error) (types.Offer, []types.Offer, error)
}

// OfferService runs the offer negotiation state machine.
type OfferService struct {
	offers   OfferRepository
	listings ListingRepository
	profiles ProfileRepository
	events   EventPublisher
	now      func() time.Time
}

func NewOfferService(offers OfferRepository, listings ListingRepository, profiles ProfileRepository, events EventPublisher) *OfferService {
	return &OfferService{
		offers:   offers,
		listings: listings,
		profiles: profiles,
		events:   events,
		now:      time.Now,
	}
}

// Create records a pending offer from buyer on a listing. The price, rounded
// to cents, must be positive and strictly below the asking price; nothing is
// written otherwise.
func (s *OfferService) Create(ctx context.Context, buyer, listingID uuid.UUID, price float64, message string) (types.Offer, error) {
	price, err := normalizePrice(price)
	if err != nil {
		return types.Offer{}, err
	}

	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return types.Offer{}, err
	}
	if price >= listing.Price {
		return types.Offer{}, ErrInvalidPrice
	}
	if listing.UserID == buyer {
		return types.Offer{}, ErrOwnListing
	}
	if listing.Status != types.ListingActive {
		return types.Offer{}, ErrListingUnavailable
	}
	if _, err := activeProfile(ctx, s.profiles, buyer); err != nil {
		return types.Offer{}, err
	}

	now := s.now().UTC()
	offer, err := s.offers.Create(ctx, types.Offer{
		ListingID:    listing.ID,
		BuyerID:      buyer,
		SellerID:     listing.UserID,
		OfferedPrice: price,
		Message:      strings.TrimSpace(message),
		Status:       types.OfferPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(types.OfferTTL),
	})
	if err != nil {
		log.Printf("offers: create on listing %s: %v", listingID, err)
		return types.Offer{}, err
	}

	publish(ctx, s.events, types.TableOffers, types.EventInsert, offer)
	return offer, nil
}

// Accept accepts the offer on behalf of its seller and rejects every other
// pending offer on the same listing.
func (s *OfferService) Accept(ctx context.Context, actor, offerID uuid.UUID) (types.Offer, error) {
	if _, err := activeProfile(ctx, s.profiles, actor); err != nil {
		return types.Offer{}, err
	}

	accepted, rejected, err := s.offers.Accept(ctx, offerID, func(offer *types.Offer) error {
		if offer.SellerID != actor {
			return ErrForbidden
		}
		if offer.Expired(s.now()) {
			return ErrOfferExpired
		}
		return offer.Transition(types.OfferAccepted)
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Offer{}, ErrListingHasAcceptedOffer
		}
		log.Printf("offers: accept %s: %v", offerID, err)
		return types.Offer{}, err
	}

	publish(ctx, s.events, types.TableOffers, types.EventUpdate, accepted)
	for _, sibling := range rejected {
		publish(ctx, s.events, types.TableOffers, types.EventUpdate, sibling)
	}
	return s.offers.Get(ctx, accepted.ID)
}

// Reject declines the offer on behalf of its seller. Sibling offers are
// untouched.
func (s *OfferService) Reject(ctx context.Context, actor, offerID uuid.UUID) (types.Offer, error) {
	if _, err := activeProfile(ctx, s.profiles, actor); err != nil {
		return types.Offer{}, err
	}

	rejected, err := s.offers.Update(ctx, offerID, func(offer *types.Offer) error {
		if offer.SellerID != actor {
			return ErrForbidden
		}
		return offer.Transition(types.OfferRejected)
	})
	if err != nil {
		log.Printf("offers: reject %s: %v", offerID, err)
		return types.Offer{}, err
	}

	publish(ctx, s.events, types.TableOffers, types.EventUpdate, rejected)
	return s.offers.Get(ctx, rejected.ID)
}

// Counter replaces the offered price and message in place and marks the
// offer countered. The previous price is not kept. The counter price must
// be positive and no higher than the asking price.
func (s *OfferService) Counter(ctx context.Context, actor, offerID uuid.UUID, price float64, message string) (types.Offer, error) {
	price, err := normalizePrice(price)
	if err != nil {
		return types.Offer{}, err
	}
	if _, err := activeProfile(ctx, s.profiles, actor); err != nil {
		return types.Offer{}, err
	}

	current, err := s.offers.Get(ctx, offerID)
	if err != nil {
		return types.Offer{}, err
	}
	listing, err := s.listings.Get(ctx, current.ListingID)
	if err != nil {
		return types.Offer{}, err
	}
	if price > listing.Price {
		return types.Offer{}, ErrInvalidPrice
	}

	countered, err := s.offers.Update(ctx, offerID, func(offer *types.Offer) error {
		if offer.SellerID != actor {
			return ErrForbidden
		}
		if offer.Expired(s.now()) {
			return ErrOfferExpired
		}
		if err := offer.Transition(types.OfferCountered); err != nil {
			return err
		}
		offer.OfferedPrice = price
		offer.Message = strings.TrimSpace(message)
		return nil
	})
	if err != nil {
		log.Printf("offers: counter %s: %v", offerID, err)
		return types.Offer{}, err
	}

	publish(ctx, s.events, types.TableOffers, types.EventUpdate, countered)
	return s.offers.Get(ctx, countered.ID)
}

// Get returns an offer visible to actor: its buyer or its seller.
func (s *OfferService) Get(ctx context.Context, actor, offerID uuid.UUID) (types.Offer, error) {
	offer, err := s.offers.Get(ctx, offerID)
	if err != nil {
		return types.Offer{}, err
	}
	if offer.BuyerID != actor && offer.SellerID != actor {
		return types.Offer{}, ErrForbidden
	}
	return offer, nil
}

// ListForListing returns the offers on a listing, newest first. The seller
// sees every offer; anyone else sees only the offers they made.
func (s *OfferService) ListForListing(ctx context.Context, actor, listingID uuid.UUID) ([]types.Offer, error) {
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	offers, err := s.offers.ListByListing(ctx, listingID)
	if err != nil {
		log.Printf("offers: list for listing %s: %v", listingID, err)
		return nil, err
	}
	if listing.UserID == actor {
		return offers, nil
	}

	own := make([]types.Offer, 0)
	for _, offer := range offers {
		if offer.BuyerID == actor {
			own = append(own, offer)
		}
	}
	return own, nil
}

// ListForBuyer returns the offers buyer made, newest first.
func (s *OfferService) ListForBuyer(ctx context.Context, buyer uuid.UUID) ([]types.Offer, error) {
	return s.offers.ListByBuyer(ctx, buyer)
}
