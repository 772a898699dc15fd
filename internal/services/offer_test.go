package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

type offerFixture struct {
	svc     *OfferService
	offers  *fakeOffers
	events  *fakeEvents
	seller  types.Profile
	buyers  []types.Profile
	listing types.Listing
	now     time.Time
}

func newOfferFixture(buyerCount int) *offerFixture {
	seller := newProfile("seller")
	profiles := []types.Profile{seller}
	var buyers []types.Profile
	for i := 0; i < buyerCount; i++ {
		b := newProfile("buyer" + string(rune('a'+i)))
		buyers = append(buyers, b)
		profiles = append(profiles, b)
	}
	listing := types.Listing{
		ID:     uuid.New(),
		UserID: seller.ID,
		Title:  "Road bike",
		Price:  1000,
		Status: types.ListingActive,
	}
	f := &offerFixture{
		offers:  newFakeOffers(),
		events:  &fakeEvents{},
		seller:  seller,
		buyers:  buyers,
		listing: listing,
		now:     time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewOfferService(f.offers, newFakeListings(listing), newFakeProfiles(profiles...), f.events)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestCreateOfferPriceBounds(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(1)
	buyer := f.buyers[0].ID

	offer, err := f.svc.Create(ctx, buyer, f.listing.ID, 800, "would you take 800?")
	if err != nil {
		t.Fatalf("create 800: %v", err)
	}
	if offer.Status != types.OfferPending {
		t.Fatalf("expected pending, got %s", offer.Status)
	}
	if offer.SellerID != f.seller.ID {
		t.Fatalf("seller not copied from listing")
	}
	if !offer.ExpiresAt.Equal(f.now.Add(types.OfferTTL)) {
		t.Fatalf("unexpected expiry %s", offer.ExpiresAt)
	}

	for _, price := range []float64{1000, 1200, 0, -5, 999.996, 0.004, math.NaN(), math.Inf(1)} {
		if _, err := f.svc.Create(ctx, buyer, f.listing.ID, price, ""); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price %v: expected ErrInvalidPrice, got %v", price, err)
		}
	}
	if f.offers.creates != 1 {
		t.Fatalf("expected exactly one write, got %d", f.offers.creates)
	}
}

func TestCreateOfferRoundsToCents(t *testing.T) {
	f := newOfferFixture(1)

	offer, err := f.svc.Create(context.Background(), f.buyers[0].ID, f.listing.ID, 999.994, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if offer.OfferedPrice != 999.99 {
		t.Fatalf("expected 999.99, got %v", offer.OfferedPrice)
	}
}

func TestCreateOfferRejectsOwnListing(t *testing.T) {
	f := newOfferFixture(0)
	if _, err := f.svc.Create(context.Background(), f.seller.ID, f.listing.ID, 500, ""); !errors.Is(err, ErrOwnListing) {
		t.Fatalf("expected ErrOwnListing, got %v", err)
	}
}

func TestAcceptRejectsPendingSiblings(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(3)

	var ids []uuid.UUID
	for i, b := range f.buyers {
		o, err := f.svc.Create(ctx, b.ID, f.listing.ID, float64(700+i*50), "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, o.ID)
	}

	accepted, err := f.svc.Accept(ctx, f.seller.ID, ids[1])
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != types.OfferAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}

	all, _ := f.offers.ListByListing(ctx, f.listing.ID)
	acceptedCount := 0
	for _, o := range all {
		switch o.Status {
		case types.OfferAccepted:
			acceptedCount++
		case types.OfferRejected:
		default:
			t.Fatalf("offer %s left in %s", o.ID, o.Status)
		}
	}
	if acceptedCount != 1 {
		t.Fatalf("expected exactly one accepted offer, got %d", acceptedCount)
	}

	// three inserts, then one update per offer
	if got := f.events.count(); got != 6 {
		t.Fatalf("expected 6 events, got %d", got)
	}
}

func TestAcceptRequiresSellerAndOpenOffer(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(2)

	offer, err := f.svc.Create(ctx, f.buyers[0].ID, f.listing.ID, 900, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Accept(ctx, f.buyers[0].ID, offer.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("buyer accept: expected ErrForbidden, got %v", err)
	}

	f.now = f.now.Add(types.OfferTTL + time.Minute)
	if _, err := f.svc.Accept(ctx, f.seller.ID, offer.ID); !errors.Is(err, ErrOfferExpired) {
		t.Fatalf("expected ErrOfferExpired, got %v", err)
	}
	if _, err := f.svc.Reject(ctx, f.seller.ID, offer.ID); err != nil {
		t.Fatalf("expired offers can still be rejected: %v", err)
	}
}

func TestTerminalOffersCannotMove(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(1)

	offer, err := f.svc.Create(ctx, f.buyers[0].ID, f.listing.ID, 900, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Reject(ctx, f.seller.ID, offer.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if _, err := f.svc.Accept(ctx, f.seller.ID, offer.ID); !errors.Is(err, types.ErrIllegalTransition) {
		t.Fatalf("accept after reject: expected ErrIllegalTransition, got %v", err)
	}
	if _, err := f.svc.Counter(ctx, f.seller.ID, offer.ID, 950, ""); !errors.Is(err, types.ErrIllegalTransition) {
		t.Fatalf("counter after reject: expected ErrIllegalTransition, got %v", err)
	}
	got, _ := f.offers.Get(ctx, offer.ID)
	if got.Status != types.OfferRejected {
		t.Fatalf("status changed to %s", got.Status)
	}
}

func TestSecondAcceptOnListingConflicts(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(1)

	first, err := f.svc.Create(ctx, f.buyers[0].ID, f.listing.ID, 900, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Accept(ctx, f.seller.ID, first.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// A pending offer written after the accept, e.g. by a concurrent request.
	late := types.Offer{
		ListingID:    f.listing.ID,
		BuyerID:      f.buyers[0].ID,
		SellerID:     f.seller.ID,
		OfferedPrice: 950,
		Status:       types.OfferPending,
		ExpiresAt:    f.now.Add(types.OfferTTL),
	}
	late, _ = f.offers.Create(ctx, late)

	if _, err := f.svc.Accept(ctx, f.seller.ID, late.ID); !errors.Is(err, ErrListingHasAcceptedOffer) {
		t.Fatalf("expected ErrListingHasAcceptedOffer, got %v", err)
	}
}

func TestCounterOverwritesPrice(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(1)

	offer, err := f.svc.Create(ctx, f.buyers[0].ID, f.listing.ID, 700, "700?")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	countered, err := f.svc.Counter(ctx, f.seller.ID, offer.ID, 850, "850 and it's yours")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if countered.Status != types.OfferCountered {
		t.Fatalf("expected countered, got %s", countered.Status)
	}
	if countered.OfferedPrice != 850 || countered.Message != "850 and it's yours" {
		t.Fatalf("unexpected offer after counter: %+v", countered)
	}

	if _, err := f.svc.Accept(ctx, f.seller.ID, offer.ID); !errors.Is(err, types.ErrIllegalTransition) {
		t.Fatalf("accept after counter: expected ErrIllegalTransition, got %v", err)
	}
}

func TestCounterPriceBounds(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(1)

	offer, err := f.svc.Create(ctx, f.buyers[0].ID, f.listing.ID, 700, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, price := range []float64{0, -1, 1001, 1000.01, math.NaN(), math.Inf(1)} {
		if _, err := f.svc.Counter(ctx, f.seller.ID, offer.ID, price, ""); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price %v: expected ErrInvalidPrice, got %v", price, err)
		}
	}
	got, _ := f.offers.Get(ctx, offer.ID)
	if got.Status != types.OfferPending || got.OfferedPrice != 700 {
		t.Fatalf("offer modified by rejected counters: %+v", got)
	}
}

func TestListForListingVisibility(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(2)

	for _, b := range f.buyers {
		if _, err := f.svc.Create(ctx, b.ID, f.listing.ID, 600, ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := f.svc.ListForListing(ctx, f.seller.ID, f.listing.ID)
	if err != nil || len(all) != 2 {
		t.Fatalf("seller: expected 2 offers, got %d (%v)", len(all), err)
	}
	own, err := f.svc.ListForListing(ctx, f.buyers[0].ID, f.listing.ID)
	if err != nil || len(own) != 1 || own[0].BuyerID != f.buyers[0].ID {
		t.Fatalf("buyer: expected only own offer, got %+v (%v)", own, err)
	}

	if _, err := f.svc.Get(ctx, f.buyers[1].ID, own[0].ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other buyer, got %v", err)
	}
}
