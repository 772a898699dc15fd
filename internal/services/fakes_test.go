package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bazaar-market/apiserver/internal/store"
	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]types.Profile
}

func newFakeProfiles(profiles ...types.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: make(map[uuid.UUID]types.Profile)}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) Get(_ context.Context, id uuid.UUID) (types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) GetByUsername(_ context.Context, username string) (types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return types.Profile{}, store.ErrNotFound
}

func (f *fakeProfiles) Usernames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			names[id] = p.Username
		}
	}
	return names, nil
}

func (f *fakeProfiles) Update(_ context.Context, profile types.Profile) (types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[profile.ID]; !ok {
		return types.Profile{}, store.ErrNotFound
	}
	for id, p := range f.profiles {
		if id != profile.ID && p.Username == profile.Username {
			return types.Profile{}, store.ErrConflict
		}
	}
	f.profiles[profile.ID] = profile
	return profile, nil
}

func (f *fakeProfiles) SetBanned(_ context.Context, id uuid.UUID, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Banned = banned
	f.profiles[id] = p
	return nil
}

type fakeMessages struct {
	mu       sync.Mutex
	messages []types.Message
	creates  int
	clock    time.Time
}

func (f *fakeMessages) Create(_ context.Context, msg types.Message) (types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.clock.IsZero() {
		f.clock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	f.clock = f.clock.Add(time.Second)
	msg.ID = uuid.New()
	msg.CreatedAt = f.clock
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeMessages) ListBetween(_ context.Context, a, b uuid.UUID) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for _, m := range f.messages {
		if m.Involves(a, b) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) ListInvolving(_ context.Context, user uuid.UUID) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for _, m := range f.messages {
		if m.SenderID == user || m.ReceiverID == user {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Before(out[i]) })
	return out, nil
}

func (f *fakeMessages) ListInvolvingSince(_ context.Context, user uuid.UUID, since time.Time) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for _, m := range f.messages {
		if (m.SenderID == user || m.ReceiverID == user) && m.CreatedAt.After(since) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

type fakeListings struct {
	mu       sync.Mutex
	listings map[uuid.UUID]types.Listing
	creates  int
}

func newFakeListings(listings ...types.Listing) *fakeListings {
	f := &fakeListings{listings: make(map[uuid.UUID]types.Listing)}
	for _, l := range listings {
		f.listings[l.ID] = l
	}
	return f
}

func (f *fakeListings) Search(_ context.Context, filter types.ListingFilter, offset, limit int) ([]types.Listing, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Listing
	for _, l := range f.listings {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.UserID != uuid.Nil && l.UserID != filter.UserID {
			continue
		}
		out = append(out, l)
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeListings) Get(_ context.Context, id uuid.UUID) (types.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return types.Listing{}, store.ErrNotFound
	}
	return l, nil
}

func (f *fakeListings) Create(_ context.Context, listing types.Listing) (types.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	f.listings[listing.ID] = listing
	return listing, nil
}

func (f *fakeListings) Update(_ context.Context, listing types.Listing) (types.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[listing.ID]; !ok {
		return types.Listing{}, store.ErrNotFound
	}
	f.listings[listing.ID] = listing
	return listing, nil
}

func (f *fakeListings) SetStatus(_ context.Context, id uuid.UUID, status types.ListingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	l.Status = status
	f.listings[id] = l
	return nil
}

func (f *fakeListings) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.listings, id)
	return nil
}

type fakeOffers struct {
	mu      sync.Mutex
	offers  map[uuid.UUID]types.Offer
	creates int
}

func newFakeOffers() *fakeOffers {
	return &fakeOffers{offers: make(map[uuid.UUID]types.Offer)}
}

func (f *fakeOffers) Create(_ context.Context, offer types.Offer) (types.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	offer.ID = uuid.New()
	offer.UpdatedAt = offer.CreatedAt
	f.offers[offer.ID] = offer
	return offer, nil
}

func (f *fakeOffers) Get(_ context.Context, id uuid.UUID) (types.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return types.Offer{}, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeOffers) ListByListing(_ context.Context, listingID uuid.UUID) ([]types.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Offer
	for _, o := range f.offers {
		if o.ListingID == listingID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOffers) ListByBuyer(_ context.Context, buyerID uuid.UUID) ([]types.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Offer
	for _, o := range f.offers {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOffers) Update(_ context.Context, id uuid.UUID, mutate func(*types.Offer) error) (types.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return types.Offer{}, store.ErrNotFound
	}
	if err := mutate(&o); err != nil {
		return types.Offer{}, err
	}
	f.offers[id] = o
	return o, nil
}

func (f *fakeOffers) Accept(_ context.Context, id uuid.UUID, guard func(*types.Offer) error) (types.Offer, []types.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return types.Offer{}, nil, store.ErrNotFound
	}
	if err := guard(&o); err != nil {
		return types.Offer{}, nil, err
	}
	for _, other := range f.offers {
		if other.ID != id && other.ListingID == o.ListingID && other.Status == types.OfferAccepted {
			return types.Offer{}, nil, store.ErrConflict
		}
	}
	var rejected []types.Offer
	for sid, other := range f.offers {
		if sid != id && other.ListingID == o.ListingID && other.Status == types.OfferPending {
			other.Status = types.OfferRejected
			f.offers[sid] = other
			rejected = append(rejected, other)
		}
	}
	f.offers[id] = o
	return o, rejected, nil
}

type fakeSaved struct {
	mu       sync.Mutex
	saved    map[[2]uuid.UUID]bool
	listings *fakeListings
}

func (f *fakeSaved) Exists(_ context.Context, userID, listingID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[[2]uuid.UUID{userID, listingID}], nil
}

func (f *fakeSaved) Insert(_ context.Context, userID, listingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[[2]uuid.UUID{userID, listingID}] = true
	return nil
}

func (f *fakeSaved) Delete(_ context.Context, userID, listingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, [2]uuid.UUID{userID, listingID})
	return nil
}

func (f *fakeSaved) ListListings(ctx context.Context, userID uuid.UUID) ([]types.Listing, error) {
	f.mu.Lock()
	var ids []uuid.UUID
	for key := range f.saved {
		if key[0] == userID {
			ids = append(ids, key[1])
		}
	}
	f.mu.Unlock()

	out := make([]types.Listing, 0, len(ids))
	for _, id := range ids {
		l, err := f.listings.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

type fakeReports struct {
	mu      sync.Mutex
	reports map[uuid.UUID]types.Report
}

func (f *fakeReports) Create(_ context.Context, report types.Report) (types.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report.ID = uuid.New()
	report.CreatedAt = time.Now().UTC()
	f.reports[report.ID] = report
	return report, nil
}

func (f *fakeReports) List(_ context.Context, _ string, _, _ int) ([]types.Report, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Report, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (f *fakeReports) Get(_ context.Context, id uuid.UUID) (types.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return types.Report{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeReports) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.reports, id)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []types.RowEvent
}

func (f *fakeEvents) Publish(_ context.Context, event types.RowEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeImages refuses uploads whose body is "broken".
type fakeImages struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeImages) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string, _ bool) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if string(data) == "broken" {
		return "", errors.New("upload refused")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "http://images.test/" + key, nil
}

func newProfile(username string) types.Profile {
	return types.Profile{ID: uuid.New(), Username: username}
}
