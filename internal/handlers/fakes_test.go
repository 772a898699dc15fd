package handlers

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bazaar-market/apiserver/internal/store"
	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// memoryAccounts backs both the user and profile repositories.
type memoryAccounts struct {
	mu       sync.Mutex
	users    map[uuid.UUID]types.User
	profiles map[uuid.UUID]types.Profile
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{
		users:    make(map[uuid.UUID]types.User),
		profiles: make(map[uuid.UUID]types.Profile),
	}
}

type userRepo struct{ *memoryAccounts }

type profileRepo struct{ *memoryAccounts }

func (r userRepo) Create(_ context.Context, user types.User, profile types.Profile) (types.User, types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return types.User{}, types.Profile{}, store.ErrConflict
		}
	}
	for _, p := range r.profiles {
		if p.Username == profile.Username {
			return types.User{}, types.Profile{}, store.ErrConflict
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now().UTC()
	profile.ID = user.ID
	r.users[user.ID] = user
	r.profiles[profile.ID] = profile
	return user, profile, nil
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r profileRepo) Get(_ context.Context, id uuid.UUID) (types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (r profileRepo) GetByUsername(_ context.Context, username string) (types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return types.Profile{}, store.ErrNotFound
}

func (r profileRepo) Usernames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make(map[uuid.UUID]string)
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			names[id] = p.Username
		}
	}
	return names, nil
}

func (r profileRepo) Update(_ context.Context, profile types.Profile) (types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.ID] = profile
	return profile, nil
}

func (r profileRepo) SetBanned(_ context.Context, id uuid.UUID, banned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Banned = banned
	r.profiles[id] = p
	return nil
}

type messageRepo struct {
	mu       sync.Mutex
	messages []types.Message
}

func (r *messageRepo) Create(_ context.Context, msg types.Message) (types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now().UTC()
	r.messages = append(r.messages, msg)
	return msg, nil
}

func (r *messageRepo) ListBetween(_ context.Context, a, b uuid.UUID) ([]types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.Message{}
	for _, m := range r.messages {
		if m.Involves(a, b) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *messageRepo) ListInvolving(_ context.Context, user uuid.UUID) ([]types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Message
	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.SenderID == user || m.ReceiverID == user {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *messageRepo) ListInvolvingSince(_ context.Context, user uuid.UUID, since time.Time) ([]types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Message
	for _, m := range r.messages {
		if (m.SenderID == user || m.ReceiverID == user) && m.CreatedAt.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

type listingRepo struct {
	mu       sync.Mutex
	listings map[uuid.UUID]types.Listing
}

func newListingRepo() *listingRepo {
	return &listingRepo{listings: make(map[uuid.UUID]types.Listing)}
}

func (r *listingRepo) Search(_ context.Context, _ types.ListingFilter, _, _ int) ([]types.Listing, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, l)
	}
	return out, len(out), nil
}

func (r *listingRepo) Get(_ context.Context, id uuid.UUID) (types.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return types.Listing{}, store.ErrNotFound
	}
	return l, nil
}

func (r *listingRepo) Create(_ context.Context, listing types.Listing) (types.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	r.listings[listing.ID] = listing
	return listing, nil
}

func (r *listingRepo) Update(_ context.Context, listing types.Listing) (types.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID] = listing
	return listing, nil
}

func (r *listingRepo) SetStatus(_ context.Context, id uuid.UUID, status types.ListingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	l.Status = status
	r.listings[id] = l
	return nil
}

func (r *listingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listings, id)
	return nil
}

type offerRepo struct {
	mu     sync.Mutex
	offers map[uuid.UUID]types.Offer
}

func newOfferRepo() *offerRepo {
	return &offerRepo{offers: make(map[uuid.UUID]types.Offer)}
}

func (r *offerRepo) Create(_ context.Context, offer types.Offer) (types.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer.ID = uuid.New()
	r.offers[offer.ID] = offer
	return offer, nil
}

func (r *offerRepo) Get(_ context.Context, id uuid.UUID) (types.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return types.Offer{}, store.ErrNotFound
	}
	return o, nil
}

func (r *offerRepo) ListByListing(_ context.Context, listingID uuid.UUID) ([]types.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Offer
	for _, o := range r.offers {
		if o.ListingID == listingID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *offerRepo) ListByBuyer(_ context.Context, buyerID uuid.UUID) ([]types.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Offer
	for _, o := range r.offers {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *offerRepo) Update(_ context.Context, id uuid.UUID, mutate func(offer *types.Offer) error) (types.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return types.Offer{}, store.ErrNotFound
	}
	if err := mutate(&o); err != nil {
		return types.Offer{}, err
	}
	r.offers[id] = o
	return o, nil
}

func (r *offerRepo) Accept(_ context.Context, id uuid.UUID, guard func(offer *types.Offer) error) (types.Offer, []types.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return types.Offer{}, nil, store.ErrNotFound
	}
	if err := guard(&o); err != nil {
		return types.Offer{}, nil, err
	}
	var rejected []types.Offer
	for sid, sibling := range r.offers {
		if sid == id || sibling.ListingID != o.ListingID {
			continue
		}
		if sibling.Status == types.OfferAccepted {
			return types.Offer{}, nil, store.ErrConflict
		}
		if sibling.Status == types.OfferPending {
			sibling.Status = types.OfferRejected
			r.offers[sid] = sibling
			rejected = append(rejected, sibling)
		}
	}
	r.offers[id] = o
	return o, rejected, nil
}

// imageBucket records uploaded objects and returns fake public URLs.
type imageBucket struct {
	mu   sync.Mutex
	keys []string
}

func (b *imageBucket) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string, _ bool) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return "http://images.test/" + key, nil
}
