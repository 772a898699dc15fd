package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OfferTTL is how long a new offer stays open.
const OfferTTL = 7 * 24 * time.Hour

// ErrIllegalTransition is returned when an offer cannot move to the
// requested status from its current one.
var ErrIllegalTransition = errors.New("illegal offer transition")

// Offer is a buyer-proposed price against a specific listing.
type Offer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ListingID uuid.UUID `json:"listing_id" db:"listing_id"`
	BuyerID   uuid.UUID `json:"buyer_id" db:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id" db:"seller_id"`

	// OfferedPrice is the current price on the table. A counter offer
	// overwrites it; earlier values are not retained.
	OfferedPrice float64 `json:"offered_price" db:"offered_price"`

	// Message is optional free text accompanying the price.
	Message string `json:"message" db:"message"`

	Status OfferStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// BuyerUsername is resolved for list views.
	BuyerUsername string `json:"buyer_username,omitempty" db:"-"`
}

// Expired reports whether the offer is past its expiry at the given time.
func (o Offer) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// Transition moves the offer to the given status, or returns
// ErrIllegalTransition and leaves the offer untouched.
func (o *Offer) Transition(to OfferStatus) error {
	if !o.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, to)
	}
	o.Status = to
	return nil
}

// OfferStatus is the negotiation state of an offer.
type OfferStatus int

const (
	// OfferPending is the initial state: the seller has not answered yet.
	OfferPending OfferStatus = iota

	// OfferAccepted means the seller took the offer. At most one offer per
	// listing is accepted at any time.
	OfferAccepted

	// OfferRejected means the seller declined, or accepted a sibling offer.
	OfferRejected

	// OfferCountered means the seller answered with a different price.
	// The buyer responds by making a new offer.
	OfferCountered
)

// offerTransitions lists the legal next states for each state.
// States missing from the table are terminal.
var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferPending: {OfferAccepted, OfferRejected, OfferCountered},
}

// CanTransition reports whether to is a legal next state.
func (s OfferStatus) CanTransition(to OfferStatus) bool {
	for _, next := range offerTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OfferStatus) Terminal() bool {
	return len(offerTransitions[s]) == 0
}

// String returns the lowercase name stored in the database and
// used in API responses.
func (s OfferStatus) String() string {
	switch s {
	case OfferPending:
		return "pending"
	case OfferAccepted:
		return "accepted"
	case OfferRejected:
		return "rejected"
	case OfferCountered:
		return "countered"
	default:
		return "unknown"
	}
}

// ParseOfferStatus is the inverse of String.
func ParseOfferStatus(raw string) (OfferStatus, error) {
	switch raw {
	case "pending":
		return OfferPending, nil
	case "accepted":
		return OfferAccepted, nil
	case "rejected":
		return OfferRejected, nil
	case "countered":
		return OfferCountered, nil
	default:
		return 0, fmt.Errorf("unknown offer status %q", raw)
	}
}

func (s OfferStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *OfferStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseOfferStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s OfferStatus) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *OfferStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into OfferStatus", src)
	}
	parsed, err := ParseOfferStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
