package services

import "errors"

var (
	// ErrEmptyContent is returned for blank or whitespace-only messages.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrSelfMessage is returned when a user messages themselves.
	ErrSelfMessage = errors.New("cannot message yourself")

	// ErrInvalidPrice is returned for prices outside the accepted range.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrMissingField is wrapped with the name of the missing field.
	ErrMissingField = errors.New("missing required field")

	// ErrTooFewImages is returned when a new listing carries fewer than
	// types.MinListingImages images.
	ErrTooFewImages = errors.New("a listing needs a cover and at least two more images")

	// ErrUploadFailed is returned when a required image could not be stored.
	ErrUploadFailed = errors.New("image upload failed")

	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrBanned is returned when a banned user attempts a write.
	ErrBanned = errors.New("account is banned")

	// ErrInvalidStatus is returned for unknown or disallowed listing states.
	ErrInvalidStatus = errors.New("invalid listing status")

	// ErrOwnListing is returned when a seller makes an offer on their own listing.
	ErrOwnListing = errors.New("cannot make an offer on your own listing")

	// ErrListingUnavailable is returned when a listing no longer accepts offers.
	ErrListingUnavailable = errors.New("listing is not available")

	// ErrOfferExpired is returned when acting on an offer past its expiry.
	ErrOfferExpired = errors.New("offer has expired")

	// ErrListingHasAcceptedOffer is returned when accepting a second offer
	// on the same listing.
	ErrListingHasAcceptedOffer = errors.New("listing already has an accepted offer")

	// ErrAlreadyExists is returned when an email or username is taken.
	ErrAlreadyExists = errors.New("already exists")
)
