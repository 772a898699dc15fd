package types

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account issued by the identity layer.
// It carries only credentials; everything displayed to other users
// lives on the Profile.
type User struct {
	// ID is the opaque, stable identifier of the account.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the sign-in address of the account.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Profile is the public, one-to-one companion of a User.
type Profile struct {
	// ID equals the owning User's ID.
	ID uuid.UUID `json:"id" db:"id"`

	// Username is the unique display handle.
	Username string `json:"username" db:"username"`

	// Name is the user's full name.
	Name string `json:"name" db:"name"`

	// Phone is the contact phone number shown to buyers.
	Phone string `json:"phone" db:"phone"`

	// City is the user's home city.
	City string `json:"city" db:"city"`

	// AvatarURL is the public URL of the profile picture, if any.
	AvatarURL *string `json:"avatar_url" db:"avatar_url"`

	// IsAdmin grants moderation privileges.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// Banned blocks the profile from signing in and from mutating data.
	// Only administrators change it.
	Banned bool `json:"banned" db:"banned"`

	// CreatedAt is the timestamp when the profile was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent profile edit.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
