package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// UserRepository handles persistence for accounts.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the account and its profile in one transaction.
// The profile ID is taken from the new account.
func (r *UserRepository) Create(ctx context.Context, user types.User, profile types.Profile) (types.User, types.Profile, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	profile.CreatedAt = now
	profile.UpdatedAt = now

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const userQuery = `
			INSERT INTO users (email, password_hash, created_at)
			VALUES ($1, $2, $3)
			RETURNING id`
		if err := tx.QueryRowContext(ctx, userQuery, user.Email, user.PasswordHash, user.CreatedAt).Scan(&user.ID); err != nil {
			return mapWriteError(err)
		}

		profile.ID = user.ID
		const profileQuery = `
			INSERT INTO profiles (id, username, name, phone, city, avatar_url, is_admin, banned, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		_, err := tx.ExecContext(
			ctx,
			profileQuery,
			profile.ID,
			profile.Username,
			profile.Name,
			profile.Phone,
			profile.City,
			profile.AvatarURL,
			profile.IsAdmin,
			profile.Banned,
			profile.CreatedAt,
			profile.UpdatedAt,
		)
		return mapWriteError(err)
	})
	if err != nil {
		return types.User{}, types.Profile{}, err
	}
	return user, profile, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	const query = `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
