package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// ProfileRepository handles persistence for public profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, username, name, phone, city, avatar_url, is_admin, banned, created_at, updated_at`

func (r *ProfileRepository) Get(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, id))
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (types.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE username = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, username))
}

// Usernames resolves display handles for the given ids. Unknown ids are
// absent from the result.
func (r *ProfileRepository) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT id, username FROM profiles WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, err
		}
		names[id] = username
	}
	return names, rows.Err()
}

// Update writes the self-service fields of a profile.
func (r *ProfileRepository) Update(ctx context.Context, profile types.Profile) (types.Profile, error) {
	profile.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE profiles
		SET username = $1,
			name = $2,
			phone = $3,
			city = $4,
			avatar_url = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		profile.Username,
		profile.Name,
		profile.Phone,
		profile.City,
		profile.AvatarURL,
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return types.Profile{}, mapWriteError(err)
	}
	if err := expectAffected(result); err != nil {
		return types.Profile{}, err
	}
	return r.Get(ctx, profile.ID)
}

func (r *ProfileRepository) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	const query = `UPDATE profiles SET banned = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, banned, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func scanProfile(row rowScanner) (types.Profile, error) {
	var profile types.Profile
	var avatar sql.NullString
	err := row.Scan(
		&profile.ID,
		&profile.Username,
		&profile.Name,
		&profile.Phone,
		&profile.City,
		&avatar,
		&profile.IsAdmin,
		&profile.Banned,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	if avatar.Valid {
		profile.AvatarURL = &avatar.String
	}
	return profile, nil
}
