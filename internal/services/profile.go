package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/bazaar-market/apiserver/internal/store"
	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Get(ctx context.Context, id uuid.UUID) (types.Profile, error)
	GetByUsername(ctx context.Context, username string) (types.Profile, error)
	Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	Update(ctx context.Context, profile types.Profile) (types.Profile, error)
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) error
}

// ProfileUpdate holds the self-service profile fields. Empty fields keep
// their current value.
type ProfileUpdate struct {
	Username string
	Name     string
	Phone    string
	City     string
}

// ProfileService encapsulates profile use-cases.
type ProfileService struct {
	repo   ProfileRepository
	images ImageStore
}

func NewProfileService(repo ProfileRepository, images ImageStore) *ProfileService {
	return &ProfileService{repo: repo, images: images}
}

func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	return s.repo.Get(ctx, id)
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (types.Profile, error) {
	return s.repo.GetByUsername(ctx, strings.TrimSpace(username))
}

// Update edits the actor's own profile. A failed avatar upload does not fail
// the edit: the profile keeps its previous avatar.
func (s *ProfileService) Update(ctx context.Context, actor uuid.UUID, update ProfileUpdate, avatar *Upload) (types.Profile, error) {
	profile, err := activeProfile(ctx, s.repo, actor)
	if err != nil {
		return types.Profile{}, err
	}

	if v := strings.TrimSpace(update.Username); v != "" {
		profile.Username = v
	}
	if v := strings.TrimSpace(update.Name); v != "" {
		profile.Name = v
	}
	if v := strings.TrimSpace(update.Phone); v != "" {
		profile.Phone = v
	}
	if v := strings.TrimSpace(update.City); v != "" {
		profile.City = v
	}

	if avatar != nil && len(avatar.Data) > 0 && s.images != nil {
		url, err := uploadImage(ctx, s.images, "avatars/"+actor.String(), *avatar)
		if err != nil {
			log.Printf("profiles: avatar upload for %s failed, keeping previous avatar: %v", actor, err)
		} else {
			profile.AvatarURL = &url
		}
	}

	updated, err := s.repo.Update(ctx, profile)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Profile{}, ErrAlreadyExists
		}
		return types.Profile{}, err
	}
	return updated, nil
}

// SetBanned changes the ban flag of target. Only administrators may call it,
// and never on themselves.
func (s *ProfileService) SetBanned(ctx context.Context, actor, target uuid.UUID, banned bool) (types.Profile, error) {
	if _, err := adminProfile(ctx, s.repo, actor); err != nil {
		return types.Profile{}, err
	}
	if actor == target {
		return types.Profile{}, ErrForbidden
	}
	if err := s.repo.SetBanned(ctx, target, banned); err != nil {
		return types.Profile{}, err
	}
	return s.repo.Get(ctx, target)
}
