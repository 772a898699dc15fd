package services

import (
	"context"
	"errors"

	"github.com/bazaar-market/apiserver/internal/store"
	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	Create(ctx context.Context, user types.User, profile types.Profile) (types.User, types.Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register creates the account and its profile. A taken email or username
// yields ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, user types.User, profile types.Profile) (types.User, types.Profile, error) {
	profile.IsAdmin = false
	profile.Banned = false
	created, createdProfile, err := s.repo.Create(ctx, user, profile)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, types.Profile{}, ErrAlreadyExists
		}
		return types.User{}, types.Profile{}, err
	}
	return created, createdProfile, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}
