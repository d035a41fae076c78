package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &Service{repo: repo}, nil
}

// EnsureUser makes sure a profile exists for the signed-in shopper.
func (s *Service) EnsureUser(ctx context.Context, identity Identity) (*UserDTO, error) {
	identity.UserID = strings.TrimSpace(identity.UserID)
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	identity.Name = strings.TrimSpace(identity.Name)
	if identity.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if identity.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email claim required")
	}
	user, err := s.repo.Upsert(ctx, identity)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already linked to another account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert user")
	}
	return FromModel(user), nil
}

func (s *Service) Get(ctx context.Context, id string) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*UserDTO, error) {
	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		updates["phone"] = strings.TrimSpace(*input.Phone)
	}
	if input.Addresses != nil {
		updates["addresses"] = types.Addresses(*input.Addresses)
	}
	if err := s.repo.UpdateProfile(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return s.Get(ctx, id)
}
