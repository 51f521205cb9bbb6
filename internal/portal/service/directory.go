package service

import (
	"context"
	"errors"

	"github.com/tramita/portal/internal/portal/domain"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/pkg/slogx"
	"github.com/tramita/portal/pkg/tokenx"
)

// ErrUnknownRole reports a role outside the portal's two-tier model.
var ErrUnknownRole = errors.New("unknown role")

// DirectoryService reads and administers user records.
type DirectoryService struct {
	Store store.Store
}

// Profile returns the user's own view of their record.
func (s *DirectoryService) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	user, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Profile{}, domain.ErrUserNotFound
		}
		return domain.Profile{}, err
	}
	return user.Profile(), nil
}

// List returns every profile, newest first. Admin directory only.
func (s *DirectoryService) List(ctx context.Context) ([]domain.Profile, error) {
	users, err := s.Store.Users().List(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, len(users))
	for i, u := range users {
		profiles[i] = u.Profile()
	}
	return profiles, nil
}

// SetRole changes a user's role. Tokens issued before the change keep
// their old role until refresh or expiry.
func (s *DirectoryService) SetRole(ctx context.Context, userID string, role tokenx.Role) error {
	if role != tokenx.RoleUser && role != tokenx.RoleAdmin {
		return ErrUnknownRole
	}

	if err := s.Store.Users().UpdateRole(ctx, userID, string(role)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}

	slogx.FromContext(ctx).Info("role changed", "user_id", userID, "role", string(role))
	return nil
}
