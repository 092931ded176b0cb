package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

// Profile is the signed-in user's view of their account.
type Profile struct {
	User           *models.User
	Providers      []*models.LinkedProvider
	ActiveSessions int64
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "get_profile", err)
	}
	links, err := s.repomanager.Providers(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "get_profile", err)
	}
	n, err := s.repomanager.RefreshTokens(s.db).CountActive(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "get_profile", err)
	}
	return &Profile{User: user, Providers: links, ActiveSessions: n}, nil
}

// UpdateProfile applies a partial profile update. Usernames are stored
// lowercased.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, patch *models.ProfilePatch) (*models.User, error) {
	if patch.Empty() {
		return nil, common.ErrNothingToUpdate
	}
	clean := *patch
	for _, name := range []**string{&clean.FirstName, &clean.LastName, &clean.DisplayFirstName} {
		if *name == nil {
			continue
		}
		if !validName(**name) {
			return nil, common.ErrInvalidName
		}
		trimmed := strings.TrimSpace(**name)
		*name = &trimmed
	}
	if clean.Username != nil {
		u, err := normalizeUsername(*clean.Username)
		if err != nil {
			return nil, err
		}
		clean.Username = &u
	}

	user, err := s.repomanager.Users(s.db).UpdateProfile(ctx, userID, &clean)
	if err != nil {
		return nil, s.fail(ctx, "update_profile", err)
	}
	return user, nil
}

// IsUsernameAvailable checks a candidate username, ignoring the caller's
// own. An empty userID checks against everyone.
func (s *AuthService) IsUsernameAvailable(ctx context.Context, username, userID string) (bool, error) {
	u, err := normalizeUsername(username)
	if err != nil {
		return false, err
	}
	ok, err := s.repomanager.Users(s.db).IsUsernameAvailable(ctx, u, userID)
	if err != nil {
		return false, s.fail(ctx, "username_available", err)
	}
	return ok, nil
}

func (s *AuthService) ListLinkedAccounts(ctx context.Context, userID string) ([]*models.LinkedProvider, error) {
	links, err := s.repomanager.Providers(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "list_linked_accounts", err)
	}
	return links, nil
}
