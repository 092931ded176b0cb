package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

const fallbackFirstName = "User"

// SocialSignIn signs in with a verified provider identity. The account is
// resolved in order: an existing link, then an account with the same
// email (which gets linked), then a new account.
func (s *AuthService) SocialSignIn(ctx context.Context, id *models.Identity, client models.ClientInfo) (*models.User, *TokenPair, error) {
	if !id.Provider.IsSocial() {
		return nil, nil, common.ErrInvalidProvider
	}
	email := common.NormalizeEmail(id.Email)
	if email == "" {
		return nil, nil, common.ErrMissingEmail
	}

	var (
		user *models.User
		pair *TokenPair
	)
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.resolveSocialUser(ctx, tx, id, email)
		if err != nil {
			return err
		}
		pair, err = s.signIn(ctx, tx, user, client)
		return err
	})
	s.record(ctx, "social_"+string(id.Provider), err)
	if err != nil {
		return nil, nil, s.fail(ctx, "social_sign_in", err)
	}
	return user, pair, nil
}

func (s *AuthService) resolveSocialUser(ctx context.Context, tx dbx.DBTX, id *models.Identity, email string) (*models.User, error) {
	usersRepo := s.repomanager.Users(tx)
	providersRepo := s.repomanager.Providers(tx)

	link, err := providersRepo.GetByProvider(ctx, id.Provider, id.ProviderUserID)
	switch {
	case err == nil:
		user, err := usersRepo.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, err
		}
		if !user.IsActive {
			return nil, common.ErrDeactivated
		}
		return user, nil
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	user, err := usersRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsActive {
			return nil, common.ErrDeactivated
		}
		links, err := providersRepo.ListByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if findLink(links, id.Provider) != nil {
			return nil, kindLinked(id.Provider)
		}
		if err := s.link(ctx, tx, user.ID, id, email); err != nil {
			return nil, err
		}
		if id.EmailVerified && !user.EmailVerified {
			if err := usersRepo.MarkEmailVerified(ctx, user.ID); err != nil {
				return nil, err
			}
			user.EmailVerified = true
		}
		s.logger.Info(ctx, "provider linked by email", "user_id", user.ID, "provider", id.Provider)
		return user, nil
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	firstName := strings.TrimSpace(id.FirstName)
	if firstName == "" {
		firstName = fallbackFirstName
	}
	user, err = usersRepo.Create(ctx, &models.User{
		Email:            email,
		FirstName:        firstName,
		LastName:         strings.TrimSpace(id.LastName),
		DisplayFirstName: firstName,
		EmailVerified:    id.EmailVerified,
		IsActive:         true,
	})
	if errors.Is(err, common.ErrConflict) {
		return nil, common.ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	if err := s.link(ctx, tx, user.ID, id, email); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user registered", "user_id", user.ID, "provider", id.Provider)
	return user, nil
}

// LinkProvider attaches a verified identity to a signed-in user.
func (s *AuthService) LinkProvider(ctx context.Context, userID string, id *models.Identity) (*models.LinkedProvider, error) {
	if !id.Provider.IsSocial() {
		return nil, common.ErrInvalidProvider
	}

	var linked *models.LinkedProvider
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		providersRepo := s.repomanager.Providers(tx)

		existing, err := providersRepo.GetByProvider(ctx, id.Provider, id.ProviderUserID)
		switch {
		case err == nil && existing.UserID == userID:
			return common.ErrProviderLinkedToYou.Withf("%s account is already linked to your account", id.Provider.Title())
		case err == nil:
			return common.ErrProviderLinkedToOther.Withf("%s account is linked to another user", id.Provider.Title())
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		links, err := providersRepo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if findLink(links, id.Provider) != nil {
			return kindLinked(id.Provider)
		}

		linked, err = providersRepo.Link(ctx, newLink(userID, id, common.NormalizeEmail(id.Email)))
		if errors.Is(err, common.ErrConflict) {
			return common.ErrProviderLinkedToOther.Withf("%s account is linked to another user", id.Provider.Title())
		}
		return err
	})
	s.record(ctx, "link_"+string(id.Provider), err)
	if err != nil {
		return nil, s.fail(ctx, "link_provider", err)
	}
	return linked, nil
}

// UnlinkProvider detaches a social provider, refusing when that would
// leave the user without a way to sign in.
func (s *AuthService) UnlinkProvider(ctx context.Context, userID, providerName string) error {
	p, ok := models.ParseProvider(providerName)
	if !ok {
		return common.ErrInvalidProvider
	}
	if p == models.ProviderEmail {
		return common.ErrCannotUnlinkEmail
	}

	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		providersRepo := s.repomanager.Providers(tx)

		user, err := s.repomanager.Users(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		links, err := providersRepo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if findLink(links, p) == nil {
			return common.ErrorNotFound
		}
		if len(links) <= 1 {
			return common.ErrLastLoginMethod
		}
		if !user.HasPassword() && !hasOtherSocial(links, p) {
			return common.ErrPasswordRequired
		}

		removed, err := providersRepo.Unlink(ctx, userID, p)
		if err != nil {
			return err
		}
		if !removed {
			return common.ErrorNotFound
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, "unlink_provider", err)
	}
	s.logger.Info(ctx, "provider unlinked", "user_id", userID, "provider", p)
	return nil
}

func (s *AuthService) link(ctx context.Context, tx dbx.DBTX, userID string, id *models.Identity, email string) error {
	_, err := s.repomanager.Providers(tx).Link(ctx, newLink(userID, id, email))
	if errors.Is(err, common.ErrConflict) {
		return common.ErrProviderLinkedToOther.Withf("%s account is linked to another user", id.Provider.Title())
	}
	return err
}

func newLink(userID string, id *models.Identity, email string) *models.LinkedProvider {
	l := &models.LinkedProvider{
		UserID:         userID,
		Provider:       id.Provider,
		ProviderUserID: id.ProviderUserID,
	}
	if email != "" {
		l.ProviderEmail = &email
	}
	if len(id.Profile) > 0 {
		if b, err := json.Marshal(id.Profile); err == nil {
			l.ProfileData = b
		}
	}
	return l
}

func kindLinked(p models.Provider) error {
	return common.ErrProviderKindLinked.Withf("a different %s account is already linked", p.Title())
}

func hasOtherSocial(links []*models.LinkedProvider, except models.Provider) bool {
	for _, l := range links {
		if l.Provider.IsSocial() && l.Provider != except {
			return true
		}
	}
	return false
}
