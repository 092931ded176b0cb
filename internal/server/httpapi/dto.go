package httpapi

import (
	"time"

	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"github.com/dmitrijs2005/soultalk/internal/server/services"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

type socialRequest struct {
	IDToken string `json:"id_token"`
}

type profilePatchRequest struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	DisplayFirstName *string `json:"display_first_name"`
	Username         *string `json:"username"`
	Bio              *string `json:"bio"`
	Pronoun          *string `json:"pronoun"`
}

func (p *profilePatchRequest) patch() *models.ProfilePatch {
	return &models.ProfilePatch{
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		DisplayFirstName: p.DisplayFirstName,
		Username:         p.Username,
		Bio:              p.Bio,
		Pronoun:          p.Pronoun,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func newTokenResponse(p *services.TokenPair) *tokenResponse {
	if p == nil {
		return nil
	}
	return &tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	DisplayFirstName string     `json:"display_first_name"`
	Username         *string    `json:"username"`
	Bio              *string    `json:"bio"`
	Pronoun          *string    `json:"pronoun"`
	EmailVerified    bool       `json:"email_verified"`
	IsActive         bool       `json:"is_active"`
	HasPassword      bool       `json:"has_password"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		DisplayFirstName: u.DisplayFirstName,
		Username:         u.Username,
		Bio:              u.Bio,
		Pronoun:          u.Pronoun,
		EmailVerified:    u.EmailVerified,
		IsActive:         u.IsActive,
		HasPassword:      u.HasPassword(),
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
	}
}

type linkedAccountResponse struct {
	Provider      string    `json:"provider"`
	ProviderEmail *string   `json:"provider_email"`
	LinkedAt      time.Time `json:"linked_at"`
}

func newLinkedAccounts(links []*models.LinkedProvider) []linkedAccountResponse {
	out := make([]linkedAccountResponse, 0, len(links))
	for _, l := range links {
		out = append(out, linkedAccountResponse{
			Provider:      string(l.Provider),
			ProviderEmail: l.ProviderEmail,
			LinkedAt:      l.CreatedAt,
		})
	}
	return out
}

type profileResponse struct {
	userResponse
	Providers      []string                `json:"providers"`
	LinkedAccounts []linkedAccountResponse `json:"linked_accounts"`
	ActiveSessions int64                   `json:"active_sessions"`
}

func newProfileResponse(p *services.Profile) profileResponse {
	providers := make([]string, 0, len(p.Providers))
	for _, l := range p.Providers {
		providers = append(providers, string(l.Provider))
	}
	return profileResponse{
		userResponse:   newUserResponse(p.User),
		Providers:      providers,
		LinkedAccounts: newLinkedAccounts(p.Providers),
		ActiveSessions: p.ActiveSessions,
	}
}
