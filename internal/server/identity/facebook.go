package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"golang.org/x/oauth2"
)

const (
	FacebookGraphURL     = "https://graph.facebook.com"
	facebookGraphVersion = "v18.0"
	facebookFields       = "id,email,first_name,last_name,name,picture"
)

type facebookDebugToken struct {
	Data struct {
		IsValid bool   `json:"is_valid"`
		AppID   string `json:"app_id"`
		UserID  string `json:"user_id"`
	} `json:"data"`
}

type facebookProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Picture   struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// FacebookVerifier validates user access tokens from the Facebook SDK: the
// token must be valid and issued for this app, then the profile is read
// with it.
type FacebookVerifier struct {
	appID     string
	appSecret string
	graphURL  string
	client    *http.Client
}

func NewFacebookVerifier(appID, appSecret string, client *http.Client) *FacebookVerifier {
	return &FacebookVerifier{
		appID:     appID,
		appSecret: appSecret,
		graphURL:  FacebookGraphURL,
		client:    defaultClient(client),
	}
}

func (f *FacebookVerifier) Verify(ctx context.Context, rawToken string) (*models.Identity, error) {
	userID, err := f.debugToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	p, err := f.profile(ctx, rawToken, userID)
	if err != nil {
		return nil, err
	}

	return &models.Identity{
		Provider:       models.ProviderFacebook,
		ProviderUserID: p.ID,
		Email:          p.Email,
		// Facebook only releases confirmed addresses.
		EmailVerified: true,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Profile: map[string]any{
			"picture": p.Picture.Data.URL,
			"name":    p.Name,
		},
	}, nil
}

func (f *FacebookVerifier) debugToken(ctx context.Context, rawToken string) (string, error) {
	q := url.Values{}
	q.Set("input_token", rawToken)
	q.Set("access_token", f.appID+"|"+f.appSecret)

	var dt facebookDebugToken
	if err := getJSON(ctx, f.client, f.graphURL+"/debug_token?"+q.Encode(), &dt); err != nil {
		return "", fmt.Errorf("facebook debug_token: %w", err)
	}
	if !dt.Data.IsValid {
		return "", errors.New("facebook token is not valid")
	}
	if dt.Data.AppID != f.appID {
		return "", errors.New("facebook token was not issued for this app")
	}
	if dt.Data.UserID == "" {
		return "", errors.New("facebook token has no user")
	}
	return dt.Data.UserID, nil
}

// profile reads the user with their own token, sent as a bearer header by
// the oauth2 transport.
func (f *FacebookVerifier) profile(ctx context.Context, rawToken, userID string) (*facebookProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: rawToken}))

	u := fmt.Sprintf("%s/%s/%s?fields=%s", f.graphURL, facebookGraphVersion, url.PathEscape(userID), url.QueryEscape(facebookFields))

	var p facebookProfile
	if err := getJSON(ctx, client, u, &p); err != nil {
		return nil, fmt.Errorf("facebook profile: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("facebook profile has no id")
	}
	return &p, nil
}

func getJSON(ctx context.Context, client *http.Client, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Verifier = (*FacebookVerifier)(nil)
