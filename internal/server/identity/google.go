package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const GoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// flexBool accepts true, "true" and their false counterparts; Google has
// sent email_verified both ways.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		parsed, err := strconv.ParseBool(t)
		if err != nil {
			return err
		}
		*b = flexBool(parsed)
	case nil:
		*b = false
	default:
		return fmt.Errorf("unexpected email_verified value %v", t)
	}
	return nil
}

type googleClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
	Locale        string   `json:"locale"`
}

// GoogleVerifier validates Google Sign-In ID tokens: RS256 signature
// against Google's published keys, issuer, expiry and audience.
type GoogleVerifier struct {
	clientIDs []string
	keys      keyfunc.Keyfunc
	now       func() time.Time
}

// NewGoogleVerifier accepts tokens minted for any of clientIDs (one per
// platform app, typically). Google's key set is fetched from certsURL and
// refreshed in the background until ctx is done; unknown key ids trigger a
// rate-limited refetch.
func NewGoogleVerifier(ctx context.Context, clientIDs []string, certsURL string) (*GoogleVerifier, error) {
	if certsURL == "" {
		certsURL = GoogleCertsURL
	}
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{certsURL})
	if err != nil {
		return nil, fmt.Errorf("google certs: %w", err)
	}
	return &GoogleVerifier{clientIDs: clientIDs, keys: keys, now: time.Now}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*models.Identity, error) {
	claims := &googleClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, g.keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("google token: %w", err)
	}

	if !slices.Contains(googleIssuers, claims.Issuer) {
		return nil, fmt.Errorf("google token: unexpected issuer %q", claims.Issuer)
	}
	if !slices.ContainsFunc(claims.Audience, func(aud string) bool {
		return slices.Contains(g.clientIDs, aud)
	}) {
		return nil, errors.New("google token: audience mismatch")
	}
	if claims.Subject == "" {
		return nil, errors.New("google token: missing subject")
	}

	return &models.Identity{
		Provider:       models.ProviderGoogle,
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		EmailVerified:  bool(claims.EmailVerified),
		FirstName:      claims.GivenName,
		LastName:       claims.FamilyName,
		Profile: map[string]any{
			"picture": claims.Picture,
			"locale":  claims.Locale,
			"name":    claims.Name,
		},
	}, nil
}

var _ Verifier = (*GoogleVerifier)(nil)
