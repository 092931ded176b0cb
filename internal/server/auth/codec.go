// Package auth mints and verifies the credentials handed to clients:
// signed access tokens, opaque refresh and reset secrets, and numeric
// one-time codes. Only digests of the opaque secrets are ever stored.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

const (
	accessTokenType = "access"

	refreshTokenBytes = 64
	resetTokenBytes   = 32
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Type  string `json:"type"`
}

// UserID returns the subject of the token.
func (c *AccessClaims) UserID() string { return c.Subject }

// Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec returns an HS256 codec.
func NewCodec(secret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		secret:     []byte(secret),
		method:     jwt.SigningMethodHS256,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock returns a copy of c reading time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// AccessTTL is the lifetime of minted access tokens.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// MintAccessToken returns a signed token for the user and its lifetime in
// seconds.
func (c *Codec) MintAccessToken(userID, email string) (string, int, error) {
	now := c.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		Email: email,
		Type:  accessTokenType,
	}

	token, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", 0, err
	}
	return token, int(c.accessTTL.Seconds()), nil
}

// VerifyAccessToken checks signature, algorithm, expiry and token type.
// Every failure is reported as common.ErrInvalidToken.
func (c *Codec) VerifyAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.Type != accessTokenType || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// MintOpaqueSecret returns byteLength random bytes, base64url without padding.
func (c *Codec) MintOpaqueSecret(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", errors.New("secret length must be positive")
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashOpaqueSecret returns the storage digest of a raw secret.
func (c *Codec) HashOpaqueSecret(raw string) string {
	return cryptox.Digest(raw)
}

// MintRefreshToken returns a new raw refresh token, its digest and expiry.
func (c *Codec) MintRefreshToken() (raw, digest string, expiresAt time.Time, err error) {
	raw, err = c.MintOpaqueSecret(refreshTokenBytes)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return raw, c.HashOpaqueSecret(raw), c.now().Add(c.refreshTTL), nil
}

// MintResetToken returns a new raw password-reset token and its digest.
func (c *Codec) MintResetToken() (raw, digest string, err error) {
	raw, err = c.MintOpaqueSecret(resetTokenBytes)
	if err != nil {
		return "", "", err
	}
	return raw, c.HashOpaqueSecret(raw), nil
}

// MintOTPCode returns a numDigits-long decimal code and its digest. Each
// digit is drawn independently from crypto/rand, so leading zeros occur.
func (c *Codec) MintOTPCode(numDigits int) (raw, digest string, err error) {
	if numDigits <= 0 {
		return "", "", errors.New("code length must be positive")
	}

	var sb strings.Builder
	sb.Grow(numDigits)
	ten := big.NewInt(10)
	for i := 0; i < numDigits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}

	raw = sb.String()
	return raw, c.HashOpaqueSecret(raw), nil
}
