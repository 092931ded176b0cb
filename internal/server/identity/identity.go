// Package identity verifies tokens issued by external sign-in providers
// and turns them into a normalized models.Identity. Nothing in an
// identity is trusted unless it came out of a Verifier.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

const defaultHTTPTimeout = 10 * time.Second

// Verifier checks a raw provider token.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*models.Identity, error)
}

// Registry dispatches to the verifier configured for each provider.
type Registry struct {
	verifiers map[models.Provider]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[models.Provider]Verifier)}
}

// Register installs v for p, replacing any previous one.
func (r *Registry) Register(p models.Provider, v Verifier) *Registry {
	r.verifiers[p] = v
	return r
}

// Verify checks rawToken with the verifier for p. Unknown or unconfigured
// providers yield common.ErrInvalidProvider; rejected tokens wrap
// common.ErrInvalidIdentity.
func (r *Registry) Verify(ctx context.Context, p models.Provider, rawToken string) (*models.Identity, error) {
	v, ok := r.verifiers[p]
	if !ok || !p.IsSocial() {
		return nil, common.ErrInvalidProvider.Withf("%s sign-in is not available", p.Title())
	}
	if rawToken == "" {
		return nil, fmt.Errorf("%w: empty token", common.ErrInvalidIdentity)
	}

	id, err := v.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidIdentity, err)
	}
	id.Provider = p
	id.Email = common.NormalizeEmail(id.Email)
	return id, nil
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}
