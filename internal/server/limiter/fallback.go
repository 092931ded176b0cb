package limiter

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/soultalk/internal/logging"
)

// Fallback consults primary and switches to secondary for any call where
// primary reports ErrUnavailable.
type Fallback struct {
	primary   Limiter
	secondary Limiter
	logger    logging.Logger
}

func NewFallback(primary, secondary Limiter, logger logging.Logger) *Fallback {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Allow(ctx context.Context, scope, key string) error {
	err := f.primary.Allow(ctx, scope, key)
	if err == nil || !errors.Is(err, ErrUnavailable) {
		return err
	}
	f.logger.Warn(ctx, "primary rate limiter unavailable, using local", "scope", scope, "error", err)
	return f.secondary.Allow(ctx, scope, key)
}

var _ Limiter = (*Fallback)(nil)
