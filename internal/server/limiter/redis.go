package limiter

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "soultalk:rl:"

// Redis is a fixed-window counter shared by every server instance.
type Redis struct {
	client   redis.UniversalClient
	policies Policies
	prefix   string
}

// NewRedis returns a limiter storing counters in client.
func NewRedis(client redis.UniversalClient, policies Policies) *Redis {
	return &Redis{client: client, policies: policies, prefix: defaultKeyPrefix}
}

func (r *Redis) Allow(ctx context.Context, scope, key string) error {
	pol, ok := r.policies.lookup(scope)
	if !ok {
		return nil
	}

	k := r.prefix + scope + ":" + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed window: the first hit starts the clock.
	if count == 1 {
		if err := r.client.Expire(ctx, k, pol.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count > int64(pol.Limit) {
		return common.ErrRateLimited
	}
	return nil
}

var _ Limiter = (*Redis)(nil)
