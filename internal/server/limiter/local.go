package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"golang.org/x/time/rate"
)

const (
	localSweepInterval = 5 * time.Minute
	localEntryTTL      = 30 * time.Minute
)

type localEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// Local is an in-process token bucket per scope and key. Limit tokens
// refill evenly over Window, so a burst of Limit is allowed up front.
type Local struct {
	policies Policies

	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
	now       func() time.Time
}

// NewLocal returns an in-memory limiter.
func NewLocal(policies Policies) *Local {
	return &Local{
		policies: policies,
		entries:  make(map[string]*localEntry),
		now:      time.Now,
	}
}

func (l *Local) Allow(_ context.Context, scope, key string) error {
	pol, ok := l.policies.lookup(scope)
	if !ok {
		return nil
	}

	now := l.now()
	if !l.entry(scope+":"+key, pol, now).AllowN(now, 1) {
		return common.ErrRateLimited
	}
	return nil
}

func (l *Local) entry(k string, pol Policy, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > localSweepInterval {
		for id, e := range l.entries {
			if now.Sub(e.lastUse) > localEntryTTL {
				delete(l.entries, id)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[k]
	if !ok {
		every := pol.Window / time.Duration(pol.Limit)
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(every), pol.Limit)}
		l.entries[k] = e
	}
	e.lastUse = now
	return e.limiter
}

var _ Limiter = (*Local)(nil)
