package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/logging"
	"github.com/dmitrijs2005/soultalk/internal/server/telemetry"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("notification dispatcher closed")
)

// DispatcherConfig controls buffering and concurrency.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

type job struct {
	kind string
	to   string
	send func(ctx context.Context) error
}

// Dispatcher queues notifications and delivers them through next on a
// fixed pool of workers. A full queue drops the notification instead of
// blocking the caller. Close drains whatever is already queued.
type Dispatcher struct {
	next    Gateway
	cfg     DispatcherConfig
	logger  logging.Logger
	metrics *telemetry.Metrics

	ch      chan job
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// mu orders enqueues before Close: once closed is set no send reaches
	// ch, so the workers' final drain sees every accepted job.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(next Gateway, cfg DispatcherConfig, logger logging.Logger, metrics *telemetry.Metrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}

	d := &Dispatcher{
		next:    next,
		cfg:     cfg,
		logger:  logger.With("module", "notify"),
		metrics: metrics,
		ch:      make(chan job, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.run()
	}

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case j := <-d.ch:
			d.deliver(j)
		case <-d.done:
			for {
				select {
				case j := <-d.ch:
					d.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := j.send(ctx); err != nil {
		d.logger.Warn(ctx, "email delivery failed", "kind", j.kind, "to", j.to, "error", err)
		d.metrics.RecordNotification(ctx, j.kind, telemetry.OutcomeFailure)
		return
	}
	d.metrics.RecordNotification(ctx, j.kind, telemetry.OutcomeSuccess)
}

func (d *Dispatcher) enqueue(ctx context.Context, j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.ch <- j:
		return nil
	default:
		d.dropped.Add(1)
		d.metrics.RecordNotification(ctx, j.kind, telemetry.OutcomeDropped)
		return ErrQueueFull
	}
}

func (d *Dispatcher) SendVerification(ctx context.Context, to, firstName, code string, expiry time.Duration) error {
	return d.enqueue(ctx, job{kind: KindVerification, to: to, send: func(ctx context.Context) error {
		return d.next.SendVerification(ctx, to, firstName, code, expiry)
	}})
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, to, firstName, token string, expiry time.Duration) error {
	return d.enqueue(ctx, job{kind: KindPasswordReset, to: to, send: func(ctx context.Context) error {
		return d.next.SendPasswordReset(ctx, to, firstName, token, expiry)
	}})
}

// Close stops accepting work and waits for queued notifications to go out.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.wg.Wait()
}

// Pending reports how many notifications are waiting.
func (d *Dispatcher) Pending() int { return len(d.ch) }

// Dropped reports how many notifications were discarded on a full queue.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

var (
	_ Gateway               = (*Dispatcher)(nil)
	_ telemetry.QueueSource = (*Dispatcher)(nil)
)
