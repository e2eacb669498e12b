package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crewhall/crewhall/pkg/async"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter int // seconds, set only on denial
}

// Limiter enforces sliding-window limits with a layered store: the
// in-process cache answers synchronously and the durable store follows
// asynchronously. Cross-process enforcement is only eventually
// consistent; a caller may transiently exceed the nominal limit by up to
// replica_count-1 requests per window. That is a documented limitation,
// not a defect.
type Limiter struct {
	cache   Store
	durable PersistentStore
	logger  *logrus.Logger

	// sweepWidth is the reference window width used to bound cache age
	sweepWidth time.Duration

	now func() time.Time
}

// NewLimiter creates a Limiter. durable may be nil for purely local
// enforcement. sweepWidth should match the widest window in use.
func NewLimiter(cache Store, durable PersistentStore, sweepWidth time.Duration, logger *logrus.Logger) *Limiter {
	if sweepWidth <= 0 {
		sweepWidth = time.Minute
	}
	return &Limiter{
		cache:      cache,
		durable:    durable,
		logger:     logger,
		sweepWidth: sweepWidth,
		now:        time.Now,
	}
}

// Check runs one rate limit decision for an identifier.
//
// On a cache miss the window is best-effort hydrated from the durable
// store; hydration failure starts the window from zero (availability
// over precision). The in-process increment is synchronous; persistence
// is fire-and-forget.
func (l *Limiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) *Decision {
	now := l.now()
	windowStart := WindowStart(now, window)
	reset := windowStart.Add(window)
	key := WindowKey(identifier, windowStart)

	w, ok := l.cache.Get(key)
	if !ok {
		var seed int64
		if l.durable != nil {
			loaded, err := l.durable.Load(ctx, identifier, windowStart)
			if err != nil {
				l.logger.WithError(err).WithField("identifier", identifier).
					Warn("rate window hydration failed, starting from zero")
			} else {
				seed = loaded
			}
		}
		w = l.cache.GetOrPut(key, NewWindow(identifier, windowStart, seed))
	}

	count, allowed := w.Take(int64(limit), now)

	decision := &Decision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: limit - int(count),
		Reset:     reset,
	}
	if !allowed {
		decision.Remaining = 0
		decision.RetryAfter = int(math.Ceil(reset.Sub(now).Seconds()))
		return decision
	}

	if l.durable != nil {
		ttl := 2 * window
		async.SafeGo(context.WithoutCancel(ctx), 5*time.Second, "rate window persistence", func(ctx context.Context) error {
			return l.durable.Save(ctx, identifier, windowStart, count, ttl)
		})
	}

	return decision
}

// Sweep evicts cache entries older than two window widths, bounding
// memory. It only deletes.
func (l *Limiter) Sweep() int {
	return l.cache.Sweep(l.now().Add(-2 * l.sweepWidth))
}

// StartSweep runs Sweep on a fixed interval until the context ends
func (l *Limiter) StartSweep(ctx context.Context) {
	ticker := time.NewTicker(l.sweepWidth)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := l.Sweep(); removed > 0 {
					l.logger.WithField("removed", removed).Debug("swept rate limit windows")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
