// Package travel resolves point-to-point travel durations between job
// addresses. Durations and definite "no route" answers are memoized for the
// life of the process; other failures are retried after a short delay.
// Concurrent requests for the same pair share one upstream lookup and batch
// prefetches run at bounded concurrency.
package travel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kilianp07/crewsched/core/events"
	"github.com/kilianp07/crewsched/core/logger"
	"github.com/kilianp07/crewsched/core/metrics"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/monitoring"
	"github.com/kilianp07/crewsched/internal/eventbus"
)

// DefaultConcurrency caps parallel upstream lookups during prefetch.
const DefaultConcurrency = 6

// DefaultRetryAfter is how long a failed lookup reads as unknown before the
// pair is looked up again.
const DefaultRetryAfter = 30 * time.Second

// Options tune a Resolver. Zero values select defaults.
type Options struct {
	Concurrency int
	// Timeout bounds each upstream lookup. Zero means 10 seconds.
	Timeout time.Duration
	// RetryAfter holds a transient failure as unknown. Zero means
	// DefaultRetryAfter.
	RetryAfter time.Duration
	Logger     logger.Logger
	Metrics    metrics.MetricsSink
	Bus        *eventbus.Bus[events.TravelResolved]
}

// Resolver is the only caller of the travel Provider. It is safe for
// concurrent use and implements Table.
type Resolver struct {
	provider    Provider
	concurrency int
	timeout     time.Duration
	retryAfter  time.Duration
	now         func() time.Time
	log         logger.Logger
	metrics     metrics.MetricsSink
	bus         *eventbus.Bus[events.TravelResolved]

	mu    sync.RWMutex
	cache map[PairKey]Entry
	// failed holds when each transiently failed pair may be retried.
	failed map[PairKey]time.Time
	group  singleflight.Group
	calls  atomic.Int64
}

// NewResolver creates a Resolver backed by p.
func NewResolver(p Provider, opts Options) (*Resolver, error) {
	if p == nil {
		return nil, fmt.Errorf("travel: nil provider")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = DefaultRetryAfter
	}
	return &Resolver{
		provider:    p,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		retryAfter:  opts.RetryAfter,
		now:         time.Now,
		log:         logger.OrNop(opts.Logger),
		metrics:     metrics.OrNop(opts.Metrics),
		bus:         opts.Bus,
		cache:       make(map[PairKey]Entry),
		failed:      make(map[PairKey]time.Time),
	}, nil
}

// Cached implements Table. It never blocks on a lookup.
func (r *Resolver) Cached(origin, destination model.Address) (float64, State) {
	k, ok := NewPairKey(origin, destination)
	if !ok {
		return 0, Unknown
	}
	if k.Same() {
		return 0, Known
	}
	e, found := r.entry(k)
	switch {
	case !found:
		return 0, Pending
	case !e.Known:
		return 0, Unknown
	default:
		return e.Minutes, Known
	}
}

// entry reads the cache. A transient failure counts as an unknown entry
// until its retry time passes.
func (r *Resolver) entry(k PairKey) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.cache[k]; ok {
		return e, true
	}
	if until, ok := r.failed[k]; ok && r.now().Before(until) {
		return Entry{}, true
	}
	return Entry{}, false
}

// Resolve returns the travel duration in minutes. ok is false when the
// duration cannot be determined; callers must treat that as unknown, never
// as zero. If ctx ends first Resolve returns early, but the upstream lookup
// keeps running and its result is still cached.
func (r *Resolver) Resolve(ctx context.Context, origin, destination model.Address) (float64, bool) {
	k, ok := NewPairKey(origin, destination)
	if !ok {
		return 0, false
	}
	if k.Same() {
		return 0, true
	}
	if m, state := r.Cached(origin, destination); state != Pending {
		r.record("hit", 0)
		return m, state == Known
	}

	var ran atomic.Bool
	ch := r.group.DoChan(k.String(), func() (any, error) {
		ran.Store(true)
		// A concurrent caller may have filled the cache between our read and
		// acquiring the flight.
		if e, found := r.entry(k); found {
			return e, nil
		}
		return r.lookup(context.WithoutCancel(ctx), k, origin, destination), nil
	})
	select {
	case res := <-ch:
		if !ran.Load() {
			r.record("coalesced", 0)
		}
		e := res.Val.(Entry)
		return e.Minutes, e.Known
	case <-ctx.Done():
		return 0, false
	}
}

func (r *Resolver) lookup(ctx context.Context, k PairKey, origin, destination model.Address) Entry {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	r.calls.Add(1)
	start := time.Now()
	minutes, err := r.provider.Lookup(ctx, origin, destination)
	latency := time.Since(start)
	// A definite answer is kept for good; anything else may succeed later.
	definite := err == nil || errors.Is(err, ErrNoRoute)
	if err == nil && (math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0) {
		err = fmt.Errorf("travel: malformed duration %v for %s -> %s", minutes, k.Origin, k.Destination)
		monitoring.CaptureException(err, map[string]string{"module": "travel"})
	}

	e := Entry{Minutes: minutes, Known: err == nil}
	if err != nil {
		e.Minutes = 0
		r.log.Warnf("travel lookup %s -> %s failed: %v", k.Origin, k.Destination, err)
		r.record("unknown", latency)
	} else {
		r.log.Debugw("travel resolved", map[string]any{"origin": k.Origin, "destination": k.Destination, "minutes": minutes})
		r.record("miss", latency)
	}

	r.mu.Lock()
	if definite {
		r.cache[k] = e
		delete(r.failed, k)
	} else {
		r.failed[k] = r.now().Add(r.retryAfter)
	}
	r.mu.Unlock()

	r.bus.Publish(events.TravelResolved{
		Origin:      origin,
		Destination: destination,
		Minutes:     e.Minutes,
		Known:       e.Known,
		Latency:     latency,
		Err:         err,
	})
	return e
}

func (r *Resolver) record(outcome string, latency time.Duration) {
	tr, ok := r.metrics.(metrics.TravelRecorder)
	if !ok {
		return
	}
	if err := tr.RecordTravelLookup(metrics.TravelLookupRecord{Outcome: outcome, Latency: latency, Time: time.Now()}); err != nil {
		r.log.Errorf("travel metrics error: %v", err)
	}
}

// PrefetchAll resolves every uncached pair with at most Concurrency lookups
// in flight. Unknown results are not errors; only ctx cancellation is.
func (r *Resolver) PrefetchAll(ctx context.Context, pairs []Pair) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	seen := make(map[PairKey]bool, len(pairs))
	for _, p := range pairs {
		k, ok := NewPairKey(p.Origin, p.Destination)
		if !ok || k.Same() || seen[k] {
			continue
		}
		seen[k] = true
		if _, state := r.Cached(p.Origin, p.Destination); state != Pending {
			continue
		}
		p := p
		g.Go(func() error {
			r.Resolve(gctx, p.Origin, p.Destination)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("travel prefetch: %w", err)
	}
	return nil
}

// Lookups returns how many upstream lookups have been issued.
func (r *Resolver) Lookups() int64 { return r.calls.Load() }

// Len returns the number of cached pairs.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
