package windows

import (
	"context"
	"sync"

	"github.com/kilianp07/crewsched/core/events"
	"github.com/kilianp07/crewsched/core/logger"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/travel"
	"github.com/kilianp07/crewsched/internal/eventbus"
)

// Source is a travel table that can also fetch missing legs.
// *travel.Resolver implements it.
type Source interface {
	travel.Table
	PrefetchAll(ctx context.Context, pairs []travel.Pair) error
}

// LaneKey identifies a cached window set.
type LaneKey struct {
	CrewID string
	Day    model.DayKey
	JobID  string
}

type entry struct {
	in     Input
	result Result
}

// LaneCache stores window sets per lane. Background lookups finishing late
// update whichever lane they were started for; they never touch another
// lane's entry.
type LaneCache struct {
	ctx    context.Context
	source Source
	log    logger.Logger
	bus    *eventbus.Bus[events.LaneWindowsUpdated]

	mu       sync.Mutex
	entries  map[LaneKey]*entry
	inflight map[LaneKey]bool
	wg       sync.WaitGroup
}

// NewLaneCache creates a cache. Background prefetches run under ctx; they
// outlive any single interaction session.
func NewLaneCache(ctx context.Context, source Source, log logger.Logger, bus *eventbus.Bus[events.LaneWindowsUpdated]) *LaneCache {
	return &LaneCache{
		ctx:      ctx,
		source:   source,
		log:      logger.OrNop(log),
		bus:      bus,
		entries:  make(map[LaneKey]*entry),
		inflight: make(map[LaneKey]bool),
	}
}

// Ensure computes the lane's windows from cached travel and stores them.
// When legs are pending it starts a background prefetch, unless one is
// already running for the lane, and returns the pending result immediately.
func (c *LaneCache) Ensure(key LaneKey, in Input) Result {
	in.Travel = c.source
	res := Enumerate(in)

	c.mu.Lock()
	c.entries[key] = &entry{in: in, result: res}
	start := res.Pending && !c.inflight[key]
	if start {
		c.inflight[key] = true
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if start {
		go c.prefetch(key, res.Missing)
	}
	return res
}

func (c *LaneCache) prefetch(key LaneKey, missing []travel.Pair) {
	defer c.wg.Done()
	for {
		if err := c.source.PrefetchAll(c.ctx, missing); err != nil {
			c.log.Warnf("windows %s/%s: prefetch stopped: %v", key.CrewID, key.Day, err)
		}

		c.mu.Lock()
		e, ok := c.entries[key]
		if !ok {
			delete(c.inflight, key)
			c.mu.Unlock()
			return
		}
		// Enumerate only reads the cache, so recomputing under the lock is
		// cheap. It always uses the latest input stored for the lane.
		res := Enumerate(e.in)
		e.result = res
		if res.Pending && c.ctx.Err() == nil {
			// Ensure ran with new legs while we were fetching.
			missing = res.Missing
			c.mu.Unlock()
			continue
		}
		delete(c.inflight, key)
		c.mu.Unlock()

		c.log.Debugw("lane windows updated", map[string]any{
			"crew": key.CrewID, "day": string(key.Day), "job": key.JobID,
			"windows": len(res.Windows), "pending": res.Pending,
		})
		c.bus.Publish(events.LaneWindowsUpdated{
			CrewID:  key.CrewID,
			Day:     key.Day,
			JobID:   key.JobID,
			Pending: res.Pending,
			Windows: len(res.Windows),
		})
		return
	}
}

// Get returns the stored result for key.
func (c *LaneCache) Get(key LaneKey) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	return e.result, true
}

// Invalidate drops every cached job entry for the crew's day.
func (c *LaneCache) Invalidate(crewID string, day model.DayKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.CrewID == crewID && k.Day == day {
			delete(c.entries, k)
		}
	}
}

// Wait blocks until background prefetches finish.
func (c *LaneCache) Wait() { c.wg.Wait() }
