package commit

import (
	"context"

	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/travel"
)

// Prefetcher resolves travel legs ahead of validation. *travel.Resolver
// implements it.
type Prefetcher interface {
	PrefetchAll(ctx context.Context, pairs []travel.Pair) error
}

// Legs lists every travel pair validating req may read: both directions
// between the draft and each assignment of its target lane, the legs
// between adjacent lane assignments, and the headquarters legs.
func (c *Controller) Legs(req Request) []travel.Pair {
	draft := req.Draft
	if req.Op != OpCreate {
		prev, ok := c.coll.Get(req.ID)
		if !ok {
			return nil
		}
		draft = merge(prev, draft)
	}
	if req.Op == OpDelete || draft.Unassigned() {
		return nil
	}
	addr := c.address(draft.JobID)
	hq := c.cfg.HQ
	var pairs []travel.Pair
	add := func(from, to model.Address) {
		if from.Known() && to.Known() {
			pairs = append(pairs, travel.Pair{Origin: from, Destination: to})
		}
	}
	add(hq, addr)
	add(addr, hq)
	var prevAddr model.Address
	for _, a := range c.coll.Lane(draft.CrewID, draft.Date) {
		if a.ID == draft.ID {
			continue
		}
		other := c.address(a.JobID)
		add(other, addr)
		add(addr, other)
		add(other, hq)
		add(hq, other)
		add(prevAddr, other)
		prevAddr = other
	}
	return pairs
}

// Prepare resolves Legs(req) so validation reads known durations instead
// of rejecting with TRAVEL_PENDING. It is a no-op without a Prefetcher.
func (c *Controller) Prepare(ctx context.Context, req Request) error {
	if c.prefetch == nil {
		return nil
	}
	pairs := c.Legs(req)
	if len(pairs) == 0 {
		return nil
	}
	return c.prefetch.PrefetchAll(ctx, pairs)
}
