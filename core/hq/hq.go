// Package hq enforces the travel buffer between headquarters and the first or
// last job of a crew's run. It may block on travel lookups and is only used
// on the commit path.
package hq

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/crewsched/core/model"
)

// Resolver resolves one travel leg. ok=false means unknown.
type Resolver interface {
	Resolve(ctx context.Context, origin, destination model.Address) (minutes float64, ok bool)
}

// Check is one candidate placement with its lane neighbours.
type Check struct {
	Candidate model.Assignment
	Prior     *model.Assignment
	Next      *model.Assignment
}

// Validator checks HQ buffers against a fixed headquarters address.
type Validator struct {
	resolver   Resolver
	jobs       model.JobDirectory
	hq         model.Address
	workdayEnd int
}

// NewValidator builds a Validator.
func NewValidator(r Resolver, jobs model.JobDirectory, hq model.Address, workdayEnd int) *Validator {
	return &Validator{resolver: r, jobs: jobs, hq: hq, workdayEnd: workdayEnd}
}

// Applies reports whether any HQ rule is triggered for c.
func Applies(c Check) bool {
	return c.Candidate.StartAtHQ || c.Candidate.EndAtHQ ||
		(c.Prior != nil && c.Prior.EndAtHQ) || (c.Next != nil && c.Next.StartAtHQ)
}

// Validate returns nil when both sides have enough room, a Reason with
// INSUFFICIENT_HQ_BUFFER when a gap is too short, or HQ_TRAVEL_UNKNOWN when
// a required leg cannot be resolved.
func (v *Validator) Validate(ctx context.Context, c Check) error {
	if !Applies(c) {
		return nil
	}
	job := v.address(c.Candidate.JobID)

	if c.Candidate.StartAtHQ || (c.Prior != nil && c.Prior.EndAtHQ) {
		required, err := v.sum(ctx, v.startLegs(c.Prior, job))
		if err != nil {
			return err
		}
		available := c.Candidate.StartMinutes
		if c.Prior != nil {
			available -= c.Prior.EndMinutes
		}
		if available < required {
			return model.NewReason(model.ReasonInsufficientHQ,
				fmt.Sprintf("needs %d minutes from headquarters before the start, only %d available", required, available))
		}
	}

	if c.Candidate.EndAtHQ || (c.Next != nil && c.Next.StartAtHQ) {
		required, err := v.sum(ctx, v.endLegs(c.Next, job))
		if err != nil {
			return err
		}
		available := v.workdayEnd - c.Candidate.EndMinutes
		if c.Next != nil {
			available = c.Next.StartMinutes - c.Candidate.EndMinutes
		}
		if available < required {
			return model.NewReason(model.ReasonInsufficientHQ,
				fmt.Sprintf("needs %d minutes back to headquarters after the end, only %d available", required, available))
		}
	}
	return nil
}

type leg struct {
	from, to model.Address
}

// startLegs is hq->job plus prior->hq. A prior without an address adds no leg.
func (v *Validator) startLegs(prior *model.Assignment, job model.Address) []leg {
	ls := []leg{{v.hq, job}}
	if prior != nil {
		if pa := v.address(prior.JobID); pa.Known() {
			ls = append(ls, leg{pa, v.hq})
		}
	}
	return ls
}

// endLegs is job->hq plus hq->next.
func (v *Validator) endLegs(next *model.Assignment, job model.Address) []leg {
	ls := []leg{{job, v.hq}}
	if next != nil {
		if na := v.address(next.JobID); na.Known() {
			ls = append(ls, leg{v.hq, na})
		}
	}
	return ls
}

func (v *Validator) address(jobID string) model.Address {
	if v.jobs == nil {
		return ""
	}
	a, _ := v.jobs.JobAddress(jobID)
	return a
}

// sum adds whole-minute durations, failing closed on any unresolved leg.
func (v *Validator) sum(ctx context.Context, ls []leg) (int, error) {
	total := 0
	for _, l := range ls {
		if !l.from.Known() || !l.to.Known() {
			return 0, model.NewReason(model.ReasonHQTravelUnknown, fmt.Sprintf("missing address for %q -> %q", l.from, l.to))
		}
		m, ok := v.resolver.Resolve(ctx, l.from, l.to)
		if !ok {
			return 0, model.NewReason(model.ReasonHQTravelUnknown, fmt.Sprintf("travel %s -> %s is unknown", l.from, l.to))
		}
		total += int(math.Ceil(m))
	}
	return total, nil
}
