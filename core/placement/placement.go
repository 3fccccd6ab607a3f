// Package placement resolves a desired start minute against a lane's
// occupied blocks using a forward-only snap: the candidate jumps to the end
// of whatever it collides with until it fits or runs out of workday.
package placement

import (
	"fmt"

	"github.com/kilianp07/crewsched/core/model"
)

// Resolve returns the earliest feasible start at or after desiredStart for
// an item of the given duration. blocks must be sorted by start. Running
// past workdayEnd yields an infeasible result, not an error; only malformed
// input is an error.
func Resolve(desiredStart, duration int, blocks []model.OccupiedBlock, workdayEnd int) (model.PlacementResult, error) {
	if duration <= 0 {
		return model.PlacementResult{}, model.NewReason(model.ReasonInvalidInput, fmt.Sprintf("duration must be positive, got %d", duration))
	}
	if desiredStart < 0 {
		return model.PlacementResult{}, model.NewReason(model.ReasonInvalidInput, fmt.Sprintf("start must not be negative, got %d", desiredStart))
	}

	candidate := desiredStart
	reason := model.SnapNone
	for {
		if candidate+duration > workdayEnd {
			return model.PlacementResult{SnapReason: model.SnapOutOfBounds, Blocker: reason}, nil
		}
		hit := -1
		for i, b := range blocks {
			if b.Intersects(candidate, candidate+duration) {
				hit = i
				break
			}
		}
		if hit < 0 {
			break
		}
		// blocks[hit].EndMinutes > candidate because it intersects.
		candidate = blocks[hit].EndMinutes
		reason = model.SnapReasonFor(blocks[hit].Kind)
	}

	res := model.PlacementResult{Start: candidate, Feasible: true, SnapDelta: candidate - desiredStart, Blocker: reason}
	if res.SnapDelta > 0 {
		res.SnapReason = reason
	}
	return res, nil
}

// Fits reports whether [start, start+duration) is free and inside the workday.
func Fits(start, duration int, blocks []model.OccupiedBlock, workdayEnd int) bool {
	if start < 0 || duration <= 0 || start+duration > workdayEnd {
		return false
	}
	for _, b := range blocks {
		if b.Intersects(start, start+duration) {
			return false
		}
	}
	return true
}
