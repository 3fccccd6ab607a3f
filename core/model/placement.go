package model

import "fmt"

// SnapReason explains why a placement moved away from the requested start.
type SnapReason int

const (
	SnapNone SnapReason = iota
	SnapTravel
	SnapJob
	SnapOutOfBounds
)

// String returns the wire name of the reason, empty for SnapNone.
func (r SnapReason) String() string {
	switch r {
	case SnapTravel:
		return "travel"
	case SnapJob:
		return "job"
	case SnapOutOfBounds:
		return "out_of_bounds"
	default:
		return ""
	}
}

// MarshalText renders the reason for JSON output.
func (r SnapReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText parses a wire name; the empty string is SnapNone.
func (r *SnapReason) UnmarshalText(b []byte) error {
	for _, c := range []SnapReason{SnapNone, SnapTravel, SnapJob, SnapOutOfBounds} {
		if c.String() == string(b) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown snap reason %q", b)
}

// SnapReasonFor maps the kind of a blocking interval to a snap reason.
func SnapReasonFor(k BlockKind) SnapReason {
	if k.IsTravel() {
		return SnapTravel
	}
	return SnapJob
}

// PlacementResult is the outcome of resolving a desired start.
// When Feasible is false, Start is meaningless.
type PlacementResult struct {
	Start      int        `json:"start_minutes"`
	Feasible   bool       `json:"feasible"`
	SnapDelta  int        `json:"snap_delta"`
	SnapReason SnapReason `json:"snap_reason"`
	// Blocker is the reason of the last block that pushed the candidate,
	// SnapNone when nothing was in the way.
	Blocker SnapReason `json:"blocker"`
}

// Reason converts an infeasible result into a user-facing failure. It
// returns nil for feasible results.
func (p PlacementResult) Reason() *Reason {
	if p.Feasible {
		return nil
	}
	switch p.Blocker {
	case SnapJob:
		return NewReason(ReasonOverlap, "overlaps another job and no later slot fits before the end of the workday")
	case SnapTravel:
		return NewReason(ReasonInsufficientTravel, "requires more travel time than available before the end of the workday")
	default:
		return NewReason(ReasonOutOfBounds, "")
	}
}
