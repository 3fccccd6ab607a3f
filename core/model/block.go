package model

import "fmt"

// BlockKind identifies what occupies an interval of a timeline.
type BlockKind int

const (
	BlockJob BlockKind = iota
	BlockTravel
	BlockTravelHQStart
	BlockTravelHQEnd
)

// String returns the wire name of the kind.
func (k BlockKind) String() string {
	switch k {
	case BlockJob:
		return "job"
	case BlockTravel:
		return "travel"
	case BlockTravelHQStart:
		return "travel_hq_start"
	case BlockTravelHQEnd:
		return "travel_hq_end"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind for JSON and YAML output.
func (k BlockKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a wire name produced by MarshalText.
func (k *BlockKind) UnmarshalText(b []byte) error {
	for _, c := range []BlockKind{BlockJob, BlockTravel, BlockTravelHQStart, BlockTravelHQEnd} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown block kind %q", b)
}

// IsTravel reports whether the block is any kind of travel buffer.
func (k BlockKind) IsTravel() bool { return k != BlockJob }

// OccupiedBlock is a derived interval that placement must not overlap.
type OccupiedBlock struct {
	StartMinutes int       `json:"start_minutes"`
	EndMinutes   int       `json:"end_minutes"`
	Kind         BlockKind `json:"kind"`
}

// Intersects reports whether the block overlaps [start, end).
func (b OccupiedBlock) Intersects(start, end int) bool {
	return b.StartMinutes < end && start < b.EndMinutes
}
