package travel

import (
	"strings"

	"github.com/kilianp07/crewsched/core/model"
)

// PairKey identifies an ordered (origin, destination) pair. Addresses are
// lowercased and trimmed so equivalent spellings share one cache entry.
type PairKey struct {
	Origin      string
	Destination string
}

// NewPairKey normalizes the pair. ok is false when either address is unknown.
func NewPairKey(origin, destination model.Address) (PairKey, bool) {
	o := normalize(origin)
	d := normalize(destination)
	if o == "" || d == "" {
		return PairKey{}, false
	}
	return PairKey{Origin: o, Destination: d}, true
}

func normalize(a model.Address) string {
	return strings.ToLower(strings.TrimSpace(string(a)))
}

// Same reports whether both ends are the same place.
func (k PairKey) Same() bool { return k.Origin == k.Destination }

func (k PairKey) String() string { return k.Origin + "\x1f" + k.Destination }

// Pair is an un-normalized lookup request.
type Pair struct {
	Origin      model.Address
	Destination model.Address
}

// State describes what a cache read knows about a pair.
type State int

const (
	// Pending means no result yet: never requested or still in flight.
	Pending State = iota
	// Known means a duration was resolved.
	Known
	// Unknown means the lookup finished without a usable duration.
	Unknown
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Known:
		return "known"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Table is a synchronous, cache-only view of travel durations. It must never
// block or perform I/O: the preview hot path reads it on every pointer move.
type Table interface {
	Cached(origin, destination model.Address) (minutes float64, state State)
}

// Entry is a resolved cache value.
type Entry struct {
	Minutes float64
	Known   bool
}

// Durations is a plain map Table, handy for pure callers and tests.
type Durations map[PairKey]Entry

// Set records a known duration.
func (d Durations) Set(origin, destination model.Address, minutes float64) {
	if k, ok := NewPairKey(origin, destination); ok {
		d[k] = Entry{Minutes: minutes, Known: true}
	}
}

// SetUnknown records a finished lookup without a usable result.
func (d Durations) SetUnknown(origin, destination model.Address) {
	if k, ok := NewPairKey(origin, destination); ok {
		d[k] = Entry{}
	}
}

// Cached implements Table.
func (d Durations) Cached(origin, destination model.Address) (float64, State) {
	k, ok := NewPairKey(origin, destination)
	if !ok {
		return 0, Unknown
	}
	if k.Same() {
		return 0, Known
	}
	e, found := d[k]
	switch {
	case !found:
		return 0, Pending
	case !e.Known:
		return 0, Unknown
	default:
		return e.Minutes, Known
	}
}
