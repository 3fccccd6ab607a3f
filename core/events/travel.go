package events

import (
	"time"

	"github.com/kilianp07/crewsched/core/model"
)

// TravelResolved is published once per upstream travel lookup.
type TravelResolved struct {
	Origin      model.Address
	Destination model.Address
	Minutes     float64
	Known       bool
	Latency     time.Duration
	Err         error
}

// LaneWindowsUpdated is published when background lookups complete and a
// lane's window set has been recomputed.
type LaneWindowsUpdated struct {
	CrewID  string
	Day     model.DayKey
	JobID   string
	Pending bool
	Windows int
}
