// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - TravelResolved: a travel duration lookup finished (known or unknown)
//   - CommitEvent: a commit moved to a new phase (applied, reconciled, rolled back)
//   - LaneWindowsUpdated: a lane's travel windows were recomputed after lookups resolved
package events
