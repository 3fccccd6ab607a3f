package model

import (
	"errors"
	"fmt"
)

// ReasonCode classifies a rejected placement or commit.
type ReasonCode string

const (
	ReasonInvalidInput        ReasonCode = "INVALID_INPUT"
	ReasonOutOfBounds         ReasonCode = "OUT_OF_BOUNDS"
	ReasonOverlap             ReasonCode = "OVERLAPS_JOB"
	ReasonInsufficientTravel  ReasonCode = "INSUFFICIENT_TRAVEL_TIME"
	ReasonTravelPending       ReasonCode = "TRAVEL_PENDING"
	ReasonInsufficientHQ      ReasonCode = "INSUFFICIENT_HQ_BUFFER"
	ReasonHQTravelUnknown     ReasonCode = "HQ_TRAVEL_UNKNOWN"
	ReasonAssignmentCompleted ReasonCode = "ASSIGNMENT_COMPLETED"
	ReasonCommitInFlight      ReasonCode = "COMMIT_IN_FLIGHT"
	ReasonPersistence         ReasonCode = "PERSISTENCE_FAILED"
	ReasonNotFound            ReasonCode = "NOT_FOUND"
	ReasonCancelled           ReasonCode = "CANCELLED"
)

var defaultMessages = map[ReasonCode]string{
	ReasonInvalidInput:        "invalid input",
	ReasonOutOfBounds:         "outside working hours",
	ReasonOverlap:             "overlaps another job",
	ReasonInsufficientTravel:  "requires more travel time than available",
	ReasonTravelPending:       "still calculating travel time, try again",
	ReasonInsufficientHQ:      "not enough time to travel to or from headquarters",
	ReasonHQTravelUnknown:     "travel time to headquarters is unknown",
	ReasonAssignmentCompleted: "completed assignments cannot be changed",
	ReasonCommitInFlight:      "another change to this assignment is still being saved",
	ReasonPersistence:         "could not save the change",
	ReasonNotFound:            "assignment not found",
	ReasonCancelled:           "placement cancelled",
}

// Reason is the structured error surfaced to callers of the engine.
type Reason struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
}

// NewReason builds a Reason. An empty message falls back to the code's default text.
func NewReason(code ReasonCode, msg string) *Reason {
	if msg == "" {
		msg = defaultMessages[code]
	}
	return &Reason{Code: code, Message: msg}
}

// WrapReason builds a Reason carrying the underlying cause.
func WrapReason(code ReasonCode, err error) *Reason {
	r := NewReason(code, "")
	r.Err = err
	return r
}

func (r *Reason) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Code, r.Message, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func (r *Reason) Unwrap() error { return r.Err }

// Is matches another *Reason by code so errors.Is works with sentinel reasons.
func (r *Reason) Is(target error) bool {
	t, ok := target.(*Reason)
	return ok && t.Code == r.Code
}

// ReasonOf extracts the code of err, or "" if err carries no Reason.
func ReasonOf(err error) ReasonCode {
	var r *Reason
	if errors.As(err, &r) {
		return r.Code
	}
	return ""
}
