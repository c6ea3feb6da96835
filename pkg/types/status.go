package types

import (
	"errors"
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a Position row. Transitions follow
// a fixed graph: a PROSPECT is either pursued into PENDING or ABANDONED; a
// PENDING row is evaluated into ACCEPTED or REJECTED; PURCHASED is the
// terminal sink reached from ACCEPTED (or directly from PENDING when the
// drain catches up before evaluation).
type Status string

const (
	StatusProspect  Status = "PROSPECT"
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusAbandoned Status = "ABANDONED"
	StatusPurchased Status = "PURCHASED"
)

// ErrInvalidTransition is returned when a status change violates the
// lifecycle graph.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the fixed lifecycle graph. A status with no entry is
// terminal. No edge re-enters PROSPECT.
var transitions = map[Status][]Status{
	StatusProspect: {StatusPending, StatusAbandoned},
	StatusPending:  {StatusAccepted, StatusRejected, StatusPurchased},
	StatusAccepted: {StatusPurchased},
}

// CanTransition reports whether moving from s to target is allowed.
func (s Status) CanTransition(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusProspect, StatusPending, StatusAccepted,
		StatusRejected, StatusAbandoned, StatusPurchased:
		return true
	}
	return false
}

// AllStatuses returns every known status value in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusProspect,
		StatusPending,
		StatusAccepted,
		StatusRejected,
		StatusAbandoned,
		StatusPurchased,
	}
}

// ParseStatus converts a string into a Status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown status: %q", s)
	}
	return status, nil
}
