// Package domain provides the pure domain layer for DOI deposits with no infrastructure dependencies.
//
// It defines the depositable Object entity and its closed Status variant, the Outcome
// of a single deposit attempt, the Batch history record, and the repository interfaces
// the persistence layer implements.
package domain

import "fmt"

// Status is the deposit status of a depositable object.
// The set is closed: only the constants below are valid, and movement between them
// goes through CanTransitionTo.
type Status uint8

const (
	// StatusNotDeposited is the initial status of every object.
	StatusNotDeposited Status = iota

	// StatusFailed means the last deposit attempt was rejected or failed at CrossRef.
	StatusFailed

	// StatusRegistered means CrossRef accepted the last deposit.
	StatusRegistered

	// StatusMarkedRegistered means an operator marked the object registered by hand.
	StatusMarkedRegistered
)

var statusNames = [...]string{
	StatusNotDeposited:     "notDeposited",
	StatusFailed:           "failed",
	StatusRegistered:       "registered",
	StatusMarkedRegistered: "markedRegistered",
}

// String returns the persisted name of the status.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// IsValid returns true if the status is one of the declared constants.
func (s Status) IsValid() bool {
	return int(s) < len(statusNames)
}

// IsRegistered returns true for both agency-confirmed and manually marked registrations.
func (s Status) IsRegistered() bool {
	return s == StatusRegistered || s == StatusMarkedRegistered
}

// ParseStatus converts a persisted name back into a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return StatusNotDeposited, fmt.Errorf("unknown deposit status %q", name)
}

// AllStatuses returns every status in declaration order.
func AllStatuses() []Status {
	return []Status{StatusNotDeposited, StatusFailed, StatusRegistered, StatusMarkedRegistered}
}

// CanTransitionTo reports whether moving from s to next is allowed.
//
//	notDeposited -> failed | registered
//	failed       -> failed | registered
//	registered   -> registered
//	any          -> markedRegistered
func (s Status) CanTransitionTo(next Status) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if next == StatusMarkedRegistered {
		return true
	}
	switch s {
	case StatusNotDeposited, StatusFailed:
		return next == StatusFailed || next == StatusRegistered
	case StatusRegistered:
		return next == StatusRegistered
	default:
		return false
	}
}
