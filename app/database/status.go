package database

import "fmt"

// ProcessingStatus is the lifecycle tag on links and raw captures.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusError      ProcessingStatus = "error"
	StatusIgnored    ProcessingStatus = "ignored"
)

// allowedTransitions is the closed transition table for raw captures.
// Terminal states have no outgoing transitions; recovery happens only
// through an explicit external reset.
var allowedTransitions = map[ProcessingStatus][]ProcessingStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusError, StatusIgnored},
}

func (s ProcessingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError, StatusIgnored:
		return true
	}
	return false
}

func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusIgnored:
		return true
	}
	return false
}

// CanTransition reports whether from→to is in the transition table.
func CanTransition(from, to ProcessingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition rejects transitions outside the table with an error
// that names both states.
func ValidateTransition(from, to ProcessingStatus) error {
	if !from.IsValid() {
		return fmt.Errorf("invalid processing status: %q", from)
	}
	if !to.IsValid() {
		return fmt.Errorf("invalid processing status: %q", to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal status transition: %s -> %s", from, to)
	}
	return nil
}
