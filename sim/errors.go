package sim

import "fmt"

// All errors in this file are recoverable at the call site: the driver logs
// and skips the offending operation for the tick instead of aborting the run.

// NotFoundError reports an unknown subject, alert, or node id — the caller
// passed a stale or invalid identifier.
type NotFoundError struct {
	Kind string // "subject", "alert", "node"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// InvalidStateError reports an illegal status transition, such as resolving
// an already-resolved alert.
type InvalidStateError struct {
	ID     string
	From   string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("alert %q: cannot %s from status %s", e.ID, e.Action, e.From)
}

// DuplicateAlertError reports an id collision on alert registration.
type DuplicateAlertError struct {
	ID string
}

func (e *DuplicateAlertError) Error() string {
	return fmt.Sprintf("alert %q already registered", e.ID)
}

// InvalidScheduleError reports an itinerary that is not time-ordered, empty,
// or re-created without an explicit clear.
type InvalidScheduleError struct {
	SubjectID string
	Reason    string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule for subject %q: %s", e.SubjectID, e.Reason)
}

// NoPathError reports that no route exists between the snapped endpoints
// under current connectivity and accessibility constraints.
type NoPathError struct {
	StartNode             string
	EndNode               string
	AccessibilityRequired bool
}

func (e *NoPathError) Error() string {
	if e.AccessibilityRequired {
		return fmt.Sprintf("no accessible path from %q to %q", e.StartNode, e.EndNode)
	}
	return fmt.Sprintf("no path from %q to %q", e.StartNode, e.EndNode)
}

// UnknownMetricError reports a query for a metric name the analytics engine
// never registered.
type UnknownMetricError struct {
	Metric string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown analytics metric %q", e.Metric)
}
