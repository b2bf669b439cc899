/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (api, cmd) map these to status codes and user notices.

ERROR CATEGORIES:
  1. Baseline errors - The external computation service refused or failed
  2. Edit errors     - A line edit named a missing line or field
  3. Store errors    - Session lookup failures

RECOVERY:
  BaselineUnavailable and TransportFailure are both recovered locally by the
  orchestrator: the prior table, service duration and total are kept, a
  blocking notice is raised, and the re-entrancy mode is released.

SEE ALSO:
  - session.go: Raises baseline errors from triggering events
  - baseline/client.go: Produces TransportError
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBaselineUnavailable is returned when the baseline payload is absent
	// or reports ok=false.
	ErrBaselineUnavailable = errors.New("baseline unavailable")

	// ErrTransportFailure is returned when the baseline fetch itself could
	// not complete.
	ErrTransportFailure = errors.New("baseline transport failure")

	// ErrLineNotFound is returned when an edit targets a row index outside the table.
	ErrLineNotFound = errors.New("line not found")

	// ErrUnknownField is returned when an edit names a field that is not editable.
	ErrUnknownField = errors.New("unknown line field")

	// ErrFieldNotDeclared is returned when an edit targets an optional field
	// the line schema does not declare.
	ErrFieldNotDeclared = errors.New("line field not declared by schema")

	// ErrSessionNotFound is returned when a referenced session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidDate is returned when a transaction date cannot be parsed.
	ErrInvalidDate = errors.New("invalid transaction date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BaselineUnavailableError carries the message the service supplied.
type BaselineUnavailableError struct {
	Employee string
	Message  string
}

func (e *BaselineUnavailableError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("baseline unavailable for %s", e.Employee)
	}
	return fmt.Sprintf("baseline unavailable for %s: %s", e.Employee, e.Message)
}

func (e *BaselineUnavailableError) Unwrap() error {
	return ErrBaselineUnavailable
}

// TransportError wraps the cause of a failed fetch.
type TransportError struct {
	Employee string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch baseline for %s: %v", e.Employee, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransportFailure, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrFieldNotDeclared) ||
		errors.Is(err, ErrInvalidDate)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsUpstreamError returns true if the baseline service is to blame.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrBaselineUnavailable) || errors.Is(err, ErrTransportFailure)
}

// NoticeMessage returns the user-facing text for a baseline error.
// Falls back to a generic message when the service supplied none.
func NoticeMessage(err error) string {
	var unavailable *BaselineUnavailableError
	if errors.As(err, &unavailable) && unavailable.Message != "" {
		return unavailable.Message
	}
	return GenericFailureMessage
}

// GenericFailureMessage is shown when no better message is available.
const GenericFailureMessage = "Unable to calculate Full & Final."
