/*
store.go - Persistence interfaces for settlement sessions

PURPOSE:
  Defines the boundary between the orchestrator and whatever keeps
  sessions across restarts. The engine itself never calls these; the api
  layer saves a Snapshot and appends an Event after every triggering event.

KEY INTERFACES:
  SessionStore: Snapshot persistence (save/get/list/delete)
  EventLog:     Append-only history of triggering events

OWNERSHIP:
  A session is owned by exactly one form. Stores do no merging: Save
  overwrites the previous snapshot for the same ID.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:       SQLite
  - settlement/store/memory.go:   In-memory for testing

SEE ALSO:
  - session.go: Snapshot / RestoreSession
*/
package settlement

import (
	"context"
	"time"
)

// =============================================================================
// SESSION STORE
// =============================================================================

type SessionStore interface {
	// Save writes snap, replacing any earlier snapshot with the same ID.
	Save(ctx context.Context, snap Snapshot) error

	// Get returns ErrSessionNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// List returns all snapshots, most recently updated first.
	List(ctx context.Context) ([]Snapshot, error)

	Delete(ctx context.Context, id string) error
}

// =============================================================================
// EVENT LOG - Append-only, tracks what happened to a session
// =============================================================================

type EventKind string

const (
	EventOpened          EventKind = "opened"
	EventEmployeeSet     EventKind = "employee_set"
	EventEmployeeCleared EventKind = "employee_cleared"
	EventDateChanged     EventKind = "date_changed"
	EventRecalculated    EventKind = "recalculated"
	EventLineEdited      EventKind = "line_edited"
)

// Event records one triggering event and its outcome.
type Event struct {
	ID        string
	SessionID string
	Kind      EventKind
	Detail    string
	// Outcome is "ok" or the error text.
	Outcome string
	At      time.Time
}

// OutcomeOK marks a successful event.
const OutcomeOK = "ok"

type EventLog interface {
	AppendEvent(ctx context.Context, e Event) error
	// Events returns a session's events oldest first.
	Events(ctx context.Context, sessionID string) ([]Event, error)
}
