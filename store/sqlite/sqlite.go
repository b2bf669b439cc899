/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements settlement.SessionStore and settlement.EventLog using SQLite.
  Sessions survive a restart of the server; the event log keeps a
  history of every triggering event and its outcome.

KEY TABLES:
  sessions:           One row per settlement session (latest snapshot)
  settlement_events:  Append-only history of triggering events

SNAPSHOT ENCODING:
  Scalar request fields are columns. The line table, service duration and
  totals are JSON columns: the table is always replaced wholesale, never
  queried row by row. Decimals are stored as strings to keep precision.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of database/sql.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/settlements.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - settlement/store.go: Interface definitions
  - settlement/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/settlement"
)

// timeLayout is fixed-width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements settlement.SessionStore and settlement.EventLog.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ settlement.SessionStore = (*Store)(nil)
	_ settlement.EventLog     = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		employee TEXT NOT NULL DEFAULT '',
		transaction_date TEXT NOT NULL DEFAULT '',
		service_json TEXT NOT NULL,
		lines_json TEXT NOT NULL,
		totals_json TEXT NOT NULL,
		as_of_date TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_employee
		ON sessions(employee);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at
		ON sessions(updated_at DESC);

	-- Event log (append-only)
	CREATE TABLE IF NOT EXISTS settlement_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT,
		outcome TEXT NOT NULL,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlement_events_session
		ON settlement_events(session_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// JSON RECORDS
// =============================================================================

type serviceRecord struct {
	Years        decimal.Decimal `json:"years"`
	Months       decimal.Decimal `json:"months"`
	Days         decimal.Decimal `json:"days"`
	TotalOfYears decimal.Decimal `json:"total_of_years"`
}

type lineRecord struct {
	Component             string           `json:"component"`
	DayCount              decimal.Decimal  `json:"day_count"`
	RatePerDay            *decimal.Decimal `json:"rate_per_day,omitempty"`
	Amount                decimal.Decimal  `json:"amount"`
	Basis                 string           `json:"basis"`
	ReferenceDocumentType string           `json:"reference_document_type,omitempty"`
	ReferenceDocument     string           `json:"reference_document,omitempty"`
	WorkedDays            *decimal.Decimal `json:"worked_days,omitempty"`
	AutoAmount            *decimal.Decimal `json:"auto_amount,omitempty"`
}

type totalsRecord struct {
	Total           decimal.Decimal  `json:"total"`
	LeaveEncashment decimal.Decimal  `json:"leave_encashment"`
	BaselineTotal   *decimal.Decimal `json:"baseline_total,omitempty"`
	Mismatch        bool             `json:"mismatch,omitempty"`
}

func encodeSnapshot(snap settlement.Snapshot) (service, lines, totals []byte, err error) {
	service, err = json.Marshal(serviceRecord{
		Years:        snap.Service.Years,
		Months:       snap.Service.Months,
		Days:         snap.Service.Days,
		TotalOfYears: snap.Service.TotalOfYears,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	records := make([]lineRecord, len(snap.Lines))
	for i, l := range snap.Lines {
		records[i] = lineRecord{
			Component:             l.Component,
			DayCount:              l.DayCount,
			RatePerDay:            l.RatePerDay,
			Amount:                l.Amount,
			Basis:                 string(l.Basis),
			ReferenceDocumentType: l.ReferenceDocumentType,
			ReferenceDocument:     l.ReferenceDocument,
			WorkedDays:            l.WorkedDays,
			AutoAmount:            l.AutoAmount,
		}
	}
	lines, err = json.Marshal(records)
	if err != nil {
		return nil, nil, nil, err
	}

	totals, err = json.Marshal(totalsRecord{
		Total:           snap.Totals.Total,
		LeaveEncashment: snap.Totals.LeaveEncashment,
		BaselineTotal:   snap.Totals.BaselineTotal,
		Mismatch:        snap.Totals.Mismatch,
	})
	return service, lines, totals, err
}

func decodeSnapshot(snap *settlement.Snapshot, service, lines, totals string) error {
	var sr serviceRecord
	if err := json.Unmarshal([]byte(service), &sr); err != nil {
		return fmt.Errorf("decode service: %w", err)
	}
	snap.Service = settlement.ServiceDuration{
		Years:        sr.Years,
		Months:       sr.Months,
		Days:         sr.Days,
		TotalOfYears: sr.TotalOfYears,
	}

	var records []lineRecord
	if err := json.Unmarshal([]byte(lines), &records); err != nil {
		return fmt.Errorf("decode lines: %w", err)
	}
	snap.Lines = make([]settlement.PayableLine, len(records))
	for i, r := range records {
		snap.Lines[i] = settlement.PayableLine{
			Component:             r.Component,
			DayCount:              r.DayCount,
			RatePerDay:            r.RatePerDay,
			Amount:                r.Amount,
			Basis:                 settlement.Basis(r.Basis),
			ReferenceDocumentType: r.ReferenceDocumentType,
			ReferenceDocument:     r.ReferenceDocument,
			WorkedDays:            r.WorkedDays,
			AutoAmount:            r.AutoAmount,
		}
	}

	var tr totalsRecord
	if err := json.Unmarshal([]byte(totals), &tr); err != nil {
		return fmt.Errorf("decode totals: %w", err)
	}
	snap.Totals = settlement.Totals{
		Total:           tr.Total,
		LeaveEncashment: tr.LeaveEncashment,
		BaselineTotal:   tr.BaselineTotal,
		Mismatch:        tr.Mismatch,
	}
	return nil
}

// =============================================================================
// SESSION STORE (settlement.SessionStore interface)
// =============================================================================

// Save upserts the session snapshot.
func (s *Store) Save(ctx context.Context, snap settlement.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	service, lines, totals, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}

	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT INTO sessions (id, employee, transaction_date, service_json, lines_json, totals_json, as_of_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee = excluded.employee,
			transaction_date = excluded.transaction_date,
			service_json = excluded.service_json,
			lines_json = excluded.lines_json,
			totals_json = excluded.totals_json,
			as_of_date = excluded.as_of_date,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		snap.ID, snap.Request.Employee, snap.Request.TransactionDate.String(),
		string(service), string(lines), string(totals), snap.AsOfDate,
		updatedAt.UTC().Format(timeLayout),
	)
	return err
}

// Get retrieves a session snapshot by ID.
func (s *Store) Get(ctx context.Context, id string) (*settlement.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, employee, transaction_date, service_json, lines_json, totals_json, as_of_date, updated_at
		FROM sessions WHERE id = ?`, id)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", settlement.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List returns all sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]settlement.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee, transaction_date, service_json, lines_json, totals_json, as_of_date, updated_at
		FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlement.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *snap)
	}
	return result, rows.Err()
}

// Delete removes a session and its events.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM settlement_events WHERE session_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*settlement.Snapshot, error) {
	var (
		snap                                settlement.Snapshot
		txDate, service, lines, totals, upd string
	)
	if err := row.Scan(&snap.ID, &snap.Request.Employee, &txDate,
		&service, &lines, &totals, &snap.AsOfDate, &upd); err != nil {
		return nil, err
	}

	d, err := settlement.ParseDate(txDate)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", snap.ID, err)
	}
	snap.Request.TransactionDate = d
	if snap.UpdatedAt, err = time.Parse(timeLayout, upd); err != nil {
		return nil, fmt.Errorf("session %s: updated_at: %w", snap.ID, err)
	}

	if err := decodeSnapshot(&snap, service, lines, totals); err != nil {
		return nil, fmt.Errorf("session %s: %w", snap.ID, err)
	}
	return &snap, nil
}

// =============================================================================
// EVENT LOG (settlement.EventLog interface)
// =============================================================================

// AppendEvent records a triggering event. Append-only.
func (s *Store) AppendEvent(ctx context.Context, e settlement.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_events (id, session_id, kind, detail, outcome, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, string(e.Kind), nullString(e.Detail), e.Outcome,
		at.UTC().Format(timeLayout),
	)
	return err
}

// Events returns a session's events, oldest first.
func (s *Store) Events(ctx context.Context, sessionID string) ([]settlement.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, kind, detail, outcome, at
		FROM settlement_events WHERE session_id = ? ORDER BY at, rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []settlement.Event
	for rows.Next() {
		var (
			e      settlement.Event
			kind   string
			detail sql.NullString
			at     string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &detail, &e.Outcome, &at); err != nil {
			return nil, err
		}
		e.Kind = settlement.EventKind(kind)
		e.Detail = detail.String
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("session %s: event %s: %w", sessionID, e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Reset deletes all data. Development only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM settlement_events; DELETE FROM sessions;")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
