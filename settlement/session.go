/*
session.go - Recalculation orchestrator for one settlement

PURPOSE:
  Reacts to the host form's triggering events and keeps the line table,
  the total and the service duration consistent.

EVENTS:
  Open                 form load: default the date, recalculate if an employee is set
  SetEmployee("")      clear all derived state, no fetch
  SetEmployee(id)      fetch baseline, apply
  SetTransactionDate   fetch baseline, apply (only with an employee)
  Recalculate          fetch baseline, apply (only with an employee)
  EditLine(Fields)     day count / rate edit -> recompute line, then total

RE-ENTRANCY:
  Applying a baseline writes every row of the table, and each write fires a
  FieldChange exactly like a user edit would. The session holds a Mode:
  ModeFilling while a baseline is being applied, ModeIdle otherwise. Field
  changes seen in ModeFilling are ignored. The mode is reset by a deferred
  call, so every exit path (including a rejected payload) returns to idle.

CONCURRENCY:
  The fetch runs outside the session lock, so two events may have fetches
  in flight at once. Each applies its own result when it arrives; the last
  one to finish wins. Superseded fetches are neither cancelled nor dropped,
  only logged.

FAILURE:
  A rejected payload or a failed fetch leaves lines, service duration and
  totals exactly as they were, and raises a blocking notice.

SEE ALSO:
  - apply.go: Materialize
  - table.go: FieldChange events
  - api/handlers.go: One endpoint per event
*/
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Fetcher is the external baseline computation service.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (*Payload, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (*Payload, error) {
	return f(ctx, req)
}

// Mode is the session's re-entrancy state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeFilling
)

func (m Mode) String() string {
	if m == ModeFilling {
		return "filling"
	}
	return "idle"
}

// =============================================================================
// SESSION
// =============================================================================

type Session struct {
	mu sync.Mutex

	id       string
	request  Request
	service  ServiceDuration
	table    *Table
	totals   Totals
	asOfDate string
	mode     Mode
	notices  []Notice
	updated  time.Time

	fetcher    Fetcher
	applicator *Applicator
	recorder   Recorder
	clock      func() time.Time
	logger     *log.Logger
}

// Option configures a Session.
type Option func(*Session)

func WithApplicator(a *Applicator) Option { return func(s *Session) { s.applicator = a } }
func WithRecorder(r Recorder) Option      { return func(s *Session) { s.recorder = r } }
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.clock = now }
}
func WithLogger(l *log.Logger) Option { return func(s *Session) { s.logger = l } }

// NewSession creates an empty session for req.
func NewSession(id string, req Request, fetcher Fetcher, opts ...Option) *Session {
	s := &Session{
		id:         id,
		request:    req,
		fetcher:    fetcher,
		applicator: NewApplicator(),
		recorder:   NopRecorder{},
		clock:      time.Now,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.table = NewTable(s.onFieldChange)
	s.updated = s.clock()
	return s
}

// RestoreSession rebuilds a session from a stored snapshot.
func RestoreSession(snap Snapshot, fetcher Fetcher, opts ...Option) *Session {
	s := NewSession(snap.ID, snap.Request, fetcher, opts...)
	s.service = snap.Service
	s.table.lines = cloneLines(snap.Lines)
	s.totals = snap.Totals
	s.asOfDate = snap.AsOfDate
	if !snap.UpdatedAt.IsZero() {
		s.updated = snap.UpdatedAt
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Mode reports the re-entrancy state. Outside an apply it is always idle.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// DrainNotices returns and forgets the pending notices.
func (s *Session) DrainNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// =============================================================================
// TRIGGERING EVENTS
// =============================================================================

// Open mirrors loading the form: an empty transaction date defaults to
// today, and a selected employee is recalculated straight away.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.request.TransactionDate.IsZero() {
		s.request.TransactionDate = DateOf(s.clock())
	}
	hasEmployee := s.request.HasEmployee()
	s.mu.Unlock()

	if !hasEmployee {
		return nil
	}
	return s.recalculate(ctx)
}

// SetEmployee selects (or, with "", clears) the employee.
func (s *Session) SetEmployee(ctx context.Context, employee string) error {
	s.mu.Lock()
	s.request.Employee = employee
	if !s.request.HasEmployee() {
		s.request.Employee = ""
		s.clearLocked()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.recalculate(ctx)
}

// SetTransactionDate changes the as-of date and recalculates when an
// employee is selected.
func (s *Session) SetTransactionDate(ctx context.Context, d Date) error {
	s.mu.Lock()
	s.request.TransactionDate = d
	hasEmployee := s.request.HasEmployee()
	s.touchLocked()
	s.mu.Unlock()

	if !hasEmployee {
		return nil
	}
	return s.recalculate(ctx)
}

// Recalculate is the explicit recalculate command.
func (s *Session) Recalculate(ctx context.Context) error {
	s.mu.Lock()
	hasEmployee := s.request.HasEmployee()
	s.mu.Unlock()

	if !hasEmployee {
		return nil
	}
	return s.recalculate(ctx)
}

// FieldEdit is one manual value for an editable line field.
type FieldEdit struct {
	Field Field
	Value decimal.Decimal
}

// EditLine is a manual edit of a line's day count or rate.
func (s *Session) EditLine(index int, field Field, value decimal.Decimal) error {
	return s.EditLineFields(index, FieldEdit{Field: field, Value: value})
}

// EditLineFields applies several edits to one line. Every edit is checked
// before the first write, so a rejected edit leaves the line unchanged.
func (s *Session) EditLineFields(index int, edits ...FieldEdit) error {
	for _, e := range edits {
		if e.Field != FieldDayCount && e.Field != FieldRatePerDay {
			return fmt.Errorf("%w: %s is not editable", ErrUnknownField, e.Field)
		}
		if !s.applicator.Schema.Declares(e.Field) {
			return fmt.Errorf("%w: %s", ErrFieldNotDeclared, e.Field)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.table.Line(index); err != nil {
		return err
	}
	for _, e := range edits {
		if err := s.table.Set(index, e.Field, Normalize(e.Value)); err != nil {
			return err
		}
	}
	s.touchLocked()
	return nil
}

// =============================================================================
// RECALCULATION
// =============================================================================

func (s *Session) recalculate(ctx context.Context) error {
	s.mu.Lock()
	req := s.request
	s.mu.Unlock()

	payload, err := s.fetcher.Fetch(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		var terr *TransportError
		if !errors.As(err, &terr) {
			terr = &TransportError{Employee: req.Employee, Err: err}
		}
		s.recorder.BaselineFailed(ReasonTransport)
		s.notifyLocked(NoticeError, GenericFailureMessage)
		s.logger.Printf("settlement %s: %v", s.id, terr)
		return terr
	}

	if req != s.request {
		s.logger.Printf("settlement %s: applying baseline for %s@%s after request moved to %s@%s",
			s.id, req.Employee, req.TransactionDate, s.request.Employee, s.request.TransactionDate)
	}
	return s.applyLocked(req, payload)
}

// applyLocked replaces the session's derived state with the payload.
// Caller holds s.mu.
func (s *Session) applyLocked(req Request, payload *Payload) error {
	s.mode = ModeFilling
	defer func() { s.mode = ModeIdle }()

	baseline, err := s.applicator.Materialize(req.Employee, payload)
	if err != nil {
		s.recorder.BaselineFailed(ReasonUnavailable)
		s.notifyLocked(NoticeError, NoticeMessage(err))
		s.logger.Printf("settlement %s: %v", s.id, err)
		return err
	}

	s.service = baseline.Service
	s.table.Replace(baseline.Lines)
	s.asOfDate = baseline.AsOfDate
	s.totals = Totals{
		Total:           RecomputeTotal(s.table.lines),
		LeaveEncashment: baseline.LeaveEncashment,
		BaselineTotal:   baseline.ReportedTotal,
	}
	if reported := baseline.ReportedTotal; reported != nil && !reported.Equal(s.totals.Total) {
		s.totals.Mismatch = true
		s.recorder.TotalMismatch()
		s.notifyLocked(NoticeInfo, fmt.Sprintf("Baseline total %s differs from line total %s.",
			reported.String(), s.totals.Total.String()))
		s.logger.Printf("settlement %s: baseline total %s, line total %s",
			s.id, reported.String(), s.totals.Total.String())
	}
	if baseline.Note != "" {
		s.notifyLocked(NoticeInfo, baseline.Note)
	}
	s.recorder.BaselineApplied(len(baseline.Lines))
	s.touchLocked()
	return nil
}

// onFieldChange runs synchronously inside Table writes, so s.mu is held.
func (s *Session) onFieldChange(ch FieldChange) {
	if ch.Field != FieldDayCount && ch.Field != FieldRatePerDay {
		return
	}
	if s.mode == ModeFilling {
		s.recorder.EditSuppressed()
		return
	}
	s.recomputeLineLocked(ch.Index)
}

func (s *Session) recomputeLineLocked(i int) {
	line := s.table.lines[i]
	if line.Rated() {
		amount := s.applicator.Rules.Compute(line.Component, line.DayCount, *line.RatePerDay)
		// The amount write fires FieldAmount, which onFieldChange ignores.
		_ = s.table.Set(i, FieldAmount, amount)
		s.recorder.LineRecomputed(line.Component)
	}
	s.totals.Total = RecomputeTotal(s.table.lines)
}

func (s *Session) clearLocked() {
	s.service = ServiceDuration{}
	s.table.Clear()
	s.totals = Totals{}
	s.asOfDate = ""
	s.touchLocked()
}

func (s *Session) notifyLocked(kind NoticeKind, msg string) {
	s.notices = append(s.notices, Notice{Kind: kind, Message: msg})
}

func (s *Session) touchLocked() {
	s.updated = s.clock()
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID        string
	Request   Request
	Service   ServiceDuration
	Lines     []PayableLine
	Totals    Totals
	AsOfDate  string
	UpdatedAt time.Time
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := s.totals
	totals.BaselineTotal = copyDecimal(totals.BaselineTotal)
	return Snapshot{
		ID:        s.id,
		Request:   s.request,
		Service:   s.service,
		Lines:     s.table.Lines(),
		Totals:    totals,
		AsOfDate:  s.asOfDate,
		UpdatedAt: s.updated,
	}
}
