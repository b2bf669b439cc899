/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the recalculation orchestrator via REST API. Each endpoint that
  changes a settlement maps to exactly one triggering event on the form.

ENDPOINTS:
  Settlements:
    POST   /api/settlements                          Create and open (form load)
    GET    /api/settlements                          List settlements
    GET    /api/settlements/{id}                     Get one settlement
    DELETE /api/settlements/{id}                     Delete a settlement
    PUT    /api/settlements/{id}/employee            Select or clear the employee
    PUT    /api/settlements/{id}/transaction-date    Change the as-of date
    POST   /api/settlements/{id}/recalculate         Explicit recalculation
    PATCH  /api/settlements/{id}/lines/{index}       Edit day count / rate
    GET    /api/settlements/{id}/events              Event history

  Rule engine:
    POST   /api/amount                               Pure amount computation

  Demo:
    GET    /api/fixtures                             Fixture payloads (fixture mode)
    POST   /api/reset                                Clear all sessions (dev only)

ARCHITECTURE:
  Handler holds the live sessions keyed by ID. A session missing from the
  map (e.g. after a restart) is restored from the store on first use.
  After every event the snapshot is saved and the event appended to the log.

ERROR HANDLING:
  Event endpoints always answer with the settlement state, the drained
  notices and, on failure, an error message:
  - 400: Invalid input (bad date, unknown line or field)
  - 404: Settlement not found
  - 422: Baseline unavailable (service refused, message passed through)
  - 502: Baseline transport failure
  - 500: Store errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - settlement/session.go: The orchestrator
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/baseline"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store persists sessions and their event history.
type Store interface {
	settlement.SessionStore
	settlement.EventLog
}

// resetter is implemented by stores that support a dev reset.
type resetter interface {
	Reset(ctx context.Context) error
}

// capper is implemented by calculators with per-component day caps.
type capper interface {
	Cap(component string) (decimal.Decimal, bool)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      Store
	Fetcher    settlement.Fetcher
	Applicator *settlement.Applicator
	Recorder   settlement.Recorder

	// Fixtures is set in fixture mode only.
	Fixtures *baseline.FixtureFetcher
	Logger   *log.Logger

	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]*settlement.Session
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

func WithApplicator(a *settlement.Applicator) HandlerOption {
	return func(h *Handler) { h.Applicator = a }
}
func WithRecorder(r settlement.Recorder) HandlerOption {
	return func(h *Handler) { h.Recorder = r }
}
func WithFixtures(f *baseline.FixtureFetcher) HandlerOption {
	return func(h *Handler) { h.Fixtures = f }
}
func WithLogger(l *log.Logger) HandlerOption {
	return func(h *Handler) { h.Logger = l }
}
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.clock = now }
}

// NewHandler creates a handler serving sessions from store.
func NewHandler(store Store, fetcher settlement.Fetcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		Store:      store,
		Fetcher:    fetcher,
		Applicator: settlement.NewApplicator(),
		Recorder:   settlement.NopRecorder{},
		Logger:     log.Default(),
		clock:      time.Now,
		sessions:   make(map[string]*settlement.Session),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) sessionOptions() []settlement.Option {
	return []settlement.Option{
		settlement.WithApplicator(h.Applicator),
		settlement.WithRecorder(h.Recorder),
		settlement.WithClock(h.clock),
		settlement.WithLogger(h.Logger),
	}
}

// session returns the live session, restoring it from the store if needed.
func (h *Handler) session(ctx context.Context, id string) (*settlement.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[id]; ok {
		return s, nil
	}
	snap, err := h.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s := settlement.RestoreSession(*snap, h.Fetcher, h.sessionOptions()...)
	h.sessions[id] = s
	return s, nil
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// CreateSettlement creates a session and opens it like a form load.
func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req CreateSettlementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := settlement.ParseDate(req.TransactionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction date", err)
		return
	}

	s := settlement.NewSession(uuid.NewString(), settlement.Request{
		Employee:        strings.TrimSpace(req.Employee),
		TransactionDate: date,
	}, h.Fetcher, h.sessionOptions()...)

	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()

	evErr := s.Open(fetchContext(r))
	h.finish(w, r, s, settlement.EventOpened, req.Employee, evErr, http.StatusCreated)
}

// ListSettlements returns all stored settlements, most recent first.
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
		return
	}

	dtos := make([]SettlementDTO, len(snaps))
	for i, snap := range snaps {
		dtos[i] = toSettlementDTO(snap)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSettlement returns one settlement.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SettlementResponse{
		Settlement: toSettlementDTO(s.Snapshot()),
		Notices:    []NoticeDTO{},
	})
}

// DeleteSettlement removes a settlement and its history.
func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.lookup(w, r); !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete settlement", err)
		return
	}

	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// SetEmployee selects the employee. An empty employee clears the form.
func (h *Handler) SetEmployee(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req SetEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind := settlement.EventEmployeeSet
	if strings.TrimSpace(req.Employee) == "" {
		kind = settlement.EventEmployeeCleared
	}
	evErr := s.SetEmployee(fetchContext(r), req.Employee)
	h.finish(w, r, s, kind, req.Employee, evErr, http.StatusOK)
}

// SetTransactionDate changes the as-of date.
func (h *Handler) SetTransactionDate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req SetDateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := settlement.ParseDate(req.TransactionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction date", err)
		return
	}

	evErr := s.SetTransactionDate(fetchContext(r), date)
	h.finish(w, r, s, settlement.EventDateChanged, date.String(), evErr, http.StatusOK)
}

// Recalculate refetches the baseline for the current employee and date.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	evErr := s.Recalculate(fetchContext(r))
	h.finish(w, r, s, settlement.EventRecalculated, "", evErr, http.StatusOK)
}

// EditLine applies a manual day count and/or rate edit to one line.
func (h *Handler) EditLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid line index", err)
		return
	}
	var req EditLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.DayCount == nil && req.RatePerDay == nil {
		writeError(w, http.StatusBadRequest, "Nothing to edit", errors.New("day_count or rate_per_day is required"))
		return
	}

	var (
		edits  []settlement.FieldEdit
		detail []string
	)
	if req.DayCount != nil {
		edits = append(edits, settlement.FieldEdit{Field: settlement.FieldDayCount, Value: req.DayCount.Decimal()})
	}
	if req.RatePerDay != nil {
		edits = append(edits, settlement.FieldEdit{Field: settlement.FieldRatePerDay, Value: req.RatePerDay.Decimal()})
	}
	for _, e := range edits {
		detail = append(detail, fmt.Sprintf("%s=%s", e.Field, e.Value))
	}
	evErr := s.EditLineFields(index, edits...)
	h.finish(w, r, s, settlement.EventLineEdited,
		fmt.Sprintf("line %d: %s", index, strings.Join(detail, " ")), evErr, http.StatusOK)
}

// ListEvents returns a settlement's event history, oldest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	events, err := h.Store.Events(r.Context(), s.ID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RULE ENGINE
// =============================================================================

// ComputeAmount runs the line rule engine without touching any session.
func (h *Handler) ComputeAmount(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	days := req.DayCount.Decimal()
	amount := h.Applicator.Rules.Compute(req.Component, days, req.RatePerDay.Decimal())

	capped := false
	if c, ok := h.Applicator.Rules.(capper); ok {
		if limit, ok := c.Cap(req.Component); ok && days.GreaterThan(limit) {
			capped = true
		}
	}

	writeJSON(w, http.StatusOK, AmountResponse{
		Component: req.Component,
		Amount:    amount.InexactFloat64(),
		Capped:    capped,
	})
}

// =============================================================================
// DEMO
// =============================================================================

// ListFixtures returns the fixture payloads available in fixture mode.
func (h *Handler) ListFixtures(w http.ResponseWriter, r *http.Request) {
	if h.Fixtures == nil {
		writeError(w, http.StatusNotFound, "Fixture mode is off", nil)
		return
	}
	fixtures := h.Fixtures.List()
	dtos := make([]FixtureDTO, len(fixtures))
	for i, f := range fixtures {
		dtos[i] = toFixtureDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResetDatabase clears all sessions.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := rs.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.sessions = make(map[string]*settlement.Session)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// fetchContext detaches a baseline fetch from the request so a client
// disconnect does not cancel it. The client timeout still bounds the call.
func fetchContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// lookup resolves {id} and writes the error response itself.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*settlement.Session, bool) {
	s, err := h.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if settlement.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Settlement not found", err)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to load settlement", err)
		}
		return nil, false
	}
	return s, true
}

// finish persists the outcome of one triggering event and writes the response.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, s *settlement.Session,
	kind settlement.EventKind, detail string, evErr error, okStatus int) {
	// The session already changed; persist it even if the client left.
	ctx := context.WithoutCancel(r.Context())
	snap := s.Snapshot()

	if err := h.Store.Save(ctx, snap); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settlement", err)
		return
	}

	outcome := settlement.OutcomeOK
	if evErr != nil {
		outcome = evErr.Error()
	}
	if err := h.Store.AppendEvent(ctx, settlement.Event{
		ID:        uuid.NewString(),
		SessionID: s.ID(),
		Kind:      kind,
		Detail:    detail,
		Outcome:   outcome,
		At:        h.clock(),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record event", err)
		return
	}

	resp := SettlementResponse{
		Settlement: toSettlementDTO(snap),
		Notices:    toNoticeDTOs(s.DrainNotices()),
	}
	status := okStatus
	if evErr != nil {
		status = statusFor(evErr)
		if settlement.IsUpstreamError(evErr) {
			resp.Error = settlement.NoticeMessage(evErr)
		} else {
			resp.Error = evErr.Error()
		}
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, settlement.ErrBaselineUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrTransportFailure):
		return http.StatusBadGateway
	case settlement.IsNotFound(err):
		return http.StatusNotFound
	case settlement.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
