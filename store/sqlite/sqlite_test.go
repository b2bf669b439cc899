package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"

	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func loadedSnapshot(id string, updated time.Time) settlement.Snapshot {
	return settlement.Snapshot{
		ID: id,
		Request: settlement.Request{
			Employee:        "EMP-003",
			TransactionDate: settlement.NewDate(2024, time.June, 30),
		},
		Service: settlement.ServiceDuration{
			Years:        decimal.NewFromInt(5),
			Months:       decimal.Zero,
			Days:         decimal.NewFromInt(2),
			TotalOfYears: decimal.RequireFromString("5.01"),
		},
		Lines: []settlement.PayableLine{
			{
				Component:             "Worked Day",
				DayCount:              decimal.NewFromInt(30),
				RatePerDay:            dp("150"),
				Amount:                decimal.NewFromInt(4500),
				Basis:                 settlement.BasisRated,
				ReferenceDocumentType: "Salary Slip",
				ReferenceDocument:     "SAL-0001",
				WorkedDays:            dp("30"),
				AutoAmount:            dp("4500"),
			},
			{
				Component: "Notice Pay",
				Amount:    decimal.NewFromInt(2000),
				Basis:     settlement.BasisFixed,
			},
		},
		Totals: settlement.Totals{
			Total:           decimal.NewFromInt(6500),
			LeaveEncashment: decimal.NewFromInt(2100),
			BaselineTotal:   dp("6600"),
			Mismatch:        true,
		},
		AsOfDate:  "2024-06-30",
		UpdatedAt: updated,
	}
}

// =============================================================================
// SESSION STORE
// =============================================================================

func TestStore_SaveAndGetRoundTrip(t *testing.T) {
	// GIVEN: A snapshot with rated, fixed and optional fields
	store := newTestStore(t)
	ctx := context.Background()
	want := loadedSnapshot("fnf-1", time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC))

	// WHEN
	require.NoError(t, store.Save(ctx, want))
	got, err := store.Get(ctx, "fnf-1")
	require.NoError(t, err)

	// THEN: Everything survives
	assert.Equal(t, want.Request.Employee, got.Request.Employee)
	assert.Equal(t, "2024-06-30", got.Request.TransactionDate.String())
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, "2024-06-30", got.AsOfDate)
	assert.True(t, got.Service.TotalOfYears.Equal(decimal.RequireFromString("5.01")))

	require.Len(t, got.Lines, 2)
	wd := got.Lines[0]
	assert.Equal(t, settlement.BasisRated, wd.Basis)
	require.NotNil(t, wd.RatePerDay)
	assert.True(t, wd.RatePerDay.Equal(decimal.NewFromInt(150)))
	assert.True(t, wd.Amount.Equal(decimal.NewFromInt(4500)))
	assert.Equal(t, "SAL-0001", wd.ReferenceDocument)
	require.NotNil(t, wd.WorkedDays)
	require.NotNil(t, wd.AutoAmount)

	np := got.Lines[1]
	assert.Equal(t, settlement.BasisFixed, np.Basis)
	assert.Nil(t, np.RatePerDay)
	assert.Nil(t, np.WorkedDays)

	assert.True(t, got.Totals.Total.Equal(decimal.NewFromInt(6500)))
	assert.True(t, got.Totals.LeaveEncashment.Equal(decimal.NewFromInt(2100)))
	require.NotNil(t, got.Totals.BaselineTotal)
	assert.True(t, got.Totals.BaselineTotal.Equal(decimal.NewFromInt(6600)))
	assert.True(t, got.Totals.Mismatch)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	snap := loadedSnapshot("fnf-1", time.Now())
	require.NoError(t, store.Save(ctx, snap))

	// Employee cleared
	snap.Request.Employee = ""
	snap.Lines = nil
	snap.Totals = settlement.Totals{}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Get(ctx, "fnf-1")
	require.NoError(t, err)
	assert.Empty(t, got.Request.Employee)
	assert.Empty(t, got.Lines)
	assert.Nil(t, got.Totals.BaselineTotal)
	assert.True(t, got.Totals.Total.IsZero())
}

func TestStore_GetUnknown(t *testing.T) {
	_, err := newTestStore(t).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, settlement.ErrSessionNotFound)
}

func TestStore_ListMostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, loadedSnapshot("old", t0)))
	require.NoError(t, store.Save(ctx, loadedSnapshot("new", t0.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, loadedSnapshot("mid", t0.Add(time.Minute))))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

// =============================================================================
// EVENT LOG
// =============================================================================

func TestStore_EventsOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendEvent(ctx, settlement.Event{
		ID: "e2", SessionID: "fnf-1", Kind: settlement.EventEmployeeSet, Detail: "EMP-003",
		Outcome: settlement.OutcomeOK, At: t0.Add(time.Second),
	}))
	require.NoError(t, store.AppendEvent(ctx, settlement.Event{
		ID: "e1", SessionID: "fnf-1", Kind: settlement.EventOpened,
		Outcome: settlement.OutcomeOK, At: t0,
	}))
	require.NoError(t, store.AppendEvent(ctx, settlement.Event{
		ID: "other", SessionID: "fnf-2", Kind: settlement.EventOpened, Outcome: settlement.OutcomeOK, At: t0,
	}))

	events, err := store.Events(ctx, "fnf-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "", events[0].Detail)
	assert.Equal(t, settlement.EventEmployeeSet, events[1].Kind)
	assert.Equal(t, "EMP-003", events[1].Detail)
	assert.True(t, events[1].At.Equal(t0.Add(time.Second)))
}

func TestStore_DeleteRemovesEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, loadedSnapshot("fnf-1", time.Now())))
	require.NoError(t, store.AppendEvent(ctx, settlement.Event{ID: "e1", SessionID: "fnf-1", Kind: settlement.EventOpened, Outcome: settlement.OutcomeOK}))

	require.NoError(t, store.Delete(ctx, "fnf-1"))

	_, err := store.Get(ctx, "fnf-1")
	assert.ErrorIs(t, err, settlement.ErrSessionNotFound)
	events, err := store.Events(ctx, "fnf-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, loadedSnapshot("fnf-1", time.Now())))

	require.NoError(t, store.Reset(ctx))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_CorruptTimestampsAreErrors(t *testing.T) {
	// GIVEN: A file-backed store with one session and one event
	path := filepath.Join(t.TempDir(), "settlements.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, loadedSnapshot("fnf-1", time.Now())))
	require.NoError(t, store.AppendEvent(ctx, settlement.Event{ID: "e1", SessionID: "fnf-1", Kind: settlement.EventOpened, Outcome: settlement.OutcomeOK}))

	// WHEN: Both timestamps are overwritten with garbage
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec("UPDATE sessions SET updated_at = 'yesterday' WHERE id = 'fnf-1'")
	require.NoError(t, err)
	_, err = raw.Exec("UPDATE settlement_events SET at = 'not a time' WHERE id = 'e1'")
	require.NoError(t, err)

	// THEN: Reads fail and name the session
	_, err = store.Get(ctx, "fnf-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fnf-1")

	_, err = store.List(ctx)
	assert.Error(t, err)

	_, err = store.Events(ctx, "fnf-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fnf-1")
}
