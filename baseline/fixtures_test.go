package baseline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/baseline"
	"github.com/warp/settlement-engine/settlement"
)

func TestFixtureFetcher_DefaultFixtures(t *testing.T) {
	f := baseline.NewFixtureFetcher(baseline.DefaultFixtures())
	ctx := context.Background()

	p, err := f.Fetch(ctx, request)
	require.NoError(t, err)
	assert.True(t, p.OK)
	assert.Equal(t, "2024-06-30", p.AsOfDate, "as-of date echoes the request")
	assert.Len(t, p.Payables, 2)
	assert.Equal(t, 1, f.FetchCount("EMP-001"))

	// The fixture itself is not shared with callers
	p.Payables[0].Component = "changed"
	again, err := f.Fetch(ctx, request)
	require.NoError(t, err)
	assert.Equal(t, "Worked Day", again.Payables[0].Component)
}

func TestFixtureFetcher_Refusals(t *testing.T) {
	f := baseline.NewFixtureFetcher(baseline.DefaultFixtures())
	ctx := context.Background()

	active, err := f.Fetch(ctx, settlement.Request{Employee: "EMP-004"})
	require.NoError(t, err)
	assert.False(t, active.OK)
	assert.Equal(t, "Employee is still Active. Please set Status to Left and try again.", active.Msg)

	unknown, err := f.Fetch(ctx, settlement.Request{Employee: "EMP-999"})
	require.NoError(t, err)
	assert.False(t, unknown.OK)
	assert.Equal(t, "Employee not found", unknown.Msg)

	blank, err := f.Fetch(ctx, settlement.Request{Employee: " "})
	require.NoError(t, err)
	assert.False(t, blank.OK)
}

func TestFixtureFetcher_EndToEndThroughApplicator(t *testing.T) {
	// GIVEN: The EMP-001 fixture
	f := baseline.NewFixtureFetcher(baseline.DefaultFixtures())
	p, err := f.Fetch(context.Background(), request)
	require.NoError(t, err)

	// WHEN
	b, err := settlement.NewApplicator().Materialize("EMP-001", p)
	require.NoError(t, err)

	// THEN: 3000 + 1500
	assert.Equal(t, "4500", settlement.RecomputeTotal(b.Lines).String())
}

func TestFixtureFetcher_List(t *testing.T) {
	f := baseline.NewFixtureFetcher(baseline.DefaultFixtures())

	list := f.List()
	require.Len(t, list, 5)
	assert.Equal(t, "EMP-001", list[0].Employee)
	assert.Equal(t, "EMP-005", list[4].Employee)
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{
			"employee": "EMP-100",
			"name": "Custom",
			"payload": {
				"ok": true,
				"payables": [{"component": "Gratuity", "worked_days": "5", "auto_amount": 500}]
			}
		}
	]`), 0o644))

	fixtures, err := baseline.LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, fixtures, 1)

	f := baseline.NewFixtureFetcher(fixtures)
	p, err := f.Fetch(context.Background(), settlement.Request{Employee: "EMP-100"})
	require.NoError(t, err)
	require.Len(t, p.Payables, 1)
	assert.Equal(t, "5", p.Payables[0].WorkedDays.Decimal().String())
	assert.False(t, p.Payables[0].DayCount.Valid)

	_, err = baseline.LoadFixtures(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
