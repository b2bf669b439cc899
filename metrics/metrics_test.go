package metrics_test

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/baseline"
	"github.com/warp/settlement-engine/metrics"
	"github.com/warp/settlement-engine/settlement"
)

func TestPrometheus_RecordsSessionOutcomes(t *testing.T) {
	// GIVEN: A session reporting into a fresh registry
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	s := settlement.NewSession("fnf-1", settlement.Request{}, baseline.NewFixtureFetcher(baseline.DefaultFixtures()),
		settlement.WithRecorder(rec), settlement.WithLogger(log.New(io.Discard, "", 0)))
	ctx := context.Background()

	// WHEN: A load, an edit, a mismatch and a refusal
	require.NoError(t, s.SetEmployee(ctx, "EMP-001"))
	require.NoError(t, s.EditLine(0, settlement.FieldDayCount, settlement.Normalize(20)))
	require.NoError(t, s.SetEmployee(ctx, "EMP-003"))
	assert.Error(t, s.SetEmployee(ctx, "EMP-004"))

	// THEN
	expected := `
# HELP fnf_baseline_applied_total Baseline payloads applied to a settlement
# TYPE fnf_baseline_applied_total counter
fnf_baseline_applied_total 2
# HELP fnf_edits_suppressed_total Field changes ignored because a baseline was being applied
# TYPE fnf_edits_suppressed_total counter
fnf_edits_suppressed_total 6
# HELP fnf_total_mismatch_total Baselines whose reported total differed from the line total
# TYPE fnf_total_mismatch_total counter
fnf_total_mismatch_total 1
# HELP fnf_baseline_failures_total Baseline refreshes that left the settlement unchanged, by reason
# TYPE fnf_baseline_failures_total counter
fnf_baseline_failures_total{reason="unavailable"} 1
# HELP fnf_line_recomputed_total Line amounts recomputed after a manual edit, by component
# TYPE fnf_line_recomputed_total counter
fnf_line_recomputed_total{component="Worked Day"} 1
`
	// EMP-001 and EMP-003 each write three suppressed row fields
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"fnf_baseline_applied_total",
		"fnf_edits_suppressed_total",
		"fnf_total_mismatch_total",
		"fnf_baseline_failures_total",
		"fnf_line_recomputed_total",
	))
}

func TestPrometheus_LabelledCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	rec.BaselineFailed(settlement.ReasonTransport)
	rec.BaselineFailed(settlement.ReasonTransport)
	rec.BaselineFailed(settlement.ReasonUnavailable)
	rec.LineRecomputed("Worked Day")

	failures, err := testutil.GatherAndCount(reg, "fnf_baseline_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, failures, "one series per reason")

	recomputed, err := testutil.GatherAndCount(reg, "fnf_line_recomputed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, recomputed)
}

func TestNew_PanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	assert.Panics(t, func() { metrics.New(reg) })
}

