// Package metrics exposes orchestrator outcomes as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/settlement-engine/settlement"
)

// Prometheus implements settlement.Recorder.
type Prometheus struct {
	baselineApplied  prometheus.Counter
	baselineLines    prometheus.Histogram
	baselineFailures *prometheus.CounterVec
	lineRecomputed   *prometheus.CounterVec
	editsSuppressed  prometheus.Counter
	totalMismatches  prometheus.Counter
}

var _ settlement.Recorder = (*Prometheus)(nil)

// New registers the settlement metrics with reg.
func New(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		baselineApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnf_baseline_applied_total",
			Help: "Baseline payloads applied to a settlement",
		}),
		baselineLines: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fnf_baseline_lines",
			Help:    "Payable lines per applied baseline",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		baselineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnf_baseline_failures_total",
			Help: "Baseline refreshes that left the settlement unchanged, by reason",
		}, []string{"reason"}),
		lineRecomputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnf_line_recomputed_total",
			Help: "Line amounts recomputed after a manual edit, by component",
		}, []string{"component"}),
		editsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnf_edits_suppressed_total",
			Help: "Field changes ignored because a baseline was being applied",
		}),
		totalMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnf_total_mismatch_total",
			Help: "Baselines whose reported total differed from the line total",
		}),
	}
	reg.MustRegister(
		p.baselineApplied,
		p.baselineLines,
		p.baselineFailures,
		p.lineRecomputed,
		p.editsSuppressed,
		p.totalMismatches,
	)
	return p
}

func (p *Prometheus) BaselineApplied(lines int) {
	p.baselineApplied.Inc()
	p.baselineLines.Observe(float64(lines))
}

func (p *Prometheus) BaselineFailed(reason string) {
	p.baselineFailures.WithLabelValues(reason).Inc()
}

func (p *Prometheus) LineRecomputed(component string) {
	p.lineRecomputed.WithLabelValues(component).Inc()
}

func (p *Prometheus) EditSuppressed() { p.editsSuppressed.Inc() }
func (p *Prometheus) TotalMismatch()  { p.totalMismatches.Inc() }
