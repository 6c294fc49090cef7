// Package telemetry wires the engine's frame-budget observability
// (render tick, video upload, cycler advance, boundary callbacks)
// into Prometheus collectors. It deliberately never starts an HTTP
// server; a collaborator that wants to expose these must scrape
// Snapshot() or register its own exporter against this package's
// private Registry.
package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry owns a private Prometheus registry so importing this
// package never pollutes prometheus.DefaultRegisterer (and never risks
// a double-register panic if the host process already runs its own
// metrics).
type Telemetry struct {
	Registry *prometheus.Registry

	renderTick       prometheus.Histogram
	videoUpload      prometheus.Histogram
	cyclerAdvance    prometheus.Histogram
	boundaryCallback prometheus.Histogram
	prefetchTimeouts prometheus.Counter
	gpuUploadErrors  prometheus.Counter
	budgetExceeded   *prometheus.CounterVec

	// Shadow counts for Snapshot(); prometheus.Counter has no cheap
	// public read path outside of the exposition format.
	prefetchTimeoutCount atomic.Int64
	gpuUploadErrorCount  atomic.Int64
}

func New() *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		Registry: reg,
		renderTick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mesmerglass_render_tick_seconds",
			Help:    "Duration of one full render-thread tick.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
		}),
		videoUpload: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mesmerglass_video_upload_seconds",
			Help:    "Duration of one background video frame GPU upload.",
			Buckets: prometheus.ExponentialBuckets(0.0002, 2, 10),
		}),
		cyclerAdvance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mesmerglass_cycler_advance_seconds",
			Help:    "Duration of one cycler graph Advance() pass.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 10),
		}),
		boundaryCallback: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mesmerglass_boundary_callback_seconds",
			Help:    "Duration of cycle-boundary callback dispatch.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 10),
		}),
		prefetchTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesmerglass_audio_prefetch_timeouts_total",
			Help: "Count of audio prefetch waits that hit prefetch_block_limit_ms.",
		}),
		gpuUploadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesmerglass_gpu_upload_errors_total",
			Help: "Count of GPU upload failures.",
		}),
		budgetExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesmerglass_frame_budget_exceeded_total",
			Help: "Count of render-thread operations that exceeded their per-frame budget.",
		}, []string{"stage"}),
	}
	reg.MustRegister(t.renderTick, t.videoUpload, t.cyclerAdvance, t.boundaryCallback,
		t.prefetchTimeouts, t.gpuUploadErrors, t.budgetExceeded)
	return t
}

// Per-frame budgets checked by the Observe helpers below.
const (
	BudgetRenderTick       = 16700 * time.Microsecond
	BudgetVideoUpload      = 5 * time.Millisecond
	BudgetCyclerAdvance    = 100 * time.Microsecond
	BudgetBoundaryCallback = 1 * time.Millisecond
)

func (t *Telemetry) ObserveRenderTick(d time.Duration) {
	t.renderTick.Observe(d.Seconds())
	if d > BudgetRenderTick {
		t.budgetExceeded.WithLabelValues("render_tick").Inc()
	}
}

func (t *Telemetry) ObserveVideoUpload(d time.Duration) {
	t.videoUpload.Observe(d.Seconds())
	if d > BudgetVideoUpload {
		t.budgetExceeded.WithLabelValues("video_upload").Inc()
	}
}

func (t *Telemetry) ObserveCyclerAdvance(d time.Duration) {
	t.cyclerAdvance.Observe(d.Seconds())
	if d > BudgetCyclerAdvance {
		t.budgetExceeded.WithLabelValues("cycler_advance").Inc()
	}
}

func (t *Telemetry) ObserveBoundaryCallback(d time.Duration) {
	t.boundaryCallback.Observe(d.Seconds())
	if d > BudgetBoundaryCallback {
		t.budgetExceeded.WithLabelValues("boundary_callback").Inc()
	}
}

func (t *Telemetry) IncPrefetchTimeout() {
	t.prefetchTimeouts.Inc()
	t.prefetchTimeoutCount.Add(1)
}

func (t *Telemetry) IncGpuUploadError() {
	t.gpuUploadErrors.Inc()
	t.gpuUploadErrorCount.Add(1)
}

// Snapshot is a cheap point-in-time read of the counters, for
// collaborators (e.g. a status command) that don't want to speak
// Prometheus's exposition format directly.
type Snapshot struct {
	PrefetchTimeouts int64
	GpuUploadErrors  int64
}

func (t *Telemetry) Snapshot() Snapshot {
	return Snapshot{
		PrefetchTimeouts: t.prefetchTimeoutCount.Load(),
		GpuUploadErrors:  t.gpuUploadErrorCount.Load(),
	}
}
