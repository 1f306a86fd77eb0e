package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlance_operations_total",
		Help: "Total number of document mutations, labelled by operation and status.",
	}, []string{"operation", "status"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parlance_operation_duration_ms",
		Help:    "Mutation latency in milliseconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250},
	}, []string{"operation"})

	recalcDiagnostics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlance_index_diagnostics_total",
		Help: "Total number of consistency diagnostics reported by index recalculation.",
	})

	documentNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlance_document_nodes",
		Help: "Node count of the document at the last recalculation.",
	})

	scrapArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlance_scrap_archived_total",
		Help: "Total number of nodes moved into the scrap archive.",
	})

	scrapRestored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlance_scrap_restored_total",
		Help: "Total number of entries restored from the scrap archive.",
	})

	scrapPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlance_scrap_purged_total",
		Help: "Total number of entries dropped by retention cleanup.",
	})

	undoDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlance_undo_stack_depth",
		Help: "Depth of the undo stack after the last snapshot.",
	})

	undoSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlance_history_steps_total",
		Help: "Total number of undo and redo steps, labelled by direction.",
	}, []string{"direction"})
)

// PrometheusMutationHooks implements MutationHooks on Prometheus counters.
type PrometheusMutationHooks struct{}

func (PrometheusMutationHooks) OnOperation(_ context.Context, op string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(op, status).Inc()
	operationDuration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
}

func (PrometheusMutationHooks) OnRecalculate(_ context.Context, nodeCount, diagnostics int) {
	documentNodes.Set(float64(nodeCount))
	recalcDiagnostics.Add(float64(diagnostics))
}

// PrometheusScrapHooks implements ScrapHooks on Prometheus counters.
type PrometheusScrapHooks struct{}

func (PrometheusScrapHooks) OnArchive(_ context.Context, _ string, count int) {
	scrapArchived.Add(float64(count))
}

func (PrometheusScrapHooks) OnRestore(_ context.Context, _ string, count int) {
	scrapRestored.Add(float64(count))
}

func (PrometheusScrapHooks) OnPurge(_ context.Context, count int) {
	scrapPurged.Add(float64(count))
}

// PrometheusUndoHooks implements UndoHooks on Prometheus counters.
type PrometheusUndoHooks struct{}

func (PrometheusUndoHooks) OnSnapshot(_ context.Context, depth int) {
	undoDepth.Set(float64(depth))
}

func (PrometheusUndoHooks) OnUndo(context.Context) {
	undoSteps.WithLabelValues("undo").Inc()
}

func (PrometheusUndoHooks) OnRedo(context.Context) {
	undoSteps.WithLabelValues("redo").Inc()
}

// EnablePrometheus registers the Prometheus-backed hooks for every category.
func EnablePrometheus() {
	SetMutationHooks(PrometheusMutationHooks{})
	SetScrapHooks(PrometheusScrapHooks{})
	SetUndoHooks(PrometheusUndoHooks{})
}
