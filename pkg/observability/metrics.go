package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values of the re-execution metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
)

// Metrics holds the collectors fed by Hooks.
type Metrics struct {
	PagesSet            prometheus.Counter
	ViewUpdates         prometheus.Counter
	ReexecutingNodes    prometheus.Gauge
	Reexecutions        *prometheus.CounterVec
	ReexecutionPolls    prometheus.Counter
	ReexecutionDuration *prometheus.HistogramVec
	Alerts              *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		PagesSet: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagebuilder_pages_set_total",
			Help: "Total number of full page replacements",
		}),
		ViewUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagebuilder_view_updates_total",
			Help: "Total number of partial page updates",
		}),
		ReexecutingNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagebuilder_reexecuting_nodes",
			Help: "Number of nodes currently being re-executed",
		}),
		Reexecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagebuilder_reexecutions_total",
			Help: "Total number of finished re-execution rounds",
		}, []string{"outcome"}),
		ReexecutionPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagebuilder_reexecution_polls_total",
			Help: "Total number of re-execution polls",
		}),
		ReexecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagebuilder_reexecution_duration_seconds",
			Help:    "Duration of re-execution rounds",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagebuilder_alerts_total",
			Help: "Total number of alerts raised to the user",
		}, []string{"level"}),
	}
}

// MustRegister registers every collector with r.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		m.PagesSet,
		m.ViewUpdates,
		m.ReexecutingNodes,
		m.Reexecutions,
		m.ReexecutionPolls,
		m.ReexecutionDuration,
		m.Alerts,
	)
}

// Hooks returns lifecycle hooks that record into m. The re-executing gauge
// is meaningful for a single session; shared across sessions it reports the
// last change.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPageSet: func(context.Context, *domain.PageEvent) {
			m.PagesSet.Inc()
		},
		OnViewUpdated: func(context.Context, *domain.PageEvent) {
			m.ViewUpdates.Inc()
		},
		OnReexecutingChanged: func(_ context.Context, ids []string) {
			m.ReexecutingNodes.Set(float64(len(ids)))
		},
		OnReexecutionPoll: func(context.Context, *domain.ReexecutionEvent) {
			m.ReexecutionPolls.Inc()
		},
		OnReexecutionDone: func(_ context.Context, e *domain.ReexecutionEvent) {
			outcome := Outcome(e.Err)
			m.Reexecutions.WithLabelValues(outcome).Inc()
			m.ReexecutionDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
		},
		OnAlert: func(_ context.Context, a domain.Alert) {
			m.Alerts.WithLabelValues(string(a.Level)).Inc()
		},
	}
}

// Outcome classifies the error that ended a re-execution round.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrStalePage):
		return OutcomeStale
	default:
		return OutcomeError
	}
}

// LogHooks returns lifecycle hooks that log every event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPageSet: func(ctx context.Context, e *domain.PageEvent) {
			logger.InfoContext(ctx, "page_set", "generation", e.Generation, "nodes", len(e.NodeIDs))
		},
		OnViewUpdated: func(ctx context.Context, e *domain.PageEvent) {
			logger.DebugContext(ctx, "view_updated", "generation", e.Generation, "node_ids", e.NodeIDs)
		},
		OnReexecutingChanged: func(ctx context.Context, ids []string) {
			logger.DebugContext(ctx, "reexecuting_changed", "node_ids", ids)
		},
		OnReexecutionStart: func(ctx context.Context, e *domain.ReexecutionEvent) {
			logger.InfoContext(ctx, "reexecution_start", "node_id", e.NodeID)
		},
		OnReexecutionPoll: func(ctx context.Context, e *domain.ReexecutionEvent) {
			logger.DebugContext(ctx, "reexecution_poll", "node_id", e.NodeID, "round", e.Round, "pending", e.Pending)
		},
		OnReexecutionDone: func(ctx context.Context, e *domain.ReexecutionEvent) {
			logger.InfoContext(ctx, "reexecution_done",
				"node_id", e.NodeID,
				"polls", e.Round,
				"duration", e.Duration,
				"outcome", Outcome(e.Err),
			)
		},
		OnAlert: func(ctx context.Context, a domain.Alert) {
			logger.WarnContext(ctx, "alert", "level", a.Level, "node_id", a.NodeID, "method", a.Method, "message", a.Message)
		},
	}
}
