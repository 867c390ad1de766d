// Package metrics defines and registers all custom Prometheus metrics for the
// kakitori API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// through promauto and exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kakitori"

// ── Prediction metrics ────────────────────────────────────────────────────────

// PredictionsTotal counts stored predictions.
// Labels:
//   - kind: "image" or "labeled"
//   - outcome: "created", "updated" or "unchanged"
var PredictionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Total number of predictions handled, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// PredictionErrorsTotal counts predictions that failed.
// Label:
//   - reason: short description of the failure (e.g. "invalid_image", "too_large", "storage")
var PredictionErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_errors_total",
		Help:      "Total number of predictions that failed, by reason.",
	},
	[]string{"reason"},
)

// InferenceDuration measures round trips to the model server.
// Label:
//   - result: "ok" or "error"
var InferenceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inference_duration_seconds",
		Help:      "Duration of model server predict calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"result"},
)

// ── Upsert dispatcher metrics ─────────────────────────────────────────────────

// UpsertQueueDepth tracks the number of upserts waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var UpsertQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upsert_queue_depth",
		Help:      "Current number of upserts pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Progress cache metrics ────────────────────────────────────────────────────

// ProgressCacheTotal counts progress cache lookups.
// Label:
//   - result: "hit", "miss" or "error"
var ProgressCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_cache_total",
		Help:      "Total number of progress cache lookups, labelled by result.",
	},
	[]string{"result"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthEventsTotal counts registrations and logins.
// Labels:
//   - event: "register" or "login"
//   - result: "success" or "failure"
var AuthEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Total number of authentication events, by event and result.",
	},
	[]string{"event", "result"},
)
