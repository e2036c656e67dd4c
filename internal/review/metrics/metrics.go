// Package metrics provides observability for the review module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
)

// Metrics tracks intake volume, decision throughput per stage and outcome,
// closed applications, reopens, and queue cache effectiveness.
type Metrics struct {
	ApplicationsRegistered prometheus.Counter
	StageDecisions         *prometheus.CounterVec
	ApplicationsClosed     *prometheus.CounterVec
	StageReopens           *prometheus.CounterVec
	QueueRequests          *prometheus.CounterVec
}

// New creates a Metrics instance with all review module metrics registered.
func New() *Metrics {
	return &Metrics{
		ApplicationsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bursary_applications_registered_total",
			Help: "Total number of applications registered through intake",
		}),
		StageDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bursary_stage_decisions_total",
			Help: "Total number of recorded stage decisions",
		}, []string{"stage", "outcome"}),
		ApplicationsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bursary_applications_closed_total",
			Help: "Total number of applications reaching a terminal status",
		}, []string{"status"}),
		StageReopens: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bursary_stage_reopens_total",
			Help: "Total number of administrative stage reopens",
		}, []string{"stage"}),
		QueueRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bursary_queue_requests_total",
			Help: "Total number of role queue reads, split by cache outcome",
		}, []string{"role", "cache"}),
	}
}

func (m *Metrics) ObserveIntake() {
	m.ApplicationsRegistered.Inc()
}

func (m *Metrics) ObserveDecision(stage id.Stage, outcome models.Outcome) {
	m.StageDecisions.WithLabelValues(stage.String(), string(outcome)).Inc()
}

func (m *Metrics) ObserveClosed(status models.OverallStatus) {
	m.ApplicationsClosed.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveReopen(stage id.Stage) {
	m.StageReopens.WithLabelValues(stage.String()).Inc()
}

func (m *Metrics) ObserveQueue(role id.Role, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.QueueRequests.WithLabelValues(role.String(), cache).Inc()
}
