package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RunsStarted       prometheus.Counter
	RunsCompleted     prometheus.Counter
	BookingsCollected prometheus.Counter
	CompanyFailures   *prometheus.CounterVec
	RunDuration       prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clusterreport_runs_started_total",
			Help: "Total number of report runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clusterreport_runs_completed_total",
			Help: "Total number of report runs that reached a final state",
		}),
		BookingsCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clusterreport_bookings_collected_total",
			Help: "Total booking records collected across all runs",
		}),
		CompanyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clusterreport_company_failures_total",
			Help: "Per-company failures by pipeline stage",
		}, []string{"stage"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clusterreport_run_duration_seconds",
			Help:    "Duration of complete report runs",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

func (m *Metrics) ObserveRun(start time.Time, bookings int) {
	m.RunsCompleted.Inc()
	m.BookingsCollected.Add(float64(bookings))
	m.RunDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementFailure(stage string) {
	m.CompanyFailures.WithLabelValues(stage).Inc()
}
