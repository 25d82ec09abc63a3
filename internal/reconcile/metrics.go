package reconcile

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the reconciliation pipeline.
type Metrics struct {
	RecordsTotal        *prometheus.CounterVec
	IncidentsTotal      *prometheus.CounterVec
	TicketsTotal        *prometheus.CounterVec
	PriorityTotal       *prometheus.CounterVec
	JiraRequestsTotal   *prometheus.CounterVec
	JiraRequestDuration *prometheus.HistogramVec
	BatchSize           prometheus.Histogram
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_records_total",
			Help: "Total processed batch records by result.",
		}, []string{"result"}),
		IncidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_incidents_total",
			Help: "Total normalized incidents by source classification.",
		}, []string{"source"}),
		TicketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_tickets_total",
			Help: "Total tracker mutations by action.",
		}, []string{"action"}),
		PriorityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_priority_total",
			Help: "Total reconciled incidents by derived priority.",
		}, []string{"priority"}),
		JiraRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_jira_requests_total",
			Help: "Total Jira API requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		JiraRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beacon_jira_request_duration_seconds",
			Help:    "Duration of Jira API requests including retries.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}, []string{"op"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_batch_size",
			Help:    "Records per ingested batch.",
			Buckets: prometheus.LinearBuckets(1, 1, 10), // 1 .. 10
		}),
	}

	reg.MustRegister(
		m.RecordsTotal,
		m.IncidentsTotal,
		m.TicketsTotal,
		m.PriorityTotal,
		m.JiraRequestsTotal,
		m.JiraRequestDuration,
		m.BatchSize,
	)

	return m
}

// JiraObserver returns a hook for the Jira client's per-request metrics.
func (m *Metrics) JiraObserver() func(op, outcome string, seconds float64) {
	return func(op, outcome string, seconds float64) {
		m.JiraRequestsTotal.WithLabelValues(op, outcome).Inc()
		m.JiraRequestDuration.WithLabelValues(op).Observe(seconds)
	}
}
