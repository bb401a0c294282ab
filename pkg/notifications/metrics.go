package notifications

import "github.com/prometheus/client_golang/prometheus"

const (
	opMarkOne = "one"
	opMarkAll = "all"
)

// Metrics holds prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	created   *prometheus.CounterVec
	marked    *prometheus.CounterVec
	undeliver prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifykit",
			Name:      "notifications_created_total",
			Help:      "Notifications created, by type.",
		}, []string{"type"}),
		marked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifykit",
			Name:      "notifications_marked_read_total",
			Help:      "Unread to read transitions, by operation.",
		}, []string{"op"}),
		undeliver: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notifykit",
			Name:      "notifications_delivery_failures_total",
			Help:      "Stored notifications whose real-time delivery failed.",
		}),
	}
	reg.MustRegister(m.created, m.marked, m.undeliver)
	return m
}

func (m *Metrics) observeCreated(t Type) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) observeMarked(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.marked.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) observeDeliveryFailure() {
	if m == nil {
		return
	}
	m.undeliver.Inc()
}
