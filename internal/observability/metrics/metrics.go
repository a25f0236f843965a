package metrics

import "github.com/prometheus/client_golang/prometheus"

// WidgetMetrics exposes counters/histograms for the booking widget flows.
type WidgetMetrics struct {
	catalogTotal       *prometheus.CounterVec
	bookingTotal       *prometheus.CounterVec
	marketplaceLatency *prometheus.HistogramVec
	instancesCreated   prometheus.Counter
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		catalogTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petcare",
			Subsystem: "booking_widget",
			Name:      "catalog_fetch_total",
			Help:      "Total service catalog fetches",
		}, []string{"status"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petcare",
			Subsystem: "booking_widget",
			Name:      "booking_submit_total",
			Help:      "Total booking submissions",
		}, []string{"status"}),
		marketplaceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "petcare",
			Subsystem: "booking_widget",
			Name:      "marketplace_latency_seconds",
			Help:      "Latency of marketplace API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		instancesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "petcare",
			Subsystem: "booking_widget",
			Name:      "instances_created_total",
			Help:      "Total widget instances created",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.catalogTotal, m.bookingTotal, m.marketplaceLatency, m.instancesCreated)
	return m
}

func (m *WidgetMetrics) ObserveCatalog(status string, seconds float64) {
	if m == nil {
		return
	}
	m.catalogTotal.WithLabelValues(status).Inc()
	m.marketplaceLatency.WithLabelValues("list_services").Observe(seconds)
}

func (m *WidgetMetrics) ObserveBooking(status string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(status).Inc()
	if seconds > 0 {
		m.marketplaceLatency.WithLabelValues("create_booking").Observe(seconds)
	}
}

func (m *WidgetMetrics) InstanceCreated() {
	if m == nil {
		return
	}
	m.instancesCreated.Inc()
}
