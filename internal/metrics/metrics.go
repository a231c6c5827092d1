package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for attendance marking.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Marks              *prometheus.CounterVec
	GeofenceRejections prometheus.Counter
	GeofenceDistance   prometheus.Histogram
	EvidenceOutcomes   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Marks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattend_marks_total",
			Help: "Attendance mark requests by type and result",
		}, []string{"type", "result"}),
		GeofenceRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "geoattend_geofence_rejections_total",
			Help: "Marks rejected because the caller was outside the geofence",
		}),
		GeofenceDistance: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoattend_geofence_distance_meters",
			Help:    "Distance between caller and office at mark time",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		EvidenceOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattend_evidence_outcomes_total",
			Help: "Photo evidence attachments by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveMark(markType, result string) {
	if m == nil {
		return
	}
	m.Marks.WithLabelValues(markType, result).Inc()
}

func (m *Metrics) ObserveDistance(meters float64, within bool) {
	if m == nil {
		return
	}
	m.GeofenceDistance.Observe(meters)
	if !within {
		m.GeofenceRejections.Inc()
	}
}

func (m *Metrics) ObserveEvidence(outcome string) {
	if m == nil {
		return
	}
	m.EvidenceOutcomes.WithLabelValues(outcome).Inc()
}
