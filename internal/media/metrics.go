package media

import (
	"github.com/iburn/mediacache/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts downloader activity per media kind
type Metrics struct {
	transfersIssued    *prometheus.CounterVec
	transfersCancelled *prometheus.CounterVec
	filesCached        *prometheus.CounterVec
	completionFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfersIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediacache",
			Name:      "transfers_issued_total",
			Help:      "Download transfers issued.",
		}, []string{"kind"}),
		transfersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediacache",
			Name:      "transfers_cancelled_total",
			Help:      "In-flight transfers cancelled by a newer scan.",
		}, []string{"kind"}),
		filesCached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediacache",
			Name:      "files_cached_total",
			Help:      "Media files moved into the cache.",
		}, []string{"kind"}),
		completionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediacache",
			Name:      "completion_failures_total",
			Help:      "Finished transfers that could not be cached.",
		}, []string{"kind", "reason"}),
	}
	reg.MustRegister(m.transfersIssued, m.transfersCancelled, m.filesCached, m.completionFailures)
	return m
}

// nil receivers are no-ops so metrics stay optional

func (m *Metrics) issued(kind models.MediaKind) {
	if m != nil {
		m.transfersIssued.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) cancelled(kind models.MediaKind) {
	if m != nil {
		m.transfersCancelled.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) cached(kind models.MediaKind) {
	if m != nil {
		m.filesCached.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) failed(kind models.MediaKind, reason string) {
	if m != nil {
		m.completionFailures.WithLabelValues(kind.String(), reason).Inc()
	}
}
