// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "actms"

// Metrics implements the recorder interfaces of the fraud, chat and
// uploads packages on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	BidsScored     *prometheus.CounterVec
	FraudScore     prometheus.Histogram
	ModelTrainings *prometheus.CounterVec
	ChatReplies    *prometheus.CounterVec
	Uploads        *prometheus.CounterVec
	AlertClients   prometheus.GaugeFunc
}

// New registers all collectors. clients reports connected alert streams and
// may be nil.
func New(clients func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		BidsScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_scored_total",
			Help:      "Bids scored by the anomaly model, by outcome.",
		}, []string{"outcome"}),
		FraudScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fraud_score",
			Help:      "Distribution of bid anomaly scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		ModelTrainings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_trainings_total",
			Help:      "Anomaly model trainings by data source.",
		}, []string{"source"}),
		ChatReplies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_replies_total",
			Help:      "Chat replies by source.",
		}, []string{"source"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "File uploads by result.",
		}, []string{"result"}),
	}
	if clients != nil {
		m.AlertClients = f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_stream_clients",
			Help:      "Connected alert websocket clients.",
		}, func() float64 { return float64(clients()) })
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveScore(score float64, flagged bool) {
	outcome := "clean"
	if flagged {
		outcome = "flagged"
	}
	m.BidsScored.WithLabelValues(outcome).Inc()
	m.FraudScore.Observe(score)
}

func (m *Metrics) ObserveTraining(source string, _ int) {
	m.ModelTrainings.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveChatReply(source string) {
	m.ChatReplies.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveUpload(result string) {
	m.Uploads.WithLabelValues(result).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
