package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for the SMS triage pipeline.
type TriageMetrics struct {
	callbacksTotal     *prometheus.CounterVec
	pathsTotal         *prometheus.CounterVec
	classifierTotal    *prometheus.CounterVec
	alertFailuresTotal *prometheus.CounterVec
	autoResponsesTotal *prometheus.CounterVec
	deliveryFailures   *prometheus.CounterVec
	webhookLatency     *prometheus.HistogramVec
	classifierLatency  prometheus.Histogram
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "triage",
			Name:      "callbacks_total",
			Help:      "Provider callbacks received by kind and result",
		}, []string{"kind", "result"}),
		pathsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "triage",
			Name:      "routed_total",
			Help:      "Inbound messages by handling path",
		}, []string{"path"}),
		classifierTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "triage",
			Name:      "classifications_total",
			Help:      "Classifications by source (llm, keyword, default)",
		}, []string{"source"}),
		alertFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "triage",
			Name:      "alert_failures_total",
			Help:      "Alert dispatch failures requiring operator attention",
		}, []string{"alert"}),
		autoResponsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "triage",
			Name:      "auto_responses_total",
			Help:      "Auto-responses by intent and send result",
		}, []string{"intent", "result"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "triage",
			Name:      "delivery_failures_total",
			Help:      "Terminal delivery failures by error type",
		}, []string{"error_type"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medspa",
			Subsystem: "triage",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Twilio webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		classifierLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medspa",
			Subsystem: "triage",
			Name:      "classifier_latency_seconds",
			Help:      "Latency of classifier calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callbacksTotal, m.pathsTotal, m.classifierTotal, m.alertFailuresTotal,
		m.autoResponsesTotal, m.deliveryFailures, m.webhookLatency, m.classifierLatency)
	return m
}

func (m *TriageMetrics) ObserveCallback(kind, result string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(kind, result).Inc()
}

func (m *TriageMetrics) ObservePath(path string) {
	if m == nil {
		return
	}
	m.pathsTotal.WithLabelValues(path).Inc()
}

func (m *TriageMetrics) ObserveClassification(source string, seconds float64) {
	if m == nil {
		return
	}
	m.classifierTotal.WithLabelValues(source).Inc()
	m.classifierLatency.Observe(seconds)
}

// ObserveAlertFailure counts an alert that could not be handed to any channel.
func (m *TriageMetrics) ObserveAlertFailure(alert string) {
	if m == nil {
		return
	}
	m.alertFailuresTotal.WithLabelValues(alert).Inc()
}

func (m *TriageMetrics) ObserveAutoResponse(intent string, sent bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !sent {
		result = "failed"
	}
	m.autoResponsesTotal.WithLabelValues(intent, result).Inc()
}

func (m *TriageMetrics) ObserveDeliveryFailure(errorType string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(errorType).Inc()
}

func (m *TriageMetrics) ObserveWebhookLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(kind).Observe(seconds)
}
