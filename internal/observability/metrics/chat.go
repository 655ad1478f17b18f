package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics tracks assistant turns and LLM calls.
type ChatMetrics struct {
	turnsTotal *prometheus.CounterVec
	llmLatency *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "turns_total",
			Help:      "Chat turns by mode (llm, guided, fallback) and outcome",
		}, []string{"mode", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM completion calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"provider", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.llmLatency)
	return m
}

func (m *ChatMetrics) ObserveTurn(mode, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(mode, outcome).Inc()
}

func (m *ChatMetrics) ObserveLLM(provider string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.llmLatency.WithLabelValues(provider, status).Observe(seconds)
}
