package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	MessagesTotal     *prometheus.CounterVec
	CrisisAlertsTotal *prometheus.CounterVec
	CrisisCallsTotal  *prometheus.CounterVec
	CommunityMessages prometheus.Counter
	LLMRequestSeconds prometheus.Histogram
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mindmate",
				Name:      "chat_messages_total",
				Help:      "Chat messages accepted for persistence, by role",
			}, []string{"role"}),
			CrisisAlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mindmate",
				Name:      "crisis_alerts_total",
				Help:      "Crisis alerts raised on sent messages, by category",
			}, []string{"category"}),
			CrisisCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mindmate",
				Name:      "crisis_calls_total",
				Help:      "Hotline call attempts, by status",
			}, []string{"status"}),
			CommunityMessages: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mindmate",
				Name:      "community_messages_total",
				Help:      "Community chat messages posted",
			}),
			LLMRequestSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "mindmate",
				Name:      "llm_request_seconds",
				Help:      "Latency of language model completions",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
			}),
		}
		prometheus.MustRegister(
			global.MessagesTotal,
			global.CrisisAlertsTotal,
			global.CrisisCallsTotal,
			global.CommunityMessages,
			global.LLMRequestSeconds,
		)
	})
	return global
}
