// Package metrics 定义问答流程的 Prometheus 指标。
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	answersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satyam_answers_total",
		Help: "Answers produced, by regime (canned/cache/grounded/fallback/refusal/error)",
	}, []string{"regime"})

	answerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satyam_answer_latency_ms",
		Help:    "End-to-end answer latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
	}, []string{"regime"})

	retrieverLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satyam_retriever_latency_ms",
		Help:    "Latency of embedding plus vector index query in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600},
	})

	retrieverResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satyam_retriever_results",
		Help:    "Number of usable chunks returned per retrieval",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	llmRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satyam_llm_rate_limit_retries_total",
		Help: "Retries triggered by provider rate limiting",
	}, []string{"provider"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satyam_cache_lookups_total",
		Help: "Response cache lookups by result (hit/miss)",
	}, []string{"result"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(answersTotal, answerLatency, retrieverLatency, retrieverResults, llmRetries, cacheLookups)
	})
}

// ObserveAnswer 记录一次问答的结果类别与耗时。
func ObserveAnswer(regime string, start time.Time) {
	ensureRegistered()
	answersTotal.WithLabelValues(regime).Inc()
	answerLatency.WithLabelValues(regime).Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveRetriever records latency and result size for one retrieval.
func ObserveRetriever(start time.Time, results int) {
	ensureRegistered()
	retrieverLatency.Observe(float64(time.Since(start).Milliseconds()))
	retrieverResults.Observe(float64(results))
}

// IncLLMRetry 记录一次限流重试。
func IncLLMRetry(provider string) {
	ensureRegistered()
	llmRetries.WithLabelValues(provider).Inc()
}

// IncCacheLookup records a cache hit or miss.
func IncCacheLookup(hit bool) {
	ensureRegistered()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

// Handler 返回 /metrics 使用的 HTTP handler。
func Handler() http.Handler {
	ensureRegistered()
	return promhttp.Handler()
}
