package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels requests that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels requests that failed (client or dependency issues).
	OutcomeError = "error"

	// CacheHitLocal labels embeddings served from the in-process LRU.
	CacheHitLocal = "hit_local"
	// CacheHitShared labels embeddings served from the shared Valkey cache.
	CacheHitShared = "hit_shared"
	// CacheMiss labels embeddings computed by the model.
	CacheMiss = "miss"
)

var (
	ingestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_recall",
			Name:      "ingests_total",
			Help:      "Total number of incident ingestions, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	ingestDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_recall",
			Name:      "ingest_seconds",
			Help:      "Ingestion latency in seconds, including both embeddings and the dual upsert.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
	)

	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_recall",
			Name:      "searches_total",
			Help:      "Total number of similar-incident searches, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	searchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_recall",
			Name:      "search_seconds",
			Help:      "Search latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	embeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_recall",
			Name:      "embedding_cache_total",
			Help:      "Embedding lookups by cache result.",
		},
		[]string{"result"},
	)
)

// Register attaches mirador-recall collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ingestsTotal,
		ingestDurationSeconds,
		searchesTotal,
		searchDurationSeconds,
		embeddingCacheTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveIngest records an ingestion duration and outcome label.
func ObserveIngest(duration time.Duration, outcome string) {
	ingestsTotal.WithLabelValues(outcomeLabel(outcome)).Inc()
	ingestDurationSeconds.Observe(seconds(duration))
}

// ObserveSearch records a search duration and outcome label.
func ObserveSearch(duration time.Duration, outcome string) {
	searchesTotal.WithLabelValues(outcomeLabel(outcome)).Inc()
	searchDurationSeconds.Observe(seconds(duration))
}

// ObserveEmbeddingCache counts one embedding lookup.
func ObserveEmbeddingCache(result string) {
	embeddingCacheTotal.WithLabelValues(result).Inc()
}

func outcomeLabel(outcome string) string {
	if outcome != OutcomeError {
		return OutcomeSuccess
	}
	return OutcomeError
}

func seconds(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	return d.Seconds()
}
