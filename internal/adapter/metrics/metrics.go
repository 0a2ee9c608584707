package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "event_counter"

// Metrics holds all Prometheus metrics for the events service.
type Metrics struct {
	EventsTotal       *prometheus.CounterVec
	BytesTotal        prometheus.Counter
	IDsIssued         prometheus.Counter
	SequenceExhausted prometheus.Counter
	QueriesTotal      *prometheus.CounterVec
	QueryDuration     prometheus.Histogram
	CountCacheHits    prometheus.Counter
	CountCacheMisses  prometheus.Counter

	reg prometheus.Registerer
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of ingest attempts by status.",
		}, []string{"status"}), // status: created, error_parse, error_invalid, error_size, error_id, error_store
		BytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Total number of request body bytes ingested.",
		}),
		IDsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snowflake",
			Name:      "ids_issued_total",
			Help:      "Total number of identifiers issued.",
		}),
		SequenceExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snowflake",
			Name:      "sequence_exhausted_total",
			Help:      "Number of id requests refused because 4096 ids were already issued in that millisecond.",
		}),
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "queries_total",
			Help:      "Total number of count queries by status.",
		}, []string{"status"}), // status: ok, invalid, error
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Latency of count queries that reached the store.",
			Buckets:   prometheus.DefBuckets,
		}),
		CountCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "count_cache_hits_total",
			Help:      "Total number of count cache hits.",
		}),
		CountCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "count_cache_misses_total",
			Help:      "Total number of count cache misses.",
		}),
		reg: reg,
	}
}

// RegisterDB exports connection pool statistics for db.
func (m *Metrics) RegisterDB(db *sql.DB, dbName string) {
	m.reg.MustRegister(collectors.NewDBStatsCollector(db, dbName))
}

// IDIssued counts one identifier handed out by the generator.
func (m *Metrics) IDIssued() {
	if m == nil {
		return
	}
	m.IDsIssued.Inc()
}

// QueryCompleted counts one count query by status: ok, invalid or error.
func (m *Metrics) QueryCompleted(status string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(status).Inc()
}

// StoreQueried records the latency of a count that reached the store.
func (m *Metrics) StoreQueried(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(elapsed.Seconds())
}

// CountCacheLookup counts a count cache hit or miss.
func (m *Metrics) CountCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CountCacheHits.Inc()
		return
	}
	m.CountCacheMisses.Inc()
}
