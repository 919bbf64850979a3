// Package metrics собирает метрики ленты и наполнения хранилища в отдельный реестр Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finfeed"

// Metrics реализует feed.Metrics и usecase.IngestMetrics.
type Metrics struct {
	registry *prometheus.Registry

	FeedFetches    *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	StaleResults   prometheus.Counter
	FeedsProcessed *prometheus.CounterVec
	ItemsSaved     *prometheus.CounterVec
}

// New создает метрики на собственном реестре, чтобы повторное создание в тестах не конфликтовало.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FeedFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Feed view fetches that reached the screen, by outcome",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of feed view fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		StaleResults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_stale_results_total",
			Help:      "Fetch results discarded because a newer fetch was started",
		}),
		FeedsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_feeds_processed_total",
			Help:      "External feeds processed by the ingest worker, by feed and outcome",
		}, []string{"feed", "outcome"}),
		ItemsSaved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_items_saved_total",
			Help:      "New articles stored by the ingest worker",
		}, []string{"feed"}),
	}
}

// ObserveFetch учитывает загрузку, результат которой попал на экран.
func (m *Metrics) ObserveFetch(outcome string, duration time.Duration) {
	m.FeedFetches.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) StaleDiscarded() {
	m.StaleResults.Inc()
}

func (m *Metrics) FeedProcessed(feed, outcome string) {
	m.FeedsProcessed.WithLabelValues(feed, outcome).Inc()
}

func (m *Metrics) ItemsIngested(feed string, n int) {
	m.ItemsSaved.WithLabelValues(feed).Add(float64(n))
}

// TrackSessions публикует число активных моделей ленты.
func (m *Metrics) TrackSessions(count func() int) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Signed-in users with a live feed view",
	}, func() float64 { return float64(count()) })
}

// Handler возвращает обработчик для эндпоинта /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
