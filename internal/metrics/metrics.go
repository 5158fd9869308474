// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(route string, duration time.Duration)
	RecordListingCreated()
	RecordStatusTransition(modified bool)
	RecordFeaturedQuery(returned int)
	RecordLegacyNormalized(fixed, failed int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus        *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	listingsCreated   prometheus.Counter
	statusTransitions *prometheus.CounterVec
	featuredQueries   prometheus.Counter
	featuredReturned  prometheus.Histogram
	legacyFixed       prometheus.Counter
	legacyFailed      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodshare_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodshare_http_request_duration_seconds",
			Help:    "ルート別のリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodshare_listings_created_total",
			Help: "作成された食品リストの合計数",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodshare_status_transitions_total",
			Help: "requestedへのステータス変更の試行数",
		}, []string{"result"}),
		featuredQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodshare_featured_queries_total",
			Help: "おすすめ一覧の取得回数",
		}),
		featuredReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "foodshare_featured_returned",
			Help:    "おすすめ一覧で返した件数",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 10, 20},
		}),
		legacyFixed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodshare_legacy_expire_at_fixed_total",
			Help: "タイムスタンプに変換した旧形式の賞味期限の数",
		}),
		legacyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodshare_legacy_expire_at_failed_total",
			Help: "変換できなかった旧形式の賞味期限の数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.listingsCreated,
		c.statusTransitions,
		c.featuredQueries,
		c.featuredReturned,
		c.legacyFixed,
		c.legacyFailed,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルート別の処理時間を記録する。
// routeにはURLパラメータを含まないルートパターンを渡す。
func (c *Collector) RecordRequestLatency(route string, duration time.Duration) {
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordListingCreated は食品リストの作成を記録する。
func (c *Collector) RecordListingCreated() {
	c.listingsCreated.Inc()
}

// RecordStatusTransition はrequestedへの変更試行を記録する。
func (c *Collector) RecordStatusTransition(modified bool) {
	result := "unchanged"
	if modified {
		result = "modified"
	}
	c.statusTransitions.WithLabelValues(result).Inc()
}

// RecordFeaturedQuery はおすすめ一覧の取得を記録する。
func (c *Collector) RecordFeaturedQuery(returned int) {
	c.featuredQueries.Inc()
	c.featuredReturned.Observe(float64(returned))
}

// RecordLegacyNormalized は旧形式データの正規化結果を記録する。
func (c *Collector) RecordLegacyNormalized(fixed, failed int) {
	c.legacyFixed.Add(float64(fixed))
	c.legacyFailed.Add(float64(failed))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPStatus(int)                       {}
func (Nop) RecordRequestLatency(string, time.Duration) {}
func (Nop) RecordListingCreated()                      {}
func (Nop) RecordStatusTransition(bool)                {}
func (Nop) RecordFeaturedQuery(int)                    {}
func (Nop) RecordLegacyNormalized(int, int)            {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
