package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/foodshare/internal/metrics"
)

// NewMetricsMiddleware はレスポンスのステータスコードとルート別の処理時間を記録するミドルウェアを返す。
// ルートはchiのパターン（例: /api/foods/{id}）で集計し、IDごとに系列が増えないようにする。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestLatency(routePattern(r), time.Since(start))
		})
	}
}
