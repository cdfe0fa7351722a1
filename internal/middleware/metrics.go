package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recipes/internal/metrics"
)

// unmatchedRoute はどのルートにも一致しなかったリクエストのラベル値。
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware はレスポンスのステータスコードと処理時間を記録するミドルウェアを返す。
// ラベルにはURLパスではなくchiのルートパターンを用い、系列数が増えないようにする。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newResponseRecorder(w)

			next.ServeHTTP(rec, r)

			collector.RecordHTTPStatus(rec.status)
			collector.RecordRequestLatency(r.Method, routePattern(r), time.Since(start))
		})
	}
}

// routePattern はリクエストに一致したchiのルートパターンを返す。
// ルーティング後に呼び出すこと。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
