// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はHTTP層が利用するメトリクス収集のインターフェース。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(method, route string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
// recipe.MetricsRecorderも満たす。
type Collector struct {
	reg            prometheus.Registerer
	httpStatus     *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	mutations      *prometheus.CounterVec
	storageSave    prometheus.Histogram
	recipeCount    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipes_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recipes_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipes_mutations_total",
			Help: "レシピ更新操作の結果別の合計数",
		}, []string{"op", "result"}),
		storageSave: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recipes_storage_save_duration_seconds",
			Help:    "永続化ファイル書き込みの所要時間（秒）",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		recipeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recipes_stored",
			Help: "保存されているレシピ数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.mutations,
		c.storageSave,
		c.recipeCount,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルートパターン別のリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(method, route string, duration time.Duration) {
	c.requestLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMutation はレシピ更新操作の結果を記録する。
func (c *Collector) RecordMutation(op, result string) {
	c.mutations.WithLabelValues(op, result).Inc()
}

// RecordStorageSave は永続化の所要時間を記録する。
func (c *Collector) RecordStorageSave(duration time.Duration) {
	c.storageSave.Observe(duration.Seconds())
}

// SetRecipeCount は現在のレシピ数を設定する。
func (c *Collector) SetRecipeCount(count int) {
	c.recipeCount.Set(float64(count))
}

// RegisterSessionGauge はスクレイプ時にcountを呼び出すセッション数ゲージを登録する。
func (c *Collector) RegisterSessionGauge(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "recipes_sessions_active",
		Help: "保持しているセッション数",
	}, func() float64 {
		return float64(count())
	}))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
