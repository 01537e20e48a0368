// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層や通知ワーカーから利用する。
type MetricsCollector interface {
	RecordItemCreated()
	RecordItemDeleted()
	RecordReview(outcome string)
	RecordNotification(ok bool)
	SetDueCount(count int)
	RecordImportedItems(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	itemsCreated  prometheus.Counter
	itemsDeleted  prometheus.Counter
	reviews       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	dueCount      prometheus.Gauge
	itemsImported prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		itemsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fukushu_items_created_total",
			Help: "登録された復習項目の合計数",
		}),
		itemsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fukushu_items_deleted_total",
			Help: "削除された復習項目の合計数",
		}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fukushu_reviews_total",
			Help: "記録された復習評価の合計数（評価別）",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fukushu_notifications_total",
			Help: "通知送信の合計数（結果別）",
		}, []string{"result"}),
		dueCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fukushu_due_items",
			Help: "最後に集計した時点の期限到来項目数",
		}),
		itemsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fukushu_items_imported_total",
			Help: "インポートで取り込まれた項目の合計数",
		}),
	}

	reg.MustRegister(
		c.itemsCreated,
		c.itemsDeleted,
		c.reviews,
		c.notifications,
		c.dueCount,
		c.itemsImported,
	)

	return c
}

// RecordItemCreated は項目の登録を記録する。
func (c *Collector) RecordItemCreated() {
	c.itemsCreated.Inc()
}

// RecordItemDeleted は項目の削除を記録する。
func (c *Collector) RecordItemDeleted() {
	c.itemsDeleted.Inc()
}

// RecordReview は復習評価を評価別に記録する。
func (c *Collector) RecordReview(outcome string) {
	c.reviews.WithLabelValues(outcome).Inc()
}

// RecordNotification は通知送信の結果を記録する。
func (c *Collector) RecordNotification(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	c.notifications.WithLabelValues(result).Inc()
}

// SetDueCount は期限到来項目数のゲージを更新する。
func (c *Collector) SetDueCount(count int) {
	c.dueCount.Set(float64(count))
}

// RecordImportedItems はインポートで取り込まれた項目数を記録する。
func (c *Collector) RecordImportedItems(count int) {
	c.itemsImported.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
