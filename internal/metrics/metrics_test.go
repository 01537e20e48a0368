package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordItemCreated_IncrementsCounter は項目登録カウンタが増加することを検証する。
func TestRecordItemCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordItemCreated()
	c.RecordItemCreated()

	if v := testutil.ToFloat64(c.itemsCreated); v != 2 {
		t.Errorf("items_created_total = %v, want 2", v)
	}
}

// TestRecordItemDeleted_IncrementsCounter は項目削除カウンタが増加することを検証する。
func TestRecordItemDeleted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordItemDeleted()

	if v := testutil.ToFloat64(c.itemsDeleted); v != 1 {
		t.Errorf("items_deleted_total = %v, want 1", v)
	}
}

// TestRecordReview_CountsByOutcome は復習カウンタが評価別に集計されることを検証する。
func TestRecordReview_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReview("remembered")
	c.RecordReview("remembered")
	c.RecordReview("again")

	if v := testutil.ToFloat64(c.reviews.WithLabelValues("remembered")); v != 2 {
		t.Errorf("reviews_total{outcome=remembered} = %v, want 2", v)
	}
	if v := testutil.ToFloat64(c.reviews.WithLabelValues("again")); v != 1 {
		t.Errorf("reviews_total{outcome=again} = %v, want 1", v)
	}
}

// TestRecordNotification_CountsByResult は通知カウンタが結果別に集計されることを検証する。
func TestRecordNotification_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotification(true)
	c.RecordNotification(false)
	c.RecordNotification(false)

	if v := testutil.ToFloat64(c.notifications.WithLabelValues("success")); v != 1 {
		t.Errorf("notifications_total{result=success} = %v, want 1", v)
	}
	if v := testutil.ToFloat64(c.notifications.WithLabelValues("failure")); v != 2 {
		t.Errorf("notifications_total{result=failure} = %v, want 2", v)
	}
}

// TestSetDueCount_UpdatesGauge は期限到来ゲージが上書きされることを検証する。
func TestSetDueCount_UpdatesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetDueCount(5)
	c.SetDueCount(3)

	if v := testutil.ToFloat64(c.dueCount); v != 3 {
		t.Errorf("due_items = %v, want 3", v)
	}
}

// TestRecordImportedItems_AddsCount はインポートカウンタが件数分増加することを検証する。
func TestRecordImportedItems_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImportedItems(10)
	c.RecordImportedItems(5)

	if v := testutil.ToFloat64(c.itemsImported); v != 15 {
		t.Errorf("items_imported_total = %v, want 15", v)
	}
}

// TestHandler_ServesPrometheusFormat はメトリクスがPrometheus形式で出力されることを検証する。
func TestHandler_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordItemCreated()
	c.RecordReview("again")

	ts := httptest.NewServer(Handler(reg))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("failed to GET metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	out := string(body)
	if !strings.Contains(out, "fukushu_items_created_total 1") {
		t.Errorf("expected fukushu_items_created_total in output:\n%s", out)
	}
	if !strings.Contains(out, `fukushu_reviews_total{outcome="again"} 1`) {
		t.Errorf("expected labeled reviews counter in output:\n%s", out)
	}
}

// TestSetupMetricsRoute_MountsMetricsPath は/metricsパスにマウントされることを検証する。
func TestSetupMetricsRoute_MountsMetricsPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	ts := httptest.NewServer(SetupMetricsRoute(reg))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
