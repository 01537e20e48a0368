package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hitoshi/fukushu/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

var testAsOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func dueGroups() []model.CategoryGroup {
	return []model.CategoryGroup{
		{
			Category: "algo",
			Items: []*model.ReviewItem{
				{Topic: "二分探索", NextReviewDate: testAsOf.AddDate(0, 0, -1)},
				{Topic: "動的計画法", NextReviewDate: testAsOf},
			},
		},
		{
			Category: "db",
			Items: []*model.ReviewItem{
				{Topic: "インデックス", NextReviewDate: testAsOf},
			},
		},
	}
}

// --- Digest ---

// TestDigest_GroupedSummary はカテゴリごとの区分と合計件数を含むサマリーが
// 生成されることを検証する。
func TestDigest_GroupedSummary(t *testing.T) {
	text := Digest(dueGroups(), testAsOf)

	if !strings.Contains(text, "2025-06-01 の復習: 3件") {
		t.Errorf("合計行が含まれない:\n%s", text)
	}
	if !strings.Contains(text, "[algo]") || !strings.Contains(text, "[db]") {
		t.Errorf("カテゴリ見出しが含まれない:\n%s", text)
	}
	if !strings.Contains(text, "- 二分探索 (2025-05-31)") {
		t.Errorf("項目行が正規形式の日付を含まない:\n%s", text)
	}
	// カテゴリの順序は入力順（カテゴリ名昇順）を保つ
	if strings.Index(text, "[algo]") > strings.Index(text, "[db]") {
		t.Errorf("カテゴリ順序が保たれていない:\n%s", text)
	}
}

func TestDigest_Empty(t *testing.T) {
	text := Digest(nil, testAsOf)
	if !strings.Contains(text, "0件") {
		t.Errorf("空のダイジェストは0件と表示すべき:\n%s", text)
	}
}

// --- WebhookSink ---

func TestWebhookSink_Send_Success(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		gotBody = buf.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var logBuf bytes.Buffer
	sink := NewWebhookSink(server.Client(), newTestLogger(&logBuf), server.URL)

	ok, detail := sink.Send(context.Background(), "本日の復習: 3件")
	if !ok {
		t.Fatalf("Send が失敗した: %s", detail)
	}
	if gotBody != "本日の復習: 3件" {
		t.Errorf("送信本文 = %q", gotBody)
	}
}

// TestWebhookSink_Send_ErrorStatus はエラーステータスが失敗として扱われ、
// detailにステータスが含まれることを検証する。
func TestWebhookSink_Send_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	var logBuf bytes.Buffer
	sink := NewWebhookSink(server.Client(), newTestLogger(&logBuf), server.URL)

	ok, detail := sink.Send(context.Background(), "テスト")
	if ok {
		t.Fatal("エラーステータスで ok = true になった")
	}
	if !strings.Contains(detail, "403") {
		t.Errorf("detail にステータスが含まれない: %s", detail)
	}
}

func TestWebhookSink_Send_ConnectionRefused(t *testing.T) {
	var logBuf bytes.Buffer
	sink := NewWebhookSink(&http.Client{Timeout: time.Second}, newTestLogger(&logBuf), "http://127.0.0.1:1/notify")

	ok, detail := sink.Send(context.Background(), "テスト")
	if ok {
		t.Fatal("接続不能で ok = true になった")
	}
	if detail == "" {
		t.Error("失敗時の detail が空")
	}
}

// --- NotifyDue ---

// mockLister はDueListerの固定値モック。
type mockLister struct {
	groups []model.CategoryGroup
	err    error
}

func (m *mockLister) ListDue(_ context.Context, _ time.Time) ([]model.CategoryGroup, error) {
	return m.groups, m.err
}

// mockSink は呼び出しを記録する通知シンク。
type mockSink struct {
	ok     bool
	detail string
	sent   []string
}

func (m *mockSink) Send(_ context.Context, text string) (bool, string) {
	m.sent = append(m.sent, text)
	return m.ok, m.detail
}

// mockNotifyMetrics は通知メトリクスの記録モック。
type mockNotifyMetrics struct {
	results []bool
}

func (m *mockNotifyMetrics) RecordNotification(ok bool) {
	m.results = append(m.results, ok)
}

func newTestNotifyService(lister DueLister, sink Sink, metrics MetricsRecorder) *Service {
	var logBuf bytes.Buffer
	return NewService(lister, sink, metrics, newTestLogger(&logBuf)).
		WithNow(func() time.Time { return testAsOf })
}

func TestService_NotifyDue_SendsDigest(t *testing.T) {
	sink := &mockSink{ok: true, detail: "ステータス 200"}
	metrics := &mockNotifyMetrics{}
	svc := newTestNotifyService(&mockLister{groups: dueGroups()}, sink, metrics)

	result, err := svc.NotifyDue(context.Background())
	if err != nil {
		t.Fatalf("NotifyDue がエラーを返した: %v", err)
	}
	if !result.Sent || result.DueCount != 3 {
		t.Errorf("result = %+v, want Sent=true DueCount=3", result)
	}
	if len(sink.sent) != 1 || !strings.Contains(sink.sent[0], "[algo]") {
		t.Errorf("ダイジェストが送信されていない: %v", sink.sent)
	}
	if len(metrics.results) != 1 || !metrics.results[0] {
		t.Errorf("成功メトリクスが記録されていない: %v", metrics.results)
	}
}

// TestService_NotifyDue_NothingDue は対象0件では送信せず成功として返すことを検証する。
func TestService_NotifyDue_NothingDue(t *testing.T) {
	sink := &mockSink{ok: true}
	svc := newTestNotifyService(&mockLister{}, sink, &mockNotifyMetrics{})

	result, err := svc.NotifyDue(context.Background())
	if err != nil {
		t.Fatalf("NotifyDue がエラーを返した: %v", err)
	}
	if result.Sent || result.DueCount != 0 {
		t.Errorf("result = %+v, want Sent=false DueCount=0", result)
	}
	if len(sink.sent) != 0 {
		t.Errorf("0件で送信が行われた: %v", sink.sent)
	}
}

// TestService_NotifyDue_SinkFailure はシンクの失敗がNotificationFailedとして
// そのまま返ることを検証する。再送は行わない。
func TestService_NotifyDue_SinkFailure(t *testing.T) {
	sink := &mockSink{ok: false, detail: "通知先がステータス 503 を返しました"}
	metrics := &mockNotifyMetrics{}
	svc := newTestNotifyService(&mockLister{groups: dueGroups()}, sink, metrics)

	result, err := svc.NotifyDue(context.Background())
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeNotificationFailed {
		t.Fatalf("NOTIFICATION_FAILED になるべき: %v", err)
	}
	if result == nil || result.Sent {
		t.Errorf("失敗時の result = %+v, want Sent=false", result)
	}
	if result.Detail != sink.detail {
		t.Errorf("detail = %q, want シンクの応答そのまま %q", result.Detail, sink.detail)
	}
	if len(sink.sent) != 1 {
		t.Errorf("送信試行回数 = %d, want 1（再送しない）", len(sink.sent))
	}
	if len(metrics.results) != 1 || metrics.results[0] {
		t.Errorf("失敗メトリクスが記録されていない: %v", metrics.results)
	}
}

// --- TelegramSink ---

// mockTelegramAPI はtelegramAPIの記録モック。
type mockTelegramAPI struct {
	sendErr error
	sent    []tgbotapi.Chattable
}

func (m *mockTelegramAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, m.sendErr
}

func TestTelegramSink_Send_Success(t *testing.T) {
	api := &mockTelegramAPI{}
	var logBuf bytes.Buffer
	sink := &TelegramSink{api: api, logger: newTestLogger(&logBuf), chatID: 12345}

	ok, _ := sink.Send(context.Background(), "本日の復習: 3件")
	if !ok {
		t.Fatal("Send が失敗した")
	}
	if len(api.sent) != 1 {
		t.Fatalf("送信回数 = %d, want 1", len(api.sent))
	}
	msg, isMsg := api.sent[0].(tgbotapi.MessageConfig)
	if !isMsg {
		t.Fatalf("送信内容の型 = %T, want MessageConfig", api.sent[0])
	}
	if msg.ChatID != 12345 || msg.Text != "本日の復習: 3件" {
		t.Errorf("送信内容 = ChatID:%d Text:%q", msg.ChatID, msg.Text)
	}
}

func TestTelegramSink_Send_APIError(t *testing.T) {
	api := &mockTelegramAPI{sendErr: errors.New("chat not found")}
	var logBuf bytes.Buffer
	sink := &TelegramSink{api: api, logger: newTestLogger(&logBuf), chatID: 12345}

	ok, detail := sink.Send(context.Background(), "テスト")
	if ok {
		t.Fatal("APIエラーで ok = true になった")
	}
	if !strings.Contains(detail, "chat not found") {
		t.Errorf("detail にAPIエラーが含まれない: %s", detail)
	}
}

// TestTelegramSink_Send_Cancelled はキャンセル済みcontextでは送信を試みないことを検証する。
func TestTelegramSink_Send_Cancelled(t *testing.T) {
	api := &mockTelegramAPI{}
	var logBuf bytes.Buffer
	sink := &TelegramSink{api: api, logger: newTestLogger(&logBuf), chatID: 12345}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, _ := sink.Send(ctx, "テスト")
	if ok {
		t.Fatal("キャンセル済みcontextで ok = true になった")
	}
	if len(api.sent) != 0 {
		t.Errorf("キャンセル後に送信が行われた: %d回", len(api.sent))
	}
}

func TestLogSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(newTestLogger(&buf))

	ok, detail := sink.Send(context.Background(), "今日の復習: 2件")
	if !ok {
		t.Error("LogSinkのSendは常に成功するはず")
	}
	if detail == "" {
		t.Error("detailが空になっている")
	}
	if !strings.Contains(buf.String(), "今日の復習: 2件") {
		t.Errorf("通知テキストがログに出力されていない: %s", buf.String())
	}
}
