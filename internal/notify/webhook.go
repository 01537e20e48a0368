package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// WebhookSink は設定されたURLへテキストをPOSTする通知シンク。
// ntfyなどのシンプルな通知サーバーを想定している。
type WebhookSink struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewWebhookSink はWebhookSinkを生成する。
func NewWebhookSink(httpClient *http.Client, logger *slog.Logger, endpoint string) *WebhookSink {
	return &WebhookSink{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// Send はテキストを通知先へPOSTする。
// 2xx以外のステータスは失敗として扱い、detailにステータスを含めて返す。
func (s *WebhookSink) Send(ctx context.Context, text string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(text))
	if err != nil {
		return false, fmt.Sprintf("リクエストの作成に失敗しました: %v", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("User-Agent", "Fukushu/1.0 Review Reminder")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("通知先への送信に失敗しました",
			slog.String("error", err.Error()),
		)
		return false, fmt.Sprintf("送信に失敗しました: %v", err)
	}
	defer resp.Body.Close()

	// レスポンスボディは診断用に少しだけ読む
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error("通知先がエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return false, fmt.Sprintf("通知先がステータス %d を返しました: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return true, fmt.Sprintf("ステータス %d", resp.StatusCode)
}

// compile-time interface check
var _ Sink = (*WebhookSink)(nil)
