// Package notify は期限到来項目の通知機能を提供する。
// 通知先はSinkとして抽象化され、送信失敗は呼び出し元のリクエストを失敗させない。
package notify

import (
	"context"
	"log/slog"
)

// Sink は通知送信の外部能力を表す。
// okは送信の成否、detailは送信先の応答や失敗理由のテキスト。
// 失敗しても再送は行われない。
type Sink interface {
	Send(ctx context.Context, text string) (ok bool, detail string)
}

// LogSink は通知内容をログに出力するだけのシンク。
// 外部の通知先が設定されていない環境でのフォールバックとして使う。
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink はLogSinkを生成する。
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

var _ Sink = (*LogSink)(nil)

// Send は通知テキストをログに書き出す。常に成功を返す。
func (s *LogSink) Send(ctx context.Context, text string) (bool, string) {
	s.logger.Info("通知サマリー", slog.String("text", text))
	return true, "ログに出力しました"
}
