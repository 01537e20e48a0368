package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramAPI はテスト用に差し替え可能なBot APIの最小インターフェース。
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink はTelegramの個人チャットへメッセージを送る通知シンク。
type TelegramSink struct {
	api    telegramAPI
	logger *slog.Logger
	chatID int64
}

// NewTelegramSink はBotトークンで認証してTelegramSinkを生成する。
// トークンが無効な場合は生成時点でエラーを返す。
func NewTelegramSink(token string, chatID int64, logger *slog.Logger) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("Telegram Botの初期化に失敗しました: %w", err)
	}
	logger.Info("Telegram Botを認証しました",
		slog.String("bot", api.Self.UserName),
	)
	return &TelegramSink{api: api, logger: logger, chatID: chatID}, nil
}

// Send はテキストを設定されたチャットへ送信する。
func (s *TelegramSink) Send(ctx context.Context, text string) (bool, string) {
	// Bot APIクライアントはcontextを受け取らないため、先にキャンセルだけ確認する
	if err := ctx.Err(); err != nil {
		return false, fmt.Sprintf("送信がキャンセルされました: %v", err)
	}

	msg := tgbotapi.NewMessage(s.chatID, text)
	if _, err := s.api.Send(msg); err != nil {
		s.logger.Error("Telegramへの送信に失敗しました",
			slog.Int64("chat_id", s.chatID),
			slog.String("error", err.Error()),
		)
		return false, fmt.Sprintf("Telegramへの送信に失敗しました: %v", err)
	}
	return true, "Telegramへ送信しました"
}

// compile-time interface check
var _ Sink = (*TelegramSink)(nil)
