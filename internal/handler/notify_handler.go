package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/fukushu/internal/model"
	"github.com/hitoshi/fukushu/internal/notify"
)

// NotifierInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotifierInterface interface {
	// NotifyDue は期限到来項目のサマリーを通知シンクへ転送する。
	NotifyDue(ctx context.Context) (*notify.Result, error)
}

// NotifyHandler は通知トリガーのHTTPハンドラー。
type NotifyHandler struct {
	notifier NotifierInterface
}

// NewNotifyHandler はNotifyHandlerを生成する。
func NewNotifyHandler(notifier NotifierInterface) *NotifyHandler {
	return &NotifyHandler{notifier: notifier}
}

// notifyResponse は通知トリガーのレスポンス。
type notifyResponse struct {
	DueCount int    `json:"due_count"`
	Sent     bool   `json:"sent"`
	Detail   string `json:"detail"`
}

// TriggerNotify は期限到来サマリーの通知を即時実行する。
// POST /api/notify
// 送信失敗時は502と統一エラーフォーマットを返す。
func (h *NotifyHandler) TriggerNotify(w http.ResponseWriter, r *http.Request) {
	result, err := h.notifier.NotifyDue(r.Context())
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeNotificationFailed {
			writeAPIErrorResponse(w, http.StatusBadGateway, apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notifyResponse{
		DueCount: result.DueCount,
		Sent:     result.Sent,
		Detail:   result.Detail,
	})
}
