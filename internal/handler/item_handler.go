// Package handler はJSON APIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fukushu/internal/model"
	"github.com/hitoshi/fukushu/internal/review"
)

// ReviewServiceInterface は項目ハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	// Add は項目を追加する。
	Add(ctx context.Context, in review.AddInput) (*model.ReviewItem, error)
	// Get は項目を取得する。
	Get(ctx context.Context, id string) (*model.ReviewItem, error)
	// RecordOutcome は復習評価を適用する。
	RecordOutcome(ctx context.Context, id, outcome string) (*model.ReviewItem, error)
	// OverrideDueDate は次回復習日を上書きする。
	OverrideDueDate(ctx context.Context, id, date string) (*model.ReviewItem, error)
	// EditFields は表示フィールドを編集する。
	EditFields(ctx context.Context, id string, in review.EditInput) (*model.ReviewItem, error)
	// Delete は項目を削除する。
	Delete(ctx context.Context, id string) error
	// ListDue はasOf時点で期限到来の項目をカテゴリごとに返す。
	ListDue(ctx context.Context, asOf time.Time) ([]model.CategoryGroup, error)
	// ListAll は全項目をカテゴリごとに返す。
	ListAll(ctx context.Context) ([]model.CategoryGroup, error)
	// Today はサービスの基準日を返す。
	Today() time.Time
}

// ItemHandler は復習項目のHTTPハンドラー。
type ItemHandler struct {
	service ReviewServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ReviewServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// createItemRequest は項目登録リクエストのボディ。
type createItemRequest struct {
	Topic           string `json:"topic"`
	URL             string `json:"url"`
	Category        string `json:"category"`
	AssumedFamiliar bool   `json:"assumed_familiar"`
}

// recordReviewRequest は復習評価リクエストのボディ。
type recordReviewRequest struct {
	Outcome string `json:"outcome"`
}

// overrideDueDateRequest は次回復習日上書きリクエストのボディ。
type overrideDueDateRequest struct {
	NextReviewDate string `json:"next_review_date"`
}

// editItemRequest は表示フィールド編集リクエストのボディ。
type editItemRequest struct {
	Topic    string `json:"topic"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// itemResponse は復習項目のAPIレスポンス。日付はYYYY-MM-DD形式。
type itemResponse struct {
	ID             string `json:"id"`
	Topic          string `json:"topic"`
	URL            string `json:"url,omitempty"`
	Category       string `json:"category"`
	DateAdded      string `json:"date_added"`
	ReviewLevel    int    `json:"review_level"`
	NextReviewDate string `json:"next_review_date"`
	IsCompleted    bool   `json:"is_completed"`
}

// categoryGroupResponse はカテゴリごとにまとめた項目一覧のレスポンス。
type categoryGroupResponse struct {
	Category string         `json:"category"`
	Items    []itemResponse `json:"items"`
}

// dueListResponse は期限到来一覧のレスポンス。
type dueListResponse struct {
	AsOf       string                  `json:"as_of"`
	DueCount   int                     `json:"due_count"`
	Categories []categoryGroupResponse `json:"categories"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreateItem は項目登録を処理する。
// POST /api/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	item, err := h.service.Add(r.Context(), review.AddInput{
		Topic:           req.Topic,
		URL:             req.URL,
		Category:        req.Category,
		AssumedFamiliar: req.AssumedFamiliar,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toItemResponse(item))
}

// ListItems は全項目をカテゴリごとにまとめて返す。
// GET /api/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCategoryGroupResponses(groups))
}

// ListDueItems は期限到来の項目をカテゴリごとにまとめて返す。
// GET /api/items/due
func (h *ItemHandler) ListDueItems(w http.ResponseWriter, r *http.Request) {
	asOf := h.service.Today()
	groups, err := h.service.ListDue(r.Context(), asOf)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	count := 0
	for _, g := range groups {
		count += len(g.Items)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dueListResponse{
		AsOf:       asOf.Format(model.DateLayout),
		DueCount:   count,
		Categories: toCategoryGroupResponses(groups),
	})
}

// GetItem は項目詳細を取得する。
// GET /api/items/:id
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(item))
}

// RecordReview は復習評価を処理する。
// POST /api/items/:id/review
func (h *ItemHandler) RecordReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req recordReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	item, err := h.service.RecordOutcome(r.Context(), id, req.Outcome)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(item))
}

// OverrideDueDate は次回復習日の上書きを処理する。
// PUT /api/items/:id/due-date
func (h *ItemHandler) OverrideDueDate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req overrideDueDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	item, err := h.service.OverrideDueDate(r.Context(), id, req.NextReviewDate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(item))
}

// EditItem は表示フィールドの編集を処理する。
// PATCH /api/items/:id
func (h *ItemHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req editItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	item, err := h.service.EditFields(r.Context(), id, review.EditInput{
		Topic:    req.Topic,
		URL:      req.URL,
		Category: req.Category,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(item))
}

// DeleteItem は項目削除を処理する。
// DELETE /api/items/:id
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toItemResponse はmodel.ReviewItemからAPIレスポンスに変換する。
func toItemResponse(item *model.ReviewItem) itemResponse {
	return itemResponse{
		ID:             item.ID,
		Topic:          item.Topic,
		URL:            item.URL,
		Category:       item.Category,
		DateAdded:      item.DateAdded.Format(model.DateLayout),
		ReviewLevel:    item.ReviewLevel,
		NextReviewDate: item.NextReviewDate.Format(model.DateLayout),
		IsCompleted:    item.IsCompleted,
	}
}

// toCategoryGroupResponses はカテゴリ区分のレスポンスに変換する。
// 項目がない場合は空スライスを返す（JSONでnullにしない）。
func toCategoryGroupResponses(groups []model.CategoryGroup) []categoryGroupResponse {
	out := make([]categoryGroupResponse, 0, len(groups))
	for _, g := range groups {
		items := make([]itemResponse, 0, len(g.Items))
		for _, item := range g.Items {
			items = append(items, toItemResponse(item))
		}
		out = append(out, categoryGroupResponse{Category: g.Category, Items: items})
	}
	return out
}

// invalidRequestError はボディ解析失敗の共通エラーを返す。
func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidation, model.ErrCodeInvalidDate, model.ErrCodeInvalidOutcome, "INVALID_REQUEST":
		return http.StatusBadRequest
	case model.ErrCodeImportFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeNotificationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
