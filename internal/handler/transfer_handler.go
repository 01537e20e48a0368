package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fukushu/internal/model"
	"github.com/hitoshi/fukushu/internal/transfer"
)

// TransferServiceInterface は転送ハンドラーが必要とするサービスインターフェース。
type TransferServiceInterface interface {
	// Export は全項目をレコード列として返す。
	Export(ctx context.Context) ([]transfer.Record, error)
	// Import はレコード列を取り込み、件数を返す。
	Import(ctx context.Context, records []transfer.Record) (*transfer.ImportResult, error)
}

// TransferHandler はバックアップのエクスポート・インポートのHTTPハンドラー。
type TransferHandler struct {
	service TransferServiceInterface
}

// NewTransferHandler はTransferHandlerを生成する。
func NewTransferHandler(service TransferServiceInterface) *TransferHandler {
	return &TransferHandler{service: service}
}

// importResultResponse はインポート結果のレスポンス。
type importResultResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ExportJSON は全項目をJSON配列としてダウンロードさせる。
// GET /api/export
func (h *TransferHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Export(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="review_items.json"`)
	json.NewEncoder(w).Encode(records)
}

// ImportJSON はJSON配列のレコードを取り込む。
// POST /api/import
func (h *TransferHandler) ImportJSON(w http.ResponseWriter, r *http.Request) {
	var records []transfer.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewImportFailedError("JSON配列として解釈できません"))
		return
	}

	result, err := h.service.Import(r.Context(), records)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(importResultResponse{
		Imported: result.Imported,
		Skipped:  result.Skipped,
	})
}

// ExportXLSX は全項目をExcelワークブックとしてダウンロードさせる。
// GET /api/export.xlsx
func (h *TransferHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Export(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="review_items.xlsx"`)
	if err := transfer.WriteXLSX(w, records); err != nil {
		// ヘッダー送信後はエラーレスポンスを返せないためログのみとする
		slog.Error("xlsxエクスポートの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// ImportXLSX はExcelワークブックのレコードを取り込む。
// POST /api/import.xlsx （ボディはxlsxファイルそのもの）
func (h *TransferHandler) ImportXLSX(w http.ResponseWriter, r *http.Request) {
	records, err := transfer.ReadXLSX(r.Body)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewImportFailedError("xlsxファイルとして解釈できません"))
		return
	}

	result, err := h.service.Import(r.Context(), records)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(importResultResponse{
		Imported: result.Imported,
		Skipped:  result.Skipped,
	})
}
