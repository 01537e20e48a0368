// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, item, schedule, notify, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeItemNotFound       = "ITEM_NOT_FOUND"
	ErrCodeInvalidDate        = "INVALID_DATE"
	ErrCodeInvalidOutcome     = "INVALID_OUTCOME"
	ErrCodeNotificationFailed = "NOTIFICATION_FAILED"
	ErrCodeImportFailed       = "IMPORT_FAILED"
)

// NewValidationError は必須項目欠落などの入力エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です（%s）: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewItemNotFoundError は項目未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定された項目が見つかりません: %s", itemID),
		Category: "item",
		Action:   "項目IDを確認してください。",
	}
}

// NewInvalidDateError は日付形式エラーを生成する。
// YYYY-MM-DD形式で解釈できない入力（存在しない暦日を含む）に対して返す。
func NewInvalidDateError(input string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("日付の形式が正しくありません: %s", input),
		Category: "validation",
		Action:   "YYYY-MM-DD形式の実在する日付を指定してください。",
	}
}

// NewInvalidOutcomeError は認識できない復習評価エラーを生成する。
// 認識できない評価値は黙ってrememberedとして扱わず、明示的に拒否する。
func NewInvalidOutcomeError(input string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOutcome,
		Message:  fmt.Sprintf("復習評価の値が不正です: %s", input),
		Category: "validation",
		Action:   "評価には again または remembered を指定してください。",
	}
}

// NewNotificationFailedError は通知送信失敗エラーを生成する。
// 送信先の応答詳細を保持する。呼び出し元のリクエスト自体は失敗扱いにしない。
func NewNotificationFailedError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationFailed,
		Message:  fmt.Sprintf("通知の送信に失敗しました: %s", detail),
		Category: "notify",
		Action:   "通知先の設定を確認してください。再送は行われません。",
	}
}

// NewImportFailedError はインポートファイル自体が処理できない場合のエラーを生成する。
// 個々のレコードの不備はスキップで処理されるため、このエラーにはならない。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("インポートデータの読み取りに失敗しました: %s", reason),
		Category: "validation",
		Action:   "ファイル形式と内容を確認してください。",
	}
}
