// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultCategory はカテゴリ未指定時に割り当てるカテゴリ名。
const DefaultCategory = "general"

// DateLayout は復習日の正規形式（YYYY-MM-DD）。
// APIレスポンス・エクスポート・日付入力のすべてでこの形式を使用する。
const DateLayout = "2006-01-02"

// ReviewItem は復習対象の項目を表す。
// ReviewLevelは間隔テーブルへのインデックスで、習熟度を表す。
type ReviewItem struct {
	ID             string
	Topic          string
	URL            string
	Category       string
	DateAdded      time.Time // 日付のみ意味を持つ（時刻部分は無視）
	ReviewLevel    int
	NextReviewDate time.Time // 日付のみ意味を持つ
	IsCompleted    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Outcome は復習時の自己評価を表す。
type Outcome string

const (
	// OutcomeAgain は「忘れていた」評価。レベルを0にリセットする。
	OutcomeAgain Outcome = "again"
	// OutcomeRemembered は「思い出せた」評価。レベルを1段階進める。
	OutcomeRemembered Outcome = "remembered"
)

// CategoryGroup はカテゴリごとにまとめた項目一覧。
// カテゴリ名の昇順、カテゴリ内はNextReviewDateの昇順（同日はID昇順）で並ぶ。
type CategoryGroup struct {
	Category string
	Items    []*ReviewItem
}
