// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/fukushu/internal/model"
)

// ReviewItemRepository は復習項目の永続化インターフェース。
// 一覧系の並び順は表示契約であり、category昇順 → next_review_date昇順 → id昇順とする。
// 同一カテゴリ・同一日付内の順序はID昇順で安定する。
type ReviewItemRepository interface {
	// FindByID は指定IDの項目を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ReviewItem, error)

	// Create は項目を作成する。
	Create(ctx context.Context, item *model.ReviewItem) error

	// UpdateSchedule はスケジューリング状態（レベル・完了フラグ・次回復習日）を
	// 1文のUPDATEで更新する。他のフィールドには触れない。
	UpdateSchedule(ctx context.Context, id string, level int, completed bool, nextReview time.Time) error

	// UpdateFields は表示フィールド（topic/url/category）を更新する。
	// スケジューリング状態には触れない。
	UpdateFields(ctx context.Context, id, topic, url, category string) error

	// UpdateNextReviewDate は次回復習日のみを更新する（手動上書き用）。
	UpdateNextReviewDate(ctx context.Context, id string, nextReview time.Time) error

	// Delete は指定IDの項目を削除する。削除した場合はtrueを返す。
	// 存在しないIDに対してはfalseを返す（2回目の削除は呼び出し元でNotFoundになる）。
	Delete(ctx context.Context, id string) (bool, error)

	// ListAll は全項目を表示順で返す。
	ListAll(ctx context.Context) ([]*model.ReviewItem, error)

	// ListDue はnext_review_date <= asOf の項目を表示順で返す。
	ListDue(ctx context.Context, asOf time.Time) ([]*model.ReviewItem, error)

	// CountDue はnext_review_date <= asOf の項目数を返す。
	CountDue(ctx context.Context, asOf time.Time) (int, error)
}
