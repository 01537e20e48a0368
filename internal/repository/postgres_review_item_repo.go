package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/fukushu/internal/model"
)

// PostgresReviewItemRepo はPostgreSQLを使用した復習項目リポジトリ。
type PostgresReviewItemRepo struct {
	db *sql.DB
}

// NewPostgresReviewItemRepo はPostgresReviewItemRepoを生成する。
func NewPostgresReviewItemRepo(db *sql.DB) *PostgresReviewItemRepo {
	return &PostgresReviewItemRepo{db: db}
}

// itemColumns はSELECTで取得するカラムの並び。scanItemと対応する。
const itemColumns = `id, topic, url, category, date_added, review_level,
       next_review_date, is_completed, created_at, updated_at`

// scanItem は1行をReviewItemに読み取る。
func scanItem(row interface{ Scan(...any) error }) (*model.ReviewItem, error) {
	item := &model.ReviewItem{}
	var url sql.NullString

	err := row.Scan(
		&item.ID, &item.Topic, &url, &item.Category, &item.DateAdded,
		&item.ReviewLevel, &item.NextReviewDate, &item.IsCompleted,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.URL = nullStringValue(url)
	return item, nil
}

// FindByID は指定IDの項目を取得する。見つからない場合はnilを返す。
func (r *PostgresReviewItemRepo) FindByID(ctx context.Context, id string) (*model.ReviewItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM review_items WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("項目の取得に失敗しました: %w", err)
	}
	return item, nil
}

// Create は項目を作成する。
func (r *PostgresReviewItemRepo) Create(ctx context.Context, item *model.ReviewItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO review_items (id, topic, url, category, date_added, review_level,
		                           next_review_date, is_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.Topic, nullString(item.URL), item.Category, item.DateAdded,
		item.ReviewLevel, item.NextReviewDate, item.IsCompleted,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("項目の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateSchedule はスケジューリング状態を1文のUPDATEで更新する。
// 項目単位のread-modify-writeはこの1文に閉じる。
func (r *PostgresReviewItemRepo) UpdateSchedule(ctx context.Context, id string, level int, completed bool, nextReview time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE review_items
		 SET review_level = $2, is_completed = $3, next_review_date = $4, updated_at = now()
		 WHERE id = $1`,
		id, level, completed, nextReview,
	)
	if err != nil {
		return fmt.Errorf("スケジュール状態の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateFields は表示フィールドを更新する。スケジューリング状態には触れない。
func (r *PostgresReviewItemRepo) UpdateFields(ctx context.Context, id, topic, url, category string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE review_items
		 SET topic = $2, url = $3, category = $4, updated_at = now()
		 WHERE id = $1`,
		id, topic, nullString(url), category,
	)
	if err != nil {
		return fmt.Errorf("項目フィールドの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateNextReviewDate は次回復習日のみを更新する。
func (r *PostgresReviewItemRepo) UpdateNextReviewDate(ctx context.Context, id string, nextReview time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE review_items SET next_review_date = $2, updated_at = now() WHERE id = $1`,
		id, nextReview,
	)
	if err != nil {
		return fmt.Errorf("次回復習日の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの項目を削除する。削除した場合はtrueを返す。
func (r *PostgresReviewItemRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM review_items WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("項目の削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// ListAll は全項目を表示順（category → next_review_date → id）で返す。
func (r *PostgresReviewItemRepo) ListAll(ctx context.Context) ([]*model.ReviewItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM review_items
		 ORDER BY category ASC, next_review_date ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("項目一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListDue はnext_review_date <= asOf の項目を表示順で返す。
func (r *PostgresReviewItemRepo) ListDue(ctx context.Context, asOf time.Time) ([]*model.ReviewItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM review_items
		 WHERE next_review_date <= $1
		 ORDER BY category ASC, next_review_date ASC, id ASC`,
		asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("期限到来項目の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// CountDue はnext_review_date <= asOf の項目数を返す。
func (r *PostgresReviewItemRepo) CountDue(ctx context.Context, asOf time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_items WHERE next_review_date <= $1`,
		asOf,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("期限到来項目の集計に失敗しました: %w", err)
	}
	return count, nil
}

// collectItems はクエリ結果の全行をReviewItemのスライスに読み取る。
func collectItems(rows *sql.Rows) ([]*model.ReviewItem, error) {
	var items []*model.ReviewItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("項目行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("項目一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// nullString は空文字列をNULLとして保存するためのヘルパー。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから値を取り出す。NULLは空文字列になる。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ReviewItemRepository = (*PostgresReviewItemRepo)(nil)
