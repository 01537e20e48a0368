// Package review は復習項目のユースケース層を提供する。
// JSON APIとページの両ハンドラーから共用される。
package review

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/fukushu/internal/model"
	"github.com/hitoshi/fukushu/internal/repository"
	"github.com/hitoshi/fukushu/internal/schedule"
)

// MetricsRecorder はサービスが記録するメトリクスの最小インターフェース。
type MetricsRecorder interface {
	RecordItemCreated()
	RecordItemDeleted()
	RecordReview(outcome string)
}

// Service は復習項目のユースケースを実装する。
// 各変更操作は対象1行への単一のUPDATEとして適用される。同一項目への同時復習は
// 後勝ちとなる（単一ユーザー前提のため楽観ロックは持たない）。
type Service struct {
	repo      repository.ReviewItemRepository
	scheduler *schedule.Scheduler
	metrics   MetricsRecorder
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	nowFn     func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.ReviewItemRepository, scheduler *schedule.Scheduler, metrics MetricsRecorder) *Service {
	return &Service{
		repo:      repo,
		scheduler: scheduler,
		metrics:   metrics,
		validate:  validator.New(),
		// ブックマークレット経由のタイトルはページ由来のHTMLを含みうるためタグを除去する
		sanitizer: bluemonday.StrictPolicy(),
		nowFn:     schedule.Today,
	}
}

// WithNow は現在日付の取得関数を差し替える（テスト用）。
func (s *Service) WithNow(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

// AddInput は項目追加の入力。
type AddInput struct {
	Topic           string `validate:"required"`
	URL             string
	Category        string
	AssumedFamiliar bool
}

// Add は項目を追加し、初期レベルと次回復習日を計算して永続化する。
// topicが空（サニタイズ後に空になる場合を含む）の場合はValidationErrorを返す。
func (s *Service) Add(ctx context.Context, in AddInput) (*model.ReviewItem, error) {
	in.Topic = s.cleanText(in.Topic)
	in.Category = normalizeCategory(s.cleanText(in.Category))

	if err := s.validate.Struct(in); err != nil {
		return nil, model.NewValidationError("topic", "項目名は必須です")
	}

	today := s.nowFn()
	level := s.scheduler.InitialLevel(in.AssumedFamiliar)
	now := time.Now()

	item := &model.ReviewItem{
		ID:             uuid.NewString(),
		Topic:          in.Topic,
		URL:            strings.TrimSpace(in.URL),
		Category:       in.Category,
		DateAdded:      today,
		ReviewLevel:    level,
		NextReviewDate: s.scheduler.DueDate(today, level),
		IsCompleted:    false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordItemCreated()
	}
	return item, nil
}

// RecordOutcome は復習評価を適用し、新しいレベル・完了フラグ・次回復習日を永続化する。
// 不明な評価トークンはInvalidOutcome、未知のIDはNotFoundとなる。
func (s *Service) RecordOutcome(ctx context.Context, id, outcomeStr string) (*model.ReviewItem, error) {
	outcome, err := schedule.ParseOutcome(outcomeStr)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}

	result := s.scheduler.Next(item.ReviewLevel, item.IsCompleted, outcome, s.nowFn())
	if err := s.repo.UpdateSchedule(ctx, id, result.Level, result.Completed, result.NextReviewDate); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordReview(string(outcome))
	}

	item.ReviewLevel = result.Level
	item.IsCompleted = result.Completed
	item.NextReviewDate = result.NextReviewDate
	return item, nil
}

// OverrideDueDate は次回復習日を指定日に上書きする。
// 過去日や遠い未来日の検証は意図的に行わない（手動補正の逃げ道として使う）。
func (s *Service) OverrideDueDate(ctx context.Context, id, dateStr string) (*model.ReviewItem, error) {
	newDate, err := schedule.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}

	if err := s.repo.UpdateNextReviewDate(ctx, id, newDate); err != nil {
		return nil, err
	}
	item.NextReviewDate = newDate
	return item, nil
}

// EditInput は表示フィールド編集の入力。
type EditInput struct {
	Topic    string `validate:"required"`
	URL      string
	Category string
}

// EditFields はtopic/url/categoryを更新する。スケジューリング状態には触れない。
func (s *Service) EditFields(ctx context.Context, id string, in EditInput) (*model.ReviewItem, error) {
	in.Topic = s.cleanText(in.Topic)
	in.Category = normalizeCategory(s.cleanText(in.Category))

	if err := s.validate.Struct(in); err != nil {
		return nil, model.NewValidationError("topic", "項目名は必須です")
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}

	if err := s.repo.UpdateFields(ctx, id, in.Topic, strings.TrimSpace(in.URL), in.Category); err != nil {
		return nil, err
	}
	item.Topic = in.Topic
	item.URL = strings.TrimSpace(in.URL)
	item.Category = in.Category
	return item, nil
}

// Delete は項目を削除する。存在しないIDはNotFoundとなる（冪等性は保証しない）。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return model.NewItemNotFoundError(id)
	}
	if s.metrics != nil {
		s.metrics.RecordItemDeleted()
	}
	return nil
}

// Get は項目を取得する。存在しない場合はNotFoundとなる。
func (s *Service) Get(ctx context.Context, id string) (*model.ReviewItem, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}
	return item, nil
}

// ListDue はasOf時点で期限到来の項目をカテゴリごとにまとめて返す。
func (s *Service) ListDue(ctx context.Context, asOf time.Time) ([]model.CategoryGroup, error) {
	items, err := s.repo.ListDue(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return groupByCategory(items), nil
}

// ListAll は全項目をカテゴリごとにまとめて返す。
func (s *Service) ListAll(ctx context.Context) ([]model.CategoryGroup, error) {
	items, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return groupByCategory(items), nil
}

// Today はサービスの基準日を返す。ハンドラーの「本日分」表示で使用する。
func (s *Service) Today() time.Time {
	return s.nowFn()
}

// cleanText はHTMLタグを除去し、前後の空白を取り除く。
// Sanitizeは残ったテキストを実体参照にエスケープするため、平文（< や & を含む
// トピック名など）をそのまま保存できるようにアンエスケープして戻す。
func (s *Service) cleanText(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

// validateID はUUID形式でないIDをNotFoundとして弾く。
// 形式不正のIDをそのままDBに渡すとuuidキャストの失敗が内部エラーとして
// 表面化するため、存在しないIDと同じ扱いでここで止める。
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewItemNotFoundError(id)
	}
	return nil
}

// normalizeCategory は空白のみのカテゴリを既定カテゴリに置き換える。
func normalizeCategory(category string) string {
	if category == "" {
		return model.DefaultCategory
	}
	return category
}

// groupByCategory は表示順に並んだ項目列をカテゴリごとの区分に変換する。
// 入力はcategory昇順で並んでいる前提のため、区分の順序もカテゴリ名昇順になる。
func groupByCategory(items []*model.ReviewItem) []model.CategoryGroup {
	var groups []model.CategoryGroup
	for _, item := range items {
		if len(groups) == 0 || groups[len(groups)-1].Category != item.Category {
			groups = append(groups, model.CategoryGroup{Category: item.Category})
		}
		last := &groups[len(groups)-1]
		last.Items = append(last.Items, item)
	}
	return groups
}
