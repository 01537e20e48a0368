// Package transfer は復習項目の一括エクスポート・インポートを提供する。
package transfer

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/fukushu/internal/model"
	"github.com/hitoshi/fukushu/internal/repository"
	"github.com/hitoshi/fukushu/internal/schedule"
)

// Record はエクスポート・インポートで使うフラットなレコード。
// 日付はすべて正規形式（YYYY-MM-DD）の文字列で表す。
type Record struct {
	ID             string `json:"id,omitempty"`
	Topic          string `json:"topic"`
	URL            string `json:"url,omitempty"`
	Category       string `json:"category,omitempty"`
	DateAdded      string `json:"date_added,omitempty"`
	ReviewLevel    int    `json:"review_level"`
	NextReviewDate string `json:"next_review_date,omitempty"`
	IsCompleted    bool   `json:"is_completed"`
}

// ImportResult はインポート結果の集計。
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// MetricsRecorder はインポート件数のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordImportedItems(count int)
}

// Service は一括エクスポート・インポートを実装する。
type Service struct {
	repo      repository.ReviewItemRepository
	scheduler *schedule.Scheduler
	metrics   MetricsRecorder
	sanitizer *bluemonday.Policy
	nowFn     func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.ReviewItemRepository, scheduler *schedule.Scheduler, metrics MetricsRecorder) *Service {
	return &Service{
		repo:      repo,
		scheduler: scheduler,
		metrics:   metrics,
		sanitizer: bluemonday.StrictPolicy(),
		nowFn:     schedule.Today,
	}
}

// WithNow は現在日付の取得関数を差し替える（テスト用）。
func (s *Service) WithNow(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

// cleanText はHTMLタグを除去し、前後の空白を取り除く。
// Sanitizeによる実体参照エスケープは平文保存のためアンエスケープして戻す。
func (s *Service) cleanText(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

// Export は全項目をフラットなレコード列として返す。
func (s *Service) Export(ctx context.Context) ([]Record, error) {
	items, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, len(items))
	for i, item := range items {
		records[i] = Record{
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
	return records, nil
}

// Import はレコード列を取り込む。
// topicを欠くレコードは（バッチ全体を失敗させず）スキップする。
// 欠落したカテゴリと日付にはデフォルト（general / 本日）を割り当て、
// レベルは間隔テーブルの有効範囲に収める。IDは常に新規採番する。
func (s *Service) Import(ctx context.Context, records []Record) (*ImportResult, error) {
	today := s.nowFn()
	now := time.Now()
	result := &ImportResult{}

	for _, rec := range records {
		topic := s.cleanText(rec.Topic)
		if topic == "" {
			result.Skipped++
			continue
		}

		category := s.cleanText(rec.Category)
		if category == "" {
			category = model.DefaultCategory
		}

		item := &model.ReviewItem{
			ID:             uuid.NewString(),
			Topic:          topic,
			URL:            strings.TrimSpace(rec.URL),
			Category:       category,
			DateAdded:      parseDateOrDefault(rec.DateAdded, today),
			ReviewLevel:    s.scheduler.ClampLevel(rec.ReviewLevel),
			NextReviewDate: parseDateOrDefault(rec.NextReviewDate, today),
			IsCompleted:    rec.IsCompleted,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := s.repo.Create(ctx, item); err != nil {
			return nil, err
		}
		result.Imported++
	}

	if result.Imported > 0 && s.metrics != nil {
		s.metrics.RecordImportedItems(result.Imported)
	}

	return result, nil
}

// parseDateOrDefault は正規形式の日付を解析し、欠落または解釈不能な値には
// デフォルト日を割り当てる。
func parseDateOrDefault(s string, def time.Time) time.Time {
	if s == "" {
		return def
	}
	t, err := schedule.ParseDate(s)
	if err != nil {
		return def
	}
	return t
}
