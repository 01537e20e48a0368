package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/fukushu/internal/model"
	"github.com/hitoshi/fukushu/internal/schedule"
)

// DueLister は通知サービスが必要とする期限到来項目の取得インターフェース。
type DueLister interface {
	ListDue(ctx context.Context, asOf time.Time) ([]model.CategoryGroup, error)
}

// MetricsRecorder は通知結果のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordNotification(ok bool)
}

// Result は通知トリガーの実行結果。
type Result struct {
	DueCount int    // 通知対象の件数
	Sent     bool   // 送信を実施して成功したか
	Detail   string // シンクの応答詳細
}

// Service は期限到来項目のサマリーを通知シンクへ転送する。
type Service struct {
	lister  DueLister
	sink    Sink
	metrics MetricsRecorder
	logger  *slog.Logger
	nowFn   func() time.Time
}

// NewService はServiceを生成する。
func NewService(lister DueLister, sink Sink, metrics MetricsRecorder, logger *slog.Logger) *Service {
	return &Service{
		lister:  lister,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		nowFn:   schedule.Today,
	}
}

// WithNow は現在日付の取得関数を差し替える（テスト用）。
func (s *Service) WithNow(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

// NotifyDue は本日時点の期限到来項目を集計し、サマリーをシンクへ転送する。
// 対象が0件の場合は送信せずに成功として返す。
// 送信失敗はNotificationFailedエラーとして返すが、再送は行わない。
// シンクの成否はResultにそのまま反映される。
func (s *Service) NotifyDue(ctx context.Context) (*Result, error) {
	asOf := s.nowFn()

	groups, err := s.lister.ListDue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}

	if total == 0 {
		s.logger.Info("期限到来の項目がないため通知をスキップします")
		return &Result{DueCount: 0, Sent: false, Detail: "期限到来の項目はありません"}, nil
	}

	text := Digest(groups, asOf)
	ok, detail := s.sink.Send(ctx, text)
	if s.metrics != nil {
		s.metrics.RecordNotification(ok)
	}

	if !ok {
		s.logger.Error("通知の送信に失敗しました",
			slog.Int("due_count", total),
			slog.String("detail", detail),
		)
		return &Result{DueCount: total, Sent: false, Detail: detail},
			model.NewNotificationFailedError(detail)
	}

	s.logger.Info("通知を送信しました",
		slog.Int("due_count", total),
		slog.String("detail", detail),
	)
	return &Result{DueCount: total, Sent: true, Detail: detail}, nil
}
