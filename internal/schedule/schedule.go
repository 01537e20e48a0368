// Package schedule は復習間隔のスケジューリングロジックを提供する。
// 間隔テーブルと評価（again/remembered）から次回復習日を計算する純粋ロジックであり、
// 永続化には関与しない。
package schedule

import (
	"fmt"
	"time"

	"github.com/hitoshi/fukushu/internal/model"
)

// Policy は間隔テーブルを使い切った後の挙動を表す。
type Policy string

const (
	// PolicyFlatCap は最終レベルに留まり続けるポリシー。
	// 最終レベル到達後もrememberedのたびに最終間隔で繰り返す。
	PolicyFlatCap Policy = "flat_cap"
	// PolicyCompletionLoop は最終レベル通過後に完了状態へ遷移するポリシー。
	// 完了後は固定のループ間隔で無期限に繰り返す。
	PolicyCompletionLoop Policy = "completion_loop"
)

// DefaultIntervals は間隔テーブルの既定値（日数）。
var DefaultIntervals = []int{1, 3, 7, 16, 35, 60, 120}

// DefaultCompletedLoopDays は完了後ループ間隔の既定値（日数）。
const DefaultCompletedLoopDays = 30

// Config はスケジューラの設定値。プロセス起動時に1回構築し、以後イミュータブルとして扱う。
// グローバル変数ではなく値として各コンポーネントへ渡す。
type Config struct {
	// Intervals はレベル0からの復習間隔（日数）の昇順テーブル。
	Intervals []int
	// Policy はテーブルを使い切った後の挙動。
	Policy Policy
	// CompletedLoopDays は完了後のループ間隔（日数）。PolicyCompletionLoopでのみ使用する。
	CompletedLoopDays int
}

// Scheduler は設定済みの間隔テーブルに基づくスケジューラ。
// ステートレスであり、複数のリクエストハンドラーから同時に呼び出して安全である。
type Scheduler struct {
	cfg Config
}

// New は設定を検証してSchedulerを生成する。
func New(cfg Config) (*Scheduler, error) {
	if len(cfg.Intervals) == 0 {
		return nil, fmt.Errorf("間隔テーブルが空です")
	}
	for i, d := range cfg.Intervals {
		if d <= 0 {
			return nil, fmt.Errorf("間隔テーブルの値は正の整数である必要があります: intervals[%d] = %d", i, d)
		}
	}
	switch cfg.Policy {
	case PolicyFlatCap:
	case PolicyCompletionLoop:
		if cfg.CompletedLoopDays <= 0 {
			return nil, fmt.Errorf("完了後ループ間隔は正の整数である必要があります: %d", cfg.CompletedLoopDays)
		}
	default:
		return nil, fmt.Errorf("不明なポリシーです: %q", cfg.Policy)
	}
	return &Scheduler{cfg: cfg}, nil
}

// Intervals は間隔テーブルのコピーを返す。
func (s *Scheduler) Intervals() []int {
	out := make([]int, len(s.cfg.Intervals))
	copy(out, s.cfg.Intervals)
	return out
}

// Policy は設定されたポリシーを返す。
func (s *Scheduler) Policy() Policy {
	return s.cfg.Policy
}

// InitialLevel は追加時の初期レベルを返す。
// assumedFamiliarがtrueかつテーブルに2つ以上の間隔がある場合はレベル1、それ以外はレベル0。
// テーブルが1要素しかない場合はレベル1が存在しないためレベル0に落とす。
func (s *Scheduler) InitialLevel(assumedFamiliar bool) int {
	if assumedFamiliar && len(s.cfg.Intervals) > 1 {
		return 1
	}
	return 0
}

// DueDate は指定レベルの間隔をtodayに加算した次回復習日を返す。
func (s *Scheduler) DueDate(today time.Time, level int) time.Time {
	return addDays(today, s.cfg.Intervals[s.ClampLevel(level)])
}

// Result は評価適用後のスケジューリング状態。
type Result struct {
	Level          int
	Completed      bool
	NextReviewDate time.Time
}

// Next は評価を適用した新しいレベル・完了フラグ・次回復習日を計算する。
//
// OutcomeAgainは現在のレベルに関わらずレベル0への完全リセットとなる。部分的な後退はない。
// OutcomeRememberedはポリシーに応じて1段階だけ進む。レベルの飛び越しはない。
// 次回復習日は常にtoday基準で計算する。前回予定日基準にしないため、
// 復習が遅れても以後の間隔が延びることはない。
func (s *Scheduler) Next(level int, completed bool, outcome model.Outcome, today time.Time) Result {
	if outcome == model.OutcomeAgain {
		return Result{
			Level:          0,
			Completed:      false,
			NextReviewDate: addDays(today, s.cfg.Intervals[0]),
		}
	}

	last := len(s.cfg.Intervals) - 1
	level = s.ClampLevel(level)

	if s.cfg.Policy == PolicyCompletionLoop {
		// 完了状態ではレベルを変えずループ間隔で回り続ける
		if completed {
			return Result{
				Level:          level,
				Completed:      true,
				NextReviewDate: addDays(today, s.cfg.CompletedLoopDays),
			}
		}
		// 最終レベルでのrememberedが完了への一度きりの遷移となる
		if level == last {
			return Result{
				Level:          level,
				Completed:      true,
				NextReviewDate: addDays(today, s.cfg.CompletedLoopDays),
			}
		}
		next := level + 1
		return Result{
			Level:          next,
			Completed:      false,
			NextReviewDate: addDays(today, s.cfg.Intervals[next]),
		}
	}

	// PolicyFlatCap: 最終レベルで頭打ちにし、以後は最終間隔を使い続ける
	next := level + 1
	if next > last {
		next = last
	}
	return Result{
		Level:          next,
		Completed:      false,
		NextReviewDate: addDays(today, s.cfg.Intervals[next]),
	}
}

// ClampLevel はレベルをテーブルの有効範囲[0, len-1]に収める。
// 設定変更で間隔テーブルが短くなった後の既存行の読み込みで必要になる。
func (s *Scheduler) ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if last := len(s.cfg.Intervals) - 1; level > last {
		return last
	}
	return level
}

// ParseOutcome は評価トークンを解析する。
// 受理するのは "again" と "remembered"（旧ページフォームが送信していた別名 "good" を含む）のみ。
// それ以外は黙ってrememberedに倒さず、InvalidOutcomeエラーで拒否する。
func ParseOutcome(s string) (model.Outcome, error) {
	switch s {
	case "again":
		return model.OutcomeAgain, nil
	case "remembered", "good":
		return model.OutcomeRemembered, nil
	default:
		return "", model.NewInvalidOutcomeError(s)
	}
}

// ParseDate はYYYY-MM-DD形式の暦日を解析する。
// 存在しない暦日（例: 2024-02-30）はInvalidDateエラーとなる。
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, model.NewInvalidDateError(s)
	}
	return t, nil
}

// Today はサーバーのローカル暦日（時刻部分ゼロ）を返す。
func Today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// addDays は時刻部分を保ったまま日数を加算する。
func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}
