package transfer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hitoshi/fukushu/internal/model"
	"github.com/hitoshi/fukushu/internal/schedule"
)

// mockRepo は転送テスト用のReviewItemRepositoryモック。
// 作成された項目を記録し、一覧は固定で返す。
type mockRepo struct {
	created []*model.ReviewItem
	items   []*model.ReviewItem
}

func (m *mockRepo) FindByID(_ context.Context, _ string) (*model.ReviewItem, error) { return nil, nil }

func (m *mockRepo) Create(_ context.Context, item *model.ReviewItem) error {
	m.created = append(m.created, item)
	return nil
}

func (m *mockRepo) UpdateSchedule(_ context.Context, _ string, _ int, _ bool, _ time.Time) error {
	return nil
}

func (m *mockRepo) UpdateFields(_ context.Context, _, _, _, _ string) error { return nil }

func (m *mockRepo) UpdateNextReviewDate(_ context.Context, _ string, _ time.Time) error { return nil }

func (m *mockRepo) Delete(_ context.Context, _ string) (bool, error) { return false, nil }

func (m *mockRepo) ListAll(_ context.Context) ([]*model.ReviewItem, error) { return m.items, nil }

func (m *mockRepo) ListDue(_ context.Context, _ time.Time) ([]*model.ReviewItem, error) {
	return nil, nil
}

func (m *mockRepo) CountDue(_ context.Context, _ time.Time) (int, error) { return 0, nil }

// mockMetrics はインポート件数の記録を検証するモック。
type mockMetrics struct {
	imported int
}

func (m *mockMetrics) RecordImportedItems(count int) { m.imported += count }

var testToday = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo *mockRepo) (*Service, *mockMetrics) {
	t.Helper()
	sched, err := schedule.New(schedule.Config{
		Intervals:         []int{1, 3, 7},
		Policy:            schedule.PolicyCompletionLoop,
		CompletedLoopDays: 30,
	})
	if err != nil {
		t.Fatalf("schedule.New がエラーを返した: %v", err)
	}
	metrics := &mockMetrics{}
	svc := NewService(repo, sched, metrics).WithNow(func() time.Time { return testToday })
	return svc, metrics
}

// --- Export ---

func TestService_Export(t *testing.T) {
	repo := &mockRepo{
		items: []*model.ReviewItem{
			{
				ID:             "id-1",
				Topic:          "CAP定理",
				URL:            "https://example.com/cap",
				Category:       "分散システム",
				DateAdded:      time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
				ReviewLevel:    2,
				NextReviewDate: time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
				IsCompleted:    false,
			},
		},
	}
	svc, _ := newTestService(t, repo)

	records, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("Export がエラーを返した: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("レコード数 = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.DateAdded != "2025-05-01" || rec.NextReviewDate != "2025-06-08" {
		t.Errorf("日付が正規形式でない: %q / %q", rec.DateAdded, rec.NextReviewDate)
	}
	if rec.Topic != "CAP定理" || rec.ReviewLevel != 2 {
		t.Errorf("レコード内容が一致しない: %+v", rec)
	}
}

// --- Import ---

// TestService_Import_SkipsMissingTopic はtopic欠落レコードがスキップされ、
// インポート件数に数えられないことを検証する。
func TestService_Import_SkipsMissingTopic(t *testing.T) {
	repo := &mockRepo{}
	svc, metrics := newTestService(t, repo)

	records := []Record{
		{Topic: ""},
		{Topic: "   "},
		{Topic: "TLSハンドシェイク", Category: "network", DateAdded: "2025-05-20", NextReviewDate: "2025-06-10", ReviewLevel: 1},
	}

	result, err := svc.Import(context.Background(), records)
	if err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
	if len(repo.created) != 1 {
		t.Fatalf("作成件数 = %d, want 1", len(repo.created))
	}
	got := repo.created[0]
	if got.Topic != "TLSハンドシェイク" || got.Category != "network" {
		t.Errorf("作成内容が一致しない: %+v", got)
	}
	if got.ID == "" {
		t.Error("IDが新規採番されていない")
	}
	if metrics.imported != 1 {
		t.Errorf("インポート件数メトリクス = %d, want 1（スキップ分は数えない）", metrics.imported)
	}
}

// TestService_Import_Defaults はカテゴリと日付の欠落にデフォルトが割り当てられ、
// レベルが間隔テーブルの範囲に収められることを検証する。
func TestService_Import_Defaults(t *testing.T) {
	repo := &mockRepo{}
	svc, _ := newTestService(t, repo)

	result, err := svc.Import(context.Background(), []Record{
		{Topic: "メモリバリア", ReviewLevel: 99},
	})
	if err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("Imported = %d, want 1", result.Imported)
	}

	got := repo.created[0]
	if got.Category != model.DefaultCategory {
		t.Errorf("Category = %q, want %q", got.Category, model.DefaultCategory)
	}
	if !got.DateAdded.Equal(testToday) || !got.NextReviewDate.Equal(testToday) {
		t.Errorf("欠落日付が本日になっていない: %v / %v", got.DateAdded, got.NextReviewDate)
	}
	if got.ReviewLevel != 2 {
		t.Errorf("ReviewLevel = %d, want 2（テーブル末尾に収める）", got.ReviewLevel)
	}
}

// TestService_Import_UnparseableDateFallsBackToToday は解釈できない日付が
// レコードを失敗させず本日扱いになることを検証する。
func TestService_Import_UnparseableDateFallsBackToToday(t *testing.T) {
	repo := &mockRepo{}
	svc, _ := newTestService(t, repo)

	result, err := svc.Import(context.Background(), []Record{
		{Topic: "ページング", DateAdded: "2024-02-30", NextReviewDate: "not-a-date"},
	})
	if err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("Imported = %d, want 1", result.Imported)
	}
	got := repo.created[0]
	if !got.DateAdded.Equal(testToday) || !got.NextReviewDate.Equal(testToday) {
		t.Errorf("不正日付が本日になっていない: %v / %v", got.DateAdded, got.NextReviewDate)
	}
}

// TestService_Import_PlainTextSurvivesSanitization はHTMLタグのみが除去され、
// < や & を含む平文が実体参照にエスケープされずに保存されることを検証する。
func TestService_Import_PlainTextSurvivesSanitization(t *testing.T) {
	repo := &mockRepo{}
	svc, _ := newTestService(t, repo)

	result, err := svc.Import(context.Background(), []Record{
		{Topic: "C++ < Rust & Go", Category: "<b>lang</b>"},
	})
	if err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("Imported = %d, want 1", result.Imported)
	}

	got := repo.created[0]
	if got.Topic != "C++ < Rust & Go" {
		t.Errorf("Topic = %q, want %q", got.Topic, "C++ < Rust & Go")
	}
	if got.Category != "lang" {
		t.Errorf("Category = %q, want %q（タグのみ除去）", got.Category, "lang")
	}
}

// --- XLSX ---

// TestWriteReadXLSX はワークブックへの書き出しと読み戻しでレコードが保たれる
// ことを検証する。
func TestWriteReadXLSX(t *testing.T) {
	records := []Record{
		{Topic: "ベクタークロック", URL: "https://example.com/vc", Category: "分散システム",
			DateAdded: "2025-05-01", ReviewLevel: 3, NextReviewDate: "2025-06-15", IsCompleted: true},
		{Topic: "LSMツリー", Category: "db", DateAdded: "2025-05-10", ReviewLevel: 0, NextReviewDate: "2025-05-11"},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, records); err != nil {
		t.Fatalf("WriteXLSX がエラーを返した: %v", err)
	}

	got, err := ReadXLSX(&buf)
	if err != nil {
		t.Fatalf("ReadXLSX がエラーを返した: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("読み戻し件数 = %d, want 2", len(got))
	}
	if got[0].Topic != "ベクタークロック" || got[0].ReviewLevel != 3 || !got[0].IsCompleted {
		t.Errorf("1件目が一致しない: %+v", got[0])
	}
	if got[1].Category != "db" || got[1].NextReviewDate != "2025-05-11" {
		t.Errorf("2件目が一致しない: %+v", got[1])
	}
}

func TestReadXLSX_InvalidData(t *testing.T) {
	_, err := ReadXLSX(bytes.NewReader([]byte("これはxlsxではない")))
	if err == nil {
		t.Fatal("不正なデータはエラーになるべき")
	}
}
