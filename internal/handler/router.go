package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fukushu/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	ReviewService   ReviewServiceInterface
	TransferService TransferServiceInterface
	Notifier        NotifierInterface

	// サーバーレンダリングのページ（nilの場合はマウントしない）
	Pages http.Handler

	// Prometheusスクレイプ用のハンドラー（nilの場合はマウントしない）
	Metrics http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders、/api配下はさらに CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	itemHandler := NewItemHandler(deps.ReviewService)
	transferHandler := NewTransferHandler(deps.TransferService)
	notifyHandler := NewNotifyHandler(deps.Notifier)

	// --- 運用エンドポイント ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- JSON API ---
	// ミドルウェアスタック: CORS → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 項目管理
		r.Route("/api/items", func(r chi.Router) {
			r.Post("/", itemHandler.CreateItem)
			r.Get("/", itemHandler.ListItems)
			r.Get("/due", itemHandler.ListDueItems)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", itemHandler.GetItem)
				r.Patch("/", itemHandler.EditItem)
				r.Delete("/", itemHandler.DeleteItem)
				r.Post("/review", itemHandler.RecordReview)
				r.Put("/due-date", itemHandler.OverrideDueDate)
			})
		})

		// バックアップ
		r.Get("/api/export", transferHandler.ExportJSON)
		r.Get("/api/export.xlsx", transferHandler.ExportXLSX)

		// インポートは専用レート制限を追加で適用する
		r.With(deps.RateLimiter.ImportMiddleware()).Post("/api/import", transferHandler.ImportJSON)
		r.With(deps.RateLimiter.ImportMiddleware()).Post("/api/import.xlsx", transferHandler.ImportXLSX)

		// 通知トリガー
		r.Post("/api/notify", notifyHandler.TriggerNotify)
	})

	// --- サーバーレンダリングのページ ---
	if deps.Pages != nil {
		r.Mount("/", deps.Pages)
	}

	return r
}
