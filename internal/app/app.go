// Package app はアプリケーションの起動と依存関係のワイヤリングを担う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/fukushu/internal/config"
	"github.com/hitoshi/fukushu/internal/database"
	"github.com/hitoshi/fukushu/internal/handler"
	"github.com/hitoshi/fukushu/internal/logger"
	"github.com/hitoshi/fukushu/internal/metrics"
	"github.com/hitoshi/fukushu/internal/middleware"
	"github.com/hitoshi/fukushu/internal/notify"
	"github.com/hitoshi/fukushu/internal/repository"
	"github.com/hitoshi/fukushu/internal/review"
	"github.com/hitoshi/fukushu/internal/schedule"
	"github.com/hitoshi/fukushu/internal/transfer"
	"github.com/hitoshi/fukushu/internal/web"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// deps はserveとworkerで共用する依存関係一式。
type deps struct {
	repo      *repository.PostgresReviewItemRepo
	registry  *prometheus.Registry
	collector *metrics.Collector
	reviewSvc *review.Service
	transfer  *transfer.Service
	notifier  *notify.Service
}

// buildDeps はDB接続以降の共通依存関係をワイヤリングする。
func buildDeps(cfg *config.Config, db *sql.DB) (*deps, error) {
	scheduler, err := schedule.New(cfg.ScheduleConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build review scheduler: %w", err)
	}

	repo := repository.NewPostgresReviewItemRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	reviewSvc := review.NewService(repo, scheduler, collector)
	transferSvc := transfer.NewService(repo, scheduler, collector)

	sink := buildSink(cfg)
	notifier := notify.NewService(reviewSvc, sink, collector, slog.Default())

	return &deps{
		repo:      repo,
		registry:  registry,
		collector: collector,
		reviewSvc: reviewSvc,
		transfer:  transferSvc,
		notifier:  notifier,
	}, nil
}

// buildSink は設定に応じた通知シンクを選択する。
// Webhook → Telegram の優先順で、どちらも未設定の場合はログ出力にフォールバックする。
func buildSink(cfg *config.Config) notify.Sink {
	if cfg.NotifyWebhookURL != "" {
		slog.Info("notification sink: webhook")
		return notify.NewWebhookSink(
			&http.Client{Timeout: cfg.NotifyTimeout},
			slog.Default(),
			cfg.NotifyWebhookURL,
		)
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		sink, err := notify.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID, slog.Default())
		if err != nil {
			slog.Error("failed to initialize telegram sink, falling back to log",
				slog.String("error", err.Error()),
			)
			return notify.NewLogSink(slog.Default())
		}
		slog.Info("notification sink: telegram")
		return sink
	}

	slog.Info("notification sink: log (no external sink configured)")
	return notify.NewLogSink(slog.Default())
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. サービスのワイヤリング
	d, err := buildDeps(cfg, db)
	if err != nil {
		return err
	}

	// 3. サーバーレンダリングのページ
	pages, err := web.NewHandler(d.reviewSvc, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build web pages: %w", err)
	}

	// 4. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ImportRate = rate.Limit(float64(cfg.RateLimitImport) / 60.0)
	rateLimiterCfg.ImportBurst = cfg.RateLimitImport

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),

		ReviewService:   d.reviewSvc,
		TransferService: d.transfer,
		Notifier:        d.notifier,

		Pages:   pages.Routes(),
		Metrics: metrics.Handler(d.registry),
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 期限到来件数のゲージを定期更新する
	gaugeCtx, gaugeCancel := context.WithCancel(context.Background())
	defer gaugeCancel()
	go runDueGaugeLoop(gaugeCtx, d.repo, d.collector)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runDueGaugeLoop は期限到来件数のゲージを定期的に更新する。
func runDueGaugeLoop(ctx context.Context, repo *repository.PostgresReviewItemRepo, collector *metrics.Collector) {
	update := func() {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		count, err := repo.CountDue(reqCtx, schedule.Today())
		if err != nil {
			slog.Error("failed to count due items", slog.String("error", err.Error()))
			return
		}
		collector.SetDueCount(count)
	}

	update()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// runWorker はワーカーモードで起動する。
// 毎日NOTIFY_HOURに期限到来項目のサマリーを通知シンクへ送る。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. サービスのワイヤリング
	d, err := buildDeps(cfg, db)
	if err != nil {
		return err
	}

	// 3. 日次通知ジョブのスケジューリング
	scheduler := gocron.NewScheduler(time.Local)

	notifyJob := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.NotifyTimeout)
		defer cancel()

		result, err := d.notifier.NotifyDue(ctx)
		if err != nil {
			slog.Error("daily notification failed", slog.String("error", err.Error()))
			return
		}
		slog.Info("daily notification completed",
			slog.Int("due_count", result.DueCount),
			slog.Bool("sent", result.Sent),
		)
	}

	notifyAt := fmt.Sprintf("%02d:00", cfg.NotifyHour)
	if _, err := scheduler.Every(1).Day().At(notifyAt).Do(notifyJob); err != nil {
		return fmt.Errorf("failed to schedule notification job: %w", err)
	}

	slog.Info("worker starting",
		slog.String("notify_at", notifyAt),
	)

	scheduler.StartAsync()

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down worker...")
	scheduler.Stop()

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
