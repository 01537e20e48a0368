package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/fukushu/internal/schedule"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Schedule
	ReviewIntervals   []int
	ReviewPolicy      schedule.Policy
	CompletedLoopDays int

	// Notify
	NotifyWebhookURL string
	TelegramBotToken string
	TelegramChatID   int64
	NotifyHour       int
	NotifyTimeout    time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitImport  int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}

	// Schedule
	intervals, err := parseIntervals(os.Getenv("REVIEW_INTERVALS"))
	if err != nil {
		return nil, fmt.Errorf("REVIEW_INTERVALS の形式が不正です: %w", err)
	}
	cfg.ReviewIntervals = intervals

	policy, err := parsePolicy(getEnvString("REVIEW_POLICY", "completion_loop"))
	if err != nil {
		return nil, err
	}
	cfg.ReviewPolicy = policy
	cfg.CompletedLoopDays = getEnvInt("COMPLETED_LOOP_DAYS", schedule.DefaultCompletedLoopDays)

	// Notify
	cfg.NotifyWebhookURL = getEnvString("NOTIFY_WEBHOOK_URL", "")
	cfg.TelegramBotToken = getEnvString("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = getEnvInt64("TELEGRAM_CHAT_ID", 0)
	cfg.NotifyHour = getEnvInt("NOTIFY_HOUR", 7)
	if cfg.NotifyHour < 0 || cfg.NotifyHour > 23 {
		return nil, fmt.Errorf("NOTIFY_HOUR は0〜23で指定してください: %d", cfg.NotifyHour)
	}
	cfg.NotifyTimeout = getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second)

	// Optional fields with defaults
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitImport = getEnvInt("RATE_LIMIT_IMPORT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ScheduleConfig は復習スケジューラ用の設定を組み立てる。
func (c *Config) ScheduleConfig() schedule.Config {
	return schedule.Config{
		Intervals:         c.ReviewIntervals,
		Policy:            c.ReviewPolicy,
		CompletedLoopDays: c.CompletedLoopDays,
	}
}

// parseIntervals はカンマ区切りの日数リストを解釈する。
// 空文字列の場合はデフォルトの間隔テーブルを返す。
func parseIntervals(v string) ([]int, error) {
	if v == "" {
		return append([]int(nil), schedule.DefaultIntervals...), nil
	}
	parts := strings.Split(v, ",")
	intervals := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("日数として解釈できません: %q", p)
		}
		intervals = append(intervals, n)
	}
	return intervals, nil
}

func parsePolicy(v string) (schedule.Policy, error) {
	switch v {
	case "completion_loop":
		return schedule.PolicyCompletionLoop, nil
	case "flat_cap":
		return schedule.PolicyFlatCap, nil
	default:
		return "", fmt.Errorf("REVIEW_POLICY は completion_loop または flat_cap を指定してください: %q", v)
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
