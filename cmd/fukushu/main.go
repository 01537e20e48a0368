// fukushu は間隔反復による個人用の復習リマインダー。
//
// サブコマンド:
//
//	serve       APIサーバーとWebページを起動する（デフォルト）
//	worker      日次通知ワーカーを起動する
//	migrate     データベースマイグレーションを適用する
//	healthcheck 稼働中のサーバーにヘルスチェックを送る
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/fukushu/internal/app"
)

func main() {
	// ローカル開発用の.envを読み込む。存在しない場合は環境変数のみを使う。
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
