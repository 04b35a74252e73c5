package cmd

import (
	"log"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-earnings-calendar/pkg/config"
	"github.com/shouni/go-earnings-calendar/pkg/fetch"
)

// --- グローバル定数 ---

const (
	appName = "earnings-calendar"
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec   int // --timeout タイムアウト（秒）
	MaxRetries   int // --max-retries リトライ回数
	Concurrency  int // --concurrency 同時リクエスト数の上限
	BatchSize    int // --batch-size 詳細補完の1バッチあたりの件数
	BatchDelayMS int // --batch-delay バッチ間スリープ（ミリ秒）
}

var Flags AppFlags             // アプリケーション固有フラグにアクセスするためのグローバル変数
var appConfig config.Config    // 設定ファイル・環境変数・フラグをマージした実効設定
var globalClient *fetch.Client // 全サブコマンドで共有するキャッシュ付き取得クライアント

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		30,
		"HTTPリクエストのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.MaxRetries,
		"max-retries",
		fetch.DefaultMaxRetries,
		"HTTPリクエストのリトライ最大回数",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.Concurrency,
		"concurrency",
		fetch.DefaultMaxConcurrency,
		"システム全体の同時リクエスト数の上限",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.BatchSize,
		"batch-size",
		50,
		"詳細補完の1バッチあたりのレコード数",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.BatchDelayMS,
		"batch-delay",
		100,
		"バッチ間のスリープ時間（ミリ秒）",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// 設定の優先順位: デフォルト < 設定ファイル < 環境変数 < 明示的に指定されたフラグ
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	appConfig = config.Load()

	if cmd.Flags().Changed("timeout") {
		appConfig.Fetch.TimeoutSec = Flags.TimeoutSec
	}
	if cmd.Flags().Changed("max-retries") {
		appConfig.Fetch.MaxRetries = Flags.MaxRetries
	}
	if cmd.Flags().Changed("concurrency") {
		appConfig.Fetch.MaxConcurrency = Flags.Concurrency
	}
	if cmd.Flags().Changed("batch-size") {
		appConfig.Batch.Size = Flags.BatchSize
	}
	if cmd.Flags().Changed("batch-delay") {
		appConfig.Batch.DelayMS = Flags.BatchDelayMS
	}

	timeout := time.Duration(appConfig.Fetch.TimeoutSec) * time.Second

	// clibase.Flags の利用
	if clibase.Flags.Verbose {
		log.Printf("取得クライアントを設定しました (Timeout: %s, MaxRetries: %d, MaxConcurrency: %d)。",
			timeout, appConfig.Fetch.MaxRetries, appConfig.Fetch.MaxConcurrency)
	}

	// 共有クライアントの初期化。キャッシュの寿命は1回のコマンド実行です。
	globalClient = fetch.New(
		timeout,
		appConfig.Fetch.MaxConcurrency,
		fetch.WithMaxRetries(uint64(appConfig.Fetch.MaxRetries)),
	)

	return nil
}

// GetGlobalClient は、初期化された共有クライアントを返す関数 (DIの代わり)
func GetGlobalClient() *fetch.Client {
	return globalClient
}

// --- エントリポイント ---

// Execute は、clibaseを使用してアプリケーションの初期化、フラグ設定、サブコマンドの登録を一括で行います。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags, // カスタムフラグの追加コールバック
		initAppPreRunE,        // カスタムPersistentPreRunEコールバック
		scrapeCmd,
		pagesCmd,
		detailCmd,
	)
}
