package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-earnings-calendar/internal/pipeline"
	"github.com/shouni/go-earnings-calendar/pkg/batch"
	"github.com/shouni/go-earnings-calendar/pkg/detail"
	"github.com/shouni/go-earnings-calendar/pkg/report"
)

// コマンドラインフラグ変数を定義
var (
	scrapeSeedURL string // --url 決算カレンダーのシードURL
	scrapeCSVPath string // --csv CSV出力先
	scrapeJSON    string // --json JSON出力先
	scrapeTop     int    // --top コンソール表示件数
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "決算カレンダーの全ページを取得し、補完済みデータをCSV/JSONに保存します",
	Long: `決算カレンダーのシードURLからページネーションを解決し、全ページの会社レコードを抽出します。
各レコードは詳細ページ・チャートページから評価指標と52週価格情報で補完され、
配当利回りの降順に整列された結果がCSVとJSONに保存されます。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		cfg := appConfig
		if scrapeSeedURL != "" {
			cfg.SeedURL = scrapeSeedURL
		}
		if scrapeCSVPath != "" {
			cfg.Output.CSVPath = scrapeCSVPath
		}
		if scrapeJSON != "" {
			cfg.Output.JSONPath = scrapeJSON
		}
		if scrapeTop > 0 {
			cfg.Output.SummaryLimit = scrapeTop
		}

		// 1. 依存性の初期化
		client := GetGlobalClient()
		if client == nil {
			return fmt.Errorf("HTTPクライアントが初期化されていません。rootコマンドのPreRunを確認してください")
		}

		enricher, err := detail.NewEnricher(client)
		if err != nil {
			return fmt.Errorf("Enricherの初期化エラー: %w", err)
		}

		scheduler := batch.NewScheduler(
			enricher,
			cfg.Batch.Size,
			cfg.Batch.MaxConcurrency,
			time.Duration(cfg.Batch.DelayMS)*time.Millisecond,
		)

		p, err := pipeline.New(client, scheduler)
		if err != nil {
			return fmt.Errorf("パイプラインの初期化エラー: %w", err)
		}

		// 2. メインロジックの実行
		log.Printf("処理対象URL: %s", cfg.SeedURL)
		records, err := p.Run(context.Background(), cfg.SeedURL)
		if err != nil {
			// シードページの取得失敗は設定エラーとして致命的。出力ファイルは書き込まない。
			return fmt.Errorf("抽出パイプラインの実行エラー: %w", err)
		}

		if len(records) == 0 {
			log.Println("データが見つかりませんでした")
			return nil
		}

		// 3. 整列と出力
		report.SortByDividendYield(records)
		report.PrintSummary(os.Stdout, records, cfg.Output.SummaryLimit)

		if err := report.WriteCSV(cfg.Output.CSVPath, records); err != nil {
			return err
		}
		if err := report.WriteJSON(cfg.Output.JSONPath, records); err != nil {
			return err
		}
		log.Printf("データを %s / %s に保存しました", cfg.Output.CSVPath, cfg.Output.JSONPath)

		elapsed := time.Since(start)
		log.Printf("処理完了 - 実行時間: %.2f秒 (%.1f 件/秒)",
			elapsed.Seconds(), float64(len(records))/elapsed.Seconds())

		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeSeedURL, "url", "u", "", "決算カレンダーのシードURL（省略時は設定値）")
	scrapeCmd.Flags().StringVar(&scrapeCSVPath, "csv", "", "CSVの出力先パス（省略時は設定値）")
	scrapeCmd.Flags().StringVar(&scrapeJSON, "json", "", "JSONの出力先パス（省略時は設定値）")
	scrapeCmd.Flags().IntVar(&scrapeTop, "top", 0, "コンソールに表示する上位件数（省略時は設定値）")
}
