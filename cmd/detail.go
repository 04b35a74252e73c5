package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shouni/go-earnings-calendar/pkg/calendar"
	"github.com/shouni/go-earnings-calendar/pkg/detail"
	"github.com/shouni/go-earnings-calendar/pkg/types"
)

// 詳細取得の対象銘柄コードを保持するフラグ変数
var detailStockCode string

var detailCmd = &cobra.Command{
	Use:   "detail",
	Short: "1銘柄の詳細ページから評価指標と52週価格情報を取得して表示します",
	Long: `指定された銘柄コードの詳細ページ・チャートページを取得し、
PER・PBR・配当利回り・52週高値・安値・現在値・位置指標を表示します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		client := GetGlobalClient()
		if client == nil {
			return fmt.Errorf("HTTPクライアントが初期化されていません。rootコマンドのPreRunを確認してください")
		}

		enricher, err := detail.NewEnricher(client)
		if err != nil {
			return fmt.Errorf("Enricherの初期化エラー: %w", err)
		}

		detailURL := fmt.Sprintf("%s/reportTop?bcode=%s", calendar.BaseDomain, detailStockCode)
		rec := types.NewCompanyRecord(detailStockCode, detailStockCode, detailURL, nil)

		enricher.Enrich(context.Background(), rec)

		fmt.Printf("--- 銘柄 %s の詳細情報 ---\n", detailStockCode)
		fmt.Printf("PER:        %s\n", rec.PER)
		fmt.Printf("PBR:        %s\n", rec.PBR)
		fmt.Printf("配当利回り: %s\n", rec.DividendYield)
		fmt.Printf("現在値:     %s\n", types.FloatString(rec.CurrentPrice))
		fmt.Printf("52週高値:   %s\n", types.FloatString(rec.WeekHigh))
		fmt.Printf("52週安値:   %s\n", types.FloatString(rec.WeekLow))
		fmt.Printf("指標:       %s\n", rec.IndicatorString())

		return nil
	},
}

func init() {
	detailCmd.Flags().StringVarP(&detailStockCode, "code", "c", "", "取得対象の銘柄コード")

	detailCmd.MarkFlagRequired("code")
}
