package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shouni/go-earnings-calendar/pkg/calendar"
)

// ページ一覧の対象URLを保持するフラグ変数
var pagesSeedURL string

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "シードURLのページネーションを解決し、全ページのURLを表示します",
	Long: `シードページのナビゲーションリンクからページ数を判定し、
取得対象となる全ページのURLをページ番号の昇順で表示します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		seedURL := pagesSeedURL
		if seedURL == "" {
			seedURL = appConfig.SeedURL
		}

		client := GetGlobalClient()
		if client == nil {
			return fmt.Errorf("HTTPクライアントが初期化されていません。rootコマンドのPreRunを確認してください")
		}

		doc, err := client.FetchDocument(context.Background(), seedURL)
		if err != nil {
			return fmt.Errorf("シードページの取得エラー: %w", err)
		}

		pageURLs := calendar.ResolvePageURLs(doc, seedURL)
		fmt.Printf("--- ページネーション解決結果 (%d ページ) ---\n", len(pageURLs))
		for i, pageURL := range pageURLs {
			fmt.Printf("[%d] %s\n", i+1, pageURL)
		}

		return nil
	},
}

func init() {
	pagesCmd.Flags().StringVarP(&pagesSeedURL, "url", "u", "", "解決対象のシードURL（省略時は設定値）")
}
