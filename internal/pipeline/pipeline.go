// Package pipeline は、決算カレンダー抽出の全体処理
// （ページネーション解決 → 並列ページ取得 → 行抽出 → 詳細補完）を束ねます。
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/shouni/go-earnings-calendar/pkg/batch"
	"github.com/shouni/go-earnings-calendar/pkg/calendar"
	"github.com/shouni/go-earnings-calendar/pkg/fetch"
	"github.com/shouni/go-earnings-calendar/pkg/types"
)

// Pipeline は、取得クライアントと補完スケジューラを束ねた実行単位です。
// キャッシュは Pipeline の実行スコープ（fetch.Client）に閉じています。
type Pipeline struct {
	fetcher   *fetch.Client
	scheduler *batch.Scheduler
}

// New は Pipeline を初期化します。
func New(fetcher *fetch.Client, scheduler *batch.Scheduler) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("pipeline.New: fetcher cannot be nil")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("pipeline.New: scheduler cannot be nil")
	}
	return &Pipeline{fetcher: fetcher, scheduler: scheduler}, nil
}

// Collect は、シードURLから全ページのレコードを収集します。
// シードページの取得失敗は設定エラーとして致命的であり、エラーを返します。
// 2ページ目以降の取得失敗はそのページのスキップとして扱われます。
// 戻り値は一覧の出現順（ページ順 × 行順）を保ち、全ページを通して重複排除されています。
func (p *Pipeline) Collect(ctx context.Context, seedURL string) ([]*types.CompanyRecord, error) {
	seedDoc, err := p.fetcher.FetchDocument(ctx, seedURL)
	if err != nil {
		return nil, fmt.Errorf("シードページの取得に失敗しました (URL: %s): %w", seedURL, err)
	}

	pageURLs := calendar.ResolvePageURLs(seedDoc, seedURL)
	log.Printf("合計 %d ページを処理します", len(pageURLs))

	// ページ単位で並列取得する。1ページ目はキャッシュ済みのため再取得は発生しない。
	// 同時リクエスト数の上限は fetch.Client のセマフォが保証する。
	pageRecords := make([][]*types.CompanyRecord, len(pageURLs))
	var wg sync.WaitGroup

	for i, pageURL := range pageURLs {
		wg.Add(1)
		go func(idx int, url string) {
			defer wg.Done()

			doc, err := p.fetcher.FetchDocument(ctx, url)
			if err != nil {
				log.Printf("ページ %d の取得に失敗しました。スキップします: %v", idx+1, err)
				return
			}
			pageRecords[idx] = calendar.ExtractRows(doc)
		}(i, pageURL)
	}

	wg.Wait()

	// ページ順にマージし、全ページを通して重複排除する
	var records []*types.CompanyRecord
	seen := make(map[string]struct{})

	for i, pageRecs := range pageRecords {
		newCount := 0
		for _, rec := range pageRecs {
			key := rec.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			records = append(records, rec)
			newCount++
		}
		log.Printf("ページ %d/%d から %d 件のデータを抽出しました（新規: %d 件）",
			i+1, len(pageURLs), len(pageRecs), newCount)
	}

	return records, nil
}

// Run は、収集と詳細補完を続けて実行します。
// 補完は元のレコードをその場で書き換えるため、戻り値は一覧の出現順のままです。
func (p *Pipeline) Run(ctx context.Context, seedURL string) ([]*types.CompanyRecord, error) {
	records, err := p.Collect(ctx, seedURL)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	log.Printf("全ページから合計 %d 件のデータを抽出しました。詳細情報を取得します", len(records))
	p.scheduler.EnrichAll(ctx, records)

	return records, nil
}
