// Package batch は、多数のレコードに対する詳細補完を
// バッチ境界と同時実行上限の2段構えで駆動します。
package batch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shouni/go-earnings-calendar/pkg/types"
)

const (
	// DefaultBatchSize は、1バッチあたりのレコード数のデフォルトです。
	DefaultBatchSize = 50
	// DefaultMaxConcurrency は、バッチ内の最大同時補完数のデフォルトです。
	DefaultMaxConcurrency = 10
	// DefaultInterBatchDelay は、バッチ間のスリープ時間のデフォルトです。
	DefaultInterBatchDelay = 100 * time.Millisecond
)

// Enricher は、1レコードの補完機能のインターフェースを定義します。
type Enricher interface {
	Enrich(ctx context.Context, rec *types.CompanyRecord)
}

// Scheduler は、バッチ境界（全件完了待ち + バッチ間スリープ）と
// バッチ内セマフォの2段構造で補完を駆動します。
// この構造は、I/O待ちを並列化しつつ取得元サーバーへのバースト負荷を抑えるためのものです。
type Scheduler struct {
	enricher        Enricher
	batchSize       int
	maxConcurrency  int
	interBatchDelay time.Duration

	sleep func(time.Duration) // テストで差し替え可能
}

// NewScheduler は Scheduler を初期化します。0以下の値にはデフォルトが適用されます。
func NewScheduler(enricher Enricher, batchSize, maxConcurrency int, interBatchDelay time.Duration) *Scheduler {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if interBatchDelay <= 0 {
		interBatchDelay = DefaultInterBatchDelay
	}
	return &Scheduler{
		enricher:        enricher,
		batchSize:       batchSize,
		maxConcurrency:  maxConcurrency,
		interBatchDelay: interBatchDelay,
		sleep:           time.Sleep,
	}
}

// EnrichAll は、レコード列を連続したバッチに分割して補完を実行します。
// 各バッチの全件完了（成功または個別に吸収された失敗）を待ってから次のバッチへ進み、
// 最後のバッチの後を除いてバッチ間でスリープします。
// 個々の補完失敗はEnricher側で吸収されるため、バッチ全体が中断されることはありません。
func (s *Scheduler) EnrichAll(ctx context.Context, records []*types.CompanyRecord) {
	total := len(records)

	for start := 0; start < total; start += s.batchSize {
		end := min(start+s.batchSize, total)
		s.runBatch(ctx, records[start:end])

		log.Printf("%d/%d 件の詳細情報を処理しました", end, total)

		if end < total {
			s.sleep(s.interBatchDelay)
		}
	}
}

// runBatch は、1バッチ内の全レコードを同時実行上限つきで補完します。
func (s *Scheduler) runBatch(ctx context.Context, records []*types.CompanyRecord) {
	var wg sync.WaitGroup

	// バッファ付きチャネルをセマフォとして使用し、同時実行数を制限する
	semaphore := make(chan struct{}, s.maxConcurrency)

	for _, rec := range records {
		wg.Add(1)

		// リソース（スロット）の確保。上限件数実行中の場合はここでブロックして待機。
		semaphore <- struct{}{}

		go func(r *types.CompanyRecord) {
			defer wg.Done()
			defer func() { <-semaphore }()

			// 各レコードはちょうど1つのタスクが補完するため、書き込み競合は発生しない
			s.enricher.Enrich(ctx, r)
		}(rec)
	}

	wg.Wait()
}
