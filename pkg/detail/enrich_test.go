package detail_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-earnings-calendar/pkg/detail"
	"github.com/shouni/go-earnings-calendar/pkg/types"
)

// ======================================================================
// モック (Mock) の定義
// ======================================================================

// MockFetcher はテスト用の detail.Fetcher インターフェースの実装です。
// URLごとのHTMLを保持し、FetchDocumentの呼び出し回数を記録します。
type MockFetcher struct {
	mu         sync.Mutex
	pages      map[string]string
	fetchError error
	callCount  int
}

func (m *MockFetcher) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.fetchError != nil {
		return nil, m.fetchError
	}
	html, ok := m.pages[url]
	if !ok {
		return nil, errors.New("no such page: " + url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (m *MockFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

const detailURL = "https://kabuyoho.jp/reportTop?bcode=1802"

func newRecord() *types.CompanyRecord {
	return types.NewCompanyRecord("大林組", "1802", detailURL, nil)
}

// ======================================================================
// テスト関数
// ======================================================================

func TestNewEnricher(t *testing.T) {
	t.Run("success_with_valid_fetcher", func(t *testing.T) {
		enricher, err := detail.NewEnricher(&MockFetcher{})
		assert.NoError(t, err)
		assert.NotNil(t, enricher)
	})

	t.Run("error_with_nil_fetcher", func(t *testing.T) {
		enricher, err := detail.NewEnricher(nil)
		assert.Error(t, err)
		assert.Nil(t, enricher)
		assert.Contains(t, err.Error(), "Fetcher cannot be nil")
	})
}

func TestEnrichValuation(t *testing.T) {
	testCases := []struct {
		name          string
		html          string
		expectedPER   string
		expectedPBR   string
		expectedYield string
	}{
		{
			name: "定義リストから全項目を抽出",
			html: `<html><body>
<dl><dt><p>PER</p></dt><dd><p>14.1<span>倍</span></p></dd></dl>
<dl><dt><p>PBR</p></dt><dd><p>1.2<span>倍</span></p></dd></dl>
<dl><dt><p>配当利回り</p></dt><dd><p>2.75<span>%</span></p></dd></dl>
</body></html>`,
			expectedPER:   "14.1",
			expectedPBR:   "1.2",
			expectedYield: "2.75%",
		},
		{
			name: "2カラムテーブルから日本語の別名ラベルで抽出",
			html: `<html><body><table>
<tr><td>株価収益率</td><td>14.1倍</td></tr>
<tr><td>株価純資産倍率</td><td>1.2倍</td></tr>
<tr><td>配当利回り</td><td>2.75%</td></tr>
</table></body></html>`,
			expectedPER:   "14.1",
			expectedPBR:   "1.2",
			expectedYield: "2.75%",
		},
		{
			name: "全文の正規表現スキャンで抽出_全角コロン",
			html: `<html><body><p>PER：14.1倍、PBR：1.2倍、配当利回り：2.75%</p></body></html>`,
			expectedPER:   "14.1",
			expectedPBR:   "1.2",
			expectedYield: "2.75%",
		},
		{
			name: "先の戦略で埋まった項目は後の戦略で上書きされない",
			html: `<html><body>
<dl><dt><p>PER</p></dt><dd><p>14.1<span>倍</span></p></dd></dl>
<table>
<tr><td>PER</td><td>99.9倍</td></tr>
<tr><td>PBR</td><td>1.2倍</td></tr>
</table>
</body></html>`,
			expectedPER:   "14.1",
			expectedPBR:   "1.2",
			expectedYield: types.Unavailable,
		},
		{
			name: "健全性フィルター_PERとPBRは正の値のみ",
			html: `<html><body><table>
<tr><td>PER</td><td>0</td></tr>
<tr><td>PBR</td><td>0</td></tr>
<tr><td>配当利回り</td><td>0%</td></tr>
</table></body></html>`,
			expectedPER:   types.Unavailable,
			expectedPBR:   types.Unavailable,
			expectedYield: "0%",
		},
		{
			name:          "該当要素のないページでは既定値のまま",
			html:          `<html><body><p>会社概要のみ</p></body></html>`,
			expectedPER:   types.Unavailable,
			expectedPBR:   types.Unavailable,
			expectedYield: types.Unavailable,
		},
		{
			name: "カンマ付きの値はカンマを除去して抽出",
			html: `<html><body>
<dl><dt><p>PER</p></dt><dd><p>1,234.5<span>倍</span></p></dd></dl>
</body></html>`,
			expectedPER:   "1234.5",
			expectedPBR:   types.Unavailable,
			expectedYield: types.Unavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &MockFetcher{pages: map[string]string{detailURL: tc.html}}
			enricher, err := detail.NewEnricher(fetcher)
			require.NoError(t, err)

			rec := newRecord()
			enricher.EnrichValuation(context.Background(), rec)

			assert.Equal(t, tc.expectedPER, rec.PER)
			assert.Equal(t, tc.expectedPBR, rec.PBR)
			assert.Equal(t, tc.expectedYield, rec.DividendYield)
		})
	}
}

// TestEnrichValuation_FetchFailure は、取得失敗時にフィールドが既定値のまま残り、
// エラーが呼び出し元へ伝播しないことを確認します。
func TestEnrichValuation_FetchFailure(t *testing.T) {
	fetcher := &MockFetcher{fetchError: errors.New("network timeout")}
	enricher, err := detail.NewEnricher(fetcher)
	require.NoError(t, err)

	rec := newRecord()
	enricher.EnrichValuation(context.Background(), rec)

	assert.Equal(t, types.Unavailable, rec.PER)
	assert.Equal(t, types.Unavailable, rec.PBR)
	assert.Equal(t, types.Unavailable, rec.DividendYield)
}

// TestEnrichValuation_NoDetailURL は、DetailURLが空の場合に取得が発生しないことを確認します。
func TestEnrichValuation_NoDetailURL(t *testing.T) {
	fetcher := &MockFetcher{pages: map[string]string{}}
	enricher, err := detail.NewEnricher(fetcher)
	require.NoError(t, err)

	rec := types.NewCompanyRecord("大林組", "1802", "", nil)
	enricher.EnrichValuation(context.Background(), rec)

	assert.Equal(t, 0, fetcher.calls())
	assert.Equal(t, types.Unavailable, rec.PER)
}

// TestEnrich_Idempotent は、同じレコードへの2回目の補完が
// 1回目と同一の結果を返すこと（値の二重加工がないこと）を確認します。
func TestEnrich_Idempotent(t *testing.T) {
	html := `<html><body>
<dl><dt><p>PER</p></dt><dd><p>14.1<span>倍</span></p></dd></dl>
<dl><dt><p>配当利回り</p></dt><dd><p>2.75<span>%</span></p></dd></dl>
</body></html>`
	fetcher := &MockFetcher{pages: map[string]string{detailURL: html}}
	enricher, err := detail.NewEnricher(fetcher)
	require.NoError(t, err)

	rec := newRecord()
	enricher.Enrich(context.Background(), rec)
	first := *rec

	enricher.Enrich(context.Background(), rec)
	assert.Equal(t, first, *rec)
}
