package detail_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-earnings-calendar/pkg/detail"
	"github.com/shouni/go-earnings-calendar/pkg/types"
)

func TestChartURL(t *testing.T) {
	assert.Equal(t, "https://kabuyoho.jp/reportChart?bcode=1802", detail.ChartURL("1802"))
}

func TestEnrichPrices(t *testing.T) {
	chartURL := detail.ChartURL("1802")

	testCases := []struct {
		name            string
		html            string
		expectedHigh    string
		expectedLow     string
		expectedCurrent string
		expectedInd     string
	}{
		{
			name: "専用クラスのspanから抽出_指標は0.5ちょうど",
			html: `<html><body><table>
<tr><th>現在値</th><td><span class="close_price">100</span>円</td></tr>
<tr><th>52週高値</th><td><span class="week52_high">150</span>円</td></tr>
<tr><th>52週安値</th><td><span class="week52_low">50</span>円</td></tr>
</table></body></html>`,
			expectedHigh:    "150",
			expectedLow:     "50",
			expectedCurrent: "100",
			expectedInd:     "0.5000",
		},
		{
			name: "高値と安値が等しい場合_指標は未設定のまま",
			html: `<html><body><table>
<tr><th>現在値</th><td><span class="close_price">100</span></td></tr>
<tr><th>52週高値</th><td><span class="week52_high">100</span></td></tr>
<tr><th>52週安値</th><td><span class="week52_low">100</span></td></tr>
</table></body></html>`,
			expectedHigh:    "100",
			expectedLow:     "100",
			expectedCurrent: "100",
			expectedInd:     types.Unavailable,
		},
		{
			name: "spanがない場合はセル全体から数値を抽出",
			html: `<html><body><table>
<tr><th>現在値</th><td>1,200円</td></tr>
<tr><th>52週高値</th><td>1,500.5円</td></tr>
<tr><th>52週安値</th><td>800円</td></tr>
</table></body></html>`,
			expectedHigh:    "1500.5",
			expectedLow:     "800",
			expectedCurrent: "1200",
			expectedInd:     "0.5710",
		},
		{
			name: "テーブルがない場合は全文スキャンで抽出",
			html: `<html><body><p>52週高値：150 52週安値：50 現在値：100</p></body></html>`,
			expectedHigh:    "150",
			expectedLow:     "50",
			expectedCurrent: "100",
			expectedInd:     "0.5000",
		},
		{
			name: "一部の値しか取れない場合_指標は未設定のまま",
			html: `<html><body><table>
<tr><th>52週高値</th><td><span class="week52_high">150</span></td></tr>
</table></body></html>`,
			expectedHigh:    "150",
			expectedLow:     types.Unavailable,
			expectedCurrent: types.Unavailable,
			expectedInd:     types.Unavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &MockFetcher{pages: map[string]string{chartURL: tc.html}}
			enricher, err := detail.NewEnricher(fetcher)
			require.NoError(t, err)

			rec := types.NewCompanyRecord("大林組", "1802", "", nil)
			enricher.EnrichPrices(context.Background(), rec)

			assert.Equal(t, tc.expectedHigh, types.FloatString(rec.WeekHigh))
			assert.Equal(t, tc.expectedLow, types.FloatString(rec.WeekLow))
			assert.Equal(t, tc.expectedCurrent, types.FloatString(rec.CurrentPrice))
			assert.Equal(t, tc.expectedInd, rec.IndicatorString())
		})
	}
}

// TestEnrichPrices_NoStockCode は、銘柄コードが空の場合に取得が発生しないことを確認します。
func TestEnrichPrices_NoStockCode(t *testing.T) {
	fetcher := &MockFetcher{pages: map[string]string{}}
	enricher, err := detail.NewEnricher(fetcher)
	require.NoError(t, err)

	rec := types.NewCompanyRecord("名無し", "", "", nil)
	enricher.EnrichPrices(context.Background(), rec)

	assert.Equal(t, 0, fetcher.calls())
	assert.Nil(t, rec.Indicator)
}
