package detail

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textutils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-earnings-calendar/pkg/calendar"
	"github.com/shouni/go-earnings-calendar/pkg/types"
)

// ChartURL は、銘柄コードからチャートページのURLを導出します。
func ChartURL(stockCode string) string {
	return fmt.Sprintf("%s/reportChart?bcode=%s", calendar.BaseDomain, stockCode)
}

// prices は、抽出中の52週価格情報を保持します。
type prices struct {
	high    *float64
	low     *float64
	current *float64
}

func (p *prices) complete() bool {
	return p.high != nil && p.low != nil && p.current != nil
}

// EnrichPrices は、チャートページから52週高値・安値・現在値を補完し、
// 3値が揃いかつ高値 > 安値の場合のみ位置指標を導出します。
// 分母が正でない場合、指標は0への丸めやクランプをせず未設定のまま残します。
// 銘柄コードが空の場合は何もしません。
func (e *Enricher) EnrichPrices(ctx context.Context, rec *types.CompanyRecord) {
	if rec.Code == "" {
		return
	}

	chartURL := ChartURL(rec.Code)
	doc, err := e.fetcher.FetchDocument(ctx, chartURL)
	if err != nil {
		log.Printf("52週高値・安値の取得エラー (銘柄コード: %s): %v", rec.Code, err)
		return
	}

	p := prices{high: rec.WeekHigh, low: rec.WeekLow, current: rec.CurrentPrice}
	pricesFromTables(doc, &p)
	if !p.complete() {
		pricesFromText(doc, &p)
	}

	rec.WeekHigh = p.high
	rec.WeekLow = p.low
	rec.CurrentPrice = p.current

	computeIndicator(rec)
}

// computeIndicator は (現在値 - 52週安値) ÷ (52週高値 - 52週安値) を設定します。
func computeIndicator(rec *types.CompanyRecord) {
	if rec.Indicator != nil {
		return
	}
	if rec.WeekHigh == nil || rec.WeekLow == nil || rec.CurrentPrice == nil {
		return
	}
	if *rec.WeekHigh <= *rec.WeekLow {
		return
	}
	indicator := (*rec.CurrentPrice - *rec.WeekLow) / (*rec.WeekHigh - *rec.WeekLow)
	rec.Indicator = &indicator
}

// pricesFromTables は、th要素のラベルを持つテーブル行から価格を抽出します。
// 値セル内の専用クラス（week52_high等）のspanを優先し、なければセル全体から数値を取り出します。
func pricesFromTables(doc *goquery.Document, p *prices) {
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		if th.Length() == 0 {
			return
		}

		label := textutils.NormalizeText(th.Text())
		td := row.Find("td").First()
		if td.Length() == 0 {
			return
		}

		if p.high == nil && strings.Contains(label, "52週高値") {
			p.high = priceFromCell(td, "week52_high")
		}
		if p.low == nil && strings.Contains(label, "52週安値") {
			p.low = priceFromCell(td, "week52_low")
		}
		if p.current == nil && strings.Contains(label, "現在値") {
			p.current = priceFromCell(td, "close_price")
		}
	})
}

// priceFromCell は、値セルから正の価格を取り出します。
func priceFromCell(td *goquery.Selection, spanClass string) *float64 {
	span := td.Find(fmt.Sprintf(`span[class*=%q]`, spanClass)).First()
	if span.Length() > 0 {
		cleaned := strings.ReplaceAll(textutils.NormalizeText(span.Text()), ",", "")
		if num, err := strconv.ParseFloat(cleaned, 64); err == nil && num > 0 {
			return &num
		}
		return nil
	}

	if num := firstNumber(td.Text()); num != nil && *num > 0 {
		return num
	}
	return nil
}

var (
	weekHighTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`52週高値[：:\s]*([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`52週.*高値[：:\s]*([0-9,]+\.?[0-9]*)`),
	}
	weekLowTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`52週安値[：:\s]*([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`52週.*安値[：:\s]*([0-9,]+\.?[0-9]*)`),
	}
	currentPriceTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`現在値[：:\s]*([0-9,]+\.?[0-9]*)`),
	}
)

// pricesFromText は、全文の正規表現スキャンで未設定の価格のみを埋めます。
func pricesFromText(doc *goquery.Document, p *prices) {
	pageText := doc.Text()

	if p.high == nil {
		if num := matchFirstNumber(pageText, weekHighTextPatterns); num != nil && *num > 0 {
			p.high = num
		}
	}
	if p.low == nil {
		if num := matchFirstNumber(pageText, weekLowTextPatterns); num != nil && *num > 0 {
			p.low = num
		}
	}
	if p.current == nil {
		if num := matchFirstNumber(pageText, currentPriceTextPatterns); num != nil && *num > 0 {
			p.current = num
		}
	}
}
