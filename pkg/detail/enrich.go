// Package detail は、会社詳細ページ・チャートページからの
// 評価指標（PER・PBR・配当利回り）と52週価格情報の補完を提供します。
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

	"github.com/shouni/go-earnings-calendar/pkg/types"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、URLから解析済みドキュメントを取得する機能のインターフェースを定義します。
// Enricher は、この抽象に依存します。
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) (*goquery.Document, error)
}

// Enricher は、Fetcher を使ってレコードの補完プロセスを管理します。
// 1つのレコードの補完失敗はログに記録されるのみで、バッチ全体を中断させません。
type Enricher struct {
	fetcher Fetcher
}

// NewEnricher は、新しいEnricherのインスタンスを生成します。
func NewEnricher(fetcher Fetcher) (*Enricher, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("detail.NewEnricher: Fetcher cannot be nil")
	}
	return &Enricher{fetcher: fetcher}, nil
}

// Enrich は、レコードの評価指標と52週価格情報をベストエフォートで補完します。
// キャッシュ済みドキュメントに対しては冪等です。
func (e *Enricher) Enrich(ctx context.Context, rec *types.CompanyRecord) {
	e.EnrichValuation(ctx, rec)
	e.EnrichPrices(ctx, rec)
}

// ----------------------------------------------------------------------
// 評価指標の抽出（フォールバックチェーン）
// ----------------------------------------------------------------------

// valuation は、抽出中の評価指標を保持します。各フィールドは既定値の間のみ上書き可能です。
type valuation struct {
	per   string
	pbr   string
	yield string
}

func (v *valuation) complete() bool {
	return v.per != types.Unavailable && v.pbr != types.Unavailable && v.yield != types.Unavailable
}

// valuationStrategy は、1つのドキュメント形状に対する独立した抽出戦略です。
// 優先順に適用され、既に埋まったフィールドを後の戦略が上書きすることはありません。
type valuationStrategy func(doc *goquery.Document, v *valuation)

// 優先順: 定義リスト → 2カラムテーブル → 全文の正規表現スキャン
var valuationStrategies = []valuationStrategy{
	valuationFromDefinitionLists,
	valuationFromTables,
	valuationFromText,
}

// EnrichValuation は、詳細ページからPER・PBR・配当利回りを補完します。
// DetailURLが空の場合は何もしません。取得・解析の失敗時はフィールドを既定値のまま残します。
func (e *Enricher) EnrichValuation(ctx context.Context, rec *types.CompanyRecord) {
	if rec.DetailURL == "" {
		return
	}

	doc, err := e.fetcher.FetchDocument(ctx, rec.DetailURL)
	if err != nil {
		log.Printf("詳細ページの取得エラー (%s): %v", rec.DetailURL, err)
		return
	}

	v := valuation{per: rec.PER, pbr: rec.PBR, yield: rec.DividendYield}
	for _, strategy := range valuationStrategies {
		if v.complete() {
			break
		}
		strategy(doc, &v)
	}

	rec.PER = v.per
	rec.PBR = v.pbr
	rec.DividendYield = v.yield
}

// valuationFromDefinitionLists は、dt/ddが隣接する定義リストからラベル照合で抽出します。
// 構造: <dl><dt><p>PER</p></dt><dd><p>14.1<span>倍</span></p></dd></dl>
func valuationFromDefinitionLists(doc *goquery.Document, v *valuation) {
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dt := dl.Find("dt").First()
		dd := dl.Find("dd").First()
		if dt.Length() == 0 || dd.Length() == 0 {
			return
		}

		valueElem := dd.Find("p").First()
		if valueElem.Length() == 0 {
			return
		}

		label := textutils.NormalizeText(dt.Text())
		num := firstNumber(valueElem.Text())
		if num == nil {
			return
		}

		v.apply(label, *num, false)
	})
}

// valuationFromTables は、1列目がラベル・2列目が値の2カラムテーブル行から抽出します。
// ラベルはPER/PBRの日本語の別名（株価収益率・株価純資産倍率）とも照合します。
func valuationFromTables(doc *goquery.Document, v *valuation) {
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}

		label := textutils.NormalizeText(cells.Eq(0).Text())
		num := firstNumber(cells.Eq(1).Text())
		if num == nil {
			return
		}

		v.apply(label, *num, true)
	})
}

var (
	perTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`PER[：:]\s*([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`株価収益率[：:]\s*([0-9,]+\.?[0-9]*)`),
	}
	pbrTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`PBR[：:]\s*([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`株価純資産倍率[：:]\s*([0-9,]+\.?[0-9]*)`),
	}
	yieldTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`配当利回り[：:]\s*([0-9,]+\.?[0-9]*)\s*%`),
		regexp.MustCompile(`利回り[：:]\s*([0-9,]+\.?[0-9]*)\s*%`),
	}
)

// valuationFromText は、全文を「ラベル:値」パターンでスキャンし、未設定の項目のみ埋めます。
// 区切りには半角・全角のコロンの両方を許容します。
func valuationFromText(doc *goquery.Document, v *valuation) {
	pageText := doc.Text()

	if v.per == types.Unavailable {
		if num := matchFirstNumber(pageText, perTextPatterns); num != nil && *num > 0 {
			v.per = types.FloatString(num)
		}
	}
	if v.pbr == types.Unavailable {
		if num := matchFirstNumber(pageText, pbrTextPatterns); num != nil && *num > 0 {
			v.pbr = types.FloatString(num)
		}
	}
	if v.yield == types.Unavailable {
		if num := matchFirstNumber(pageText, yieldTextPatterns); num != nil && *num >= 0 {
			v.yield = types.FloatString(num) + "%"
		}
	}
}

// apply は、ラベルに対応する未設定フィールドへ値を設定します。
// withSynonyms が真の場合、PER/PBRの日本語別名ラベルも照合対象になります。
// 数値の健全性フィルター: PER・PBRは正、配当利回りは非負。
func (v *valuation) apply(label string, num float64, withSynonyms bool) {
	isPER := strings.Contains(label, "PER") || (withSynonyms && strings.Contains(label, "株価収益率"))
	isPBR := strings.Contains(label, "PBR") || (withSynonyms && strings.Contains(label, "株価純資産倍率"))
	isYield := strings.Contains(label, "配当利回り") || strings.Contains(label, "利回り")

	if isPER && v.per == types.Unavailable && num > 0 {
		v.per = types.FloatString(&num)
	}
	if isPBR && v.pbr == types.Unavailable && num > 0 {
		v.pbr = types.FloatString(&num)
	}
	if isYield && v.yield == types.Unavailable && num >= 0 {
		v.yield = types.FloatString(&num) + "%"
	}
}

// ----------------------------------------------------------------------
// 数値抽出ヘルパー
// ----------------------------------------------------------------------

var numberPattern = regexp.MustCompile(`[0-9]+\.?[0-9]*`)

// firstNumber は、テキスト中の最初の数値トークンを返します（カンマは除去）。
// 「倍」「%」などの単位はこの時点で切り捨てられます。
func firstNumber(text string) *float64 {
	cleaned := strings.ReplaceAll(textutils.NormalizeText(text), ",", "")
	token := numberPattern.FindString(cleaned)
	if token == "" {
		return nil
	}
	num, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil
	}
	return &num
}

// matchFirstNumber は、パターン群を順に試し、最初に一致した数値を返します。
func matchFirstNumber(text string, patterns []*regexp.Regexp) *float64 {
	for _, pattern := range patterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		token := strings.ReplaceAll(m[1], ",", "")
		if num, err := strconv.ParseFloat(token, 64); err == nil {
			return &num
		}
	}
	return nil
}
