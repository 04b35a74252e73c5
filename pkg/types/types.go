package types

import (
	"fmt"
	"strconv"
)

// Unavailable は、取得できなかった項目を表す既定値です。
// 一度実際の値で埋められた項目が、この既定値に戻されることはありません。
const Unavailable = "N/A"

// CompanyRecord は、決算カレンダーの1行（1社）から抽出されたデータを保持します。
// これは、RowExtractorの出力、Enricher・Reporterの入力として利用されます。
type CompanyRecord struct {
	Name         string   // 会社名（トリム済み）
	Code         string   // 銘柄コード（数字のみ、空の場合あり）
	ProgressRate *float64 // 進捗率（0〜200の範囲、未取得ならnil）
	DetailURL    string   // 詳細ページの絶対URL（空の場合あり）

	// 詳細ページから補完される評価指標。未取得の間は Unavailable を保持します。
	PER           string
	PBR           string
	DividendYield string

	// チャートページから補完される52週価格情報。未取得ならnil。
	WeekHigh     *float64
	WeekLow      *float64
	CurrentPrice *float64

	// Indicator は (現在値 - 52週安値) ÷ (52週高値 - 52週安値) で導出される
	// [0,1] の位置指標です。分母が正でない場合は計算されず、nilのままです。
	Indicator *float64
}

// NewCompanyRecord は、評価指標を既定値で初期化したレコードを生成します。
func NewCompanyRecord(name, code, detailURL string, progressRate *float64) *CompanyRecord {
	return &CompanyRecord{
		Name:          name,
		Code:          code,
		ProgressRate:  progressRate,
		DetailURL:     detailURL,
		PER:           Unavailable,
		PBR:           Unavailable,
		DividendYield: Unavailable,
	}
}

// DedupKey は、全ページを通した重複排除に使う複合キー（会社名 + 銘柄コード）を返します。
func (r *CompanyRecord) DedupKey() string {
	return r.Name + "_" + r.Code
}

// ProgressRateString は進捗率を "59.4%" 形式で返します。未取得なら Unavailable。
func (r *CompanyRecord) ProgressRateString() string {
	if r.ProgressRate == nil {
		return Unavailable
	}
	return fmt.Sprintf("%.1f%%", *r.ProgressRate)
}

// IndicatorString は位置指標を小数4桁の文字列で返します。未取得なら Unavailable。
func (r *CompanyRecord) IndicatorString() string {
	if r.Indicator == nil {
		return Unavailable
	}
	return fmt.Sprintf("%.4f", *r.Indicator)
}

// FloatString は価格などのオプション数値を最短の10進表記で返します。未取得なら Unavailable。
func FloatString(v *float64) string {
	if v == nil {
		return Unavailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
