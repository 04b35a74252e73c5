// Package report は、補完済みレコード列の整列とファイル・コンソールへの出力を提供します。
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shouni/go-earnings-calendar/pkg/types"
)

// csvHeader は、出力ファイルの列順を定義します。
var csvHeader = []string{
	"会社名", "銘柄コード", "進捗率", "詳細ページURL",
	"PER", "PBR", "配当利回り", "現在値", "52週高値", "52週安値", "指標",
}

// recordRow は、1レコードのシリアライズ形状です。CSVとJSONで同一の項目を持ちます。
type recordRow struct {
	Name          string `json:"会社名"`
	Code          string `json:"銘柄コード"`
	ProgressRate  string `json:"進捗率"`
	DetailURL     string `json:"詳細ページURL"`
	PER           string `json:"PER"`
	PBR           string `json:"PBR"`
	DividendYield string `json:"配当利回り"`
	CurrentPrice  string `json:"現在値"`
	WeekHigh      string `json:"52週高値"`
	WeekLow       string `json:"52週安値"`
	Indicator     string `json:"指標"`
}

func rowOf(rec *types.CompanyRecord) recordRow {
	return recordRow{
		Name:          rec.Name,
		Code:          rec.Code,
		ProgressRate:  rec.ProgressRateString(),
		DetailURL:     rec.DetailURL,
		PER:           rec.PER,
		PBR:           rec.PBR,
		DividendYield: rec.DividendYield,
		CurrentPrice:  types.FloatString(rec.CurrentPrice),
		WeekHigh:      types.FloatString(rec.WeekHigh),
		WeekLow:       types.FloatString(rec.WeekLow),
		Indicator:     rec.IndicatorString(),
	}
}

func (r recordRow) fields() []string {
	return []string{
		r.Name, r.Code, r.ProgressRate, r.DetailURL,
		r.PER, r.PBR, r.DividendYield, r.CurrentPrice, r.WeekHigh, r.WeekLow, r.Indicator,
	}
}

// ----------------------------------------------------------------------
// 整列
// ----------------------------------------------------------------------

var yieldNumberPattern = regexp.MustCompile(`[0-9]+\.?[0-9]*`)

// SortByDividendYield は、配当利回りの降順にレコードを整列します。
// 未取得（N/A）のレコードは末尾に回ります。同値の場合は一覧の元の順序を保ちます。
func SortByDividendYield(records []*types.CompanyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return dividendYieldValue(records[i]) > dividendYieldValue(records[j])
	})
}

func dividendYieldValue(rec *types.CompanyRecord) float64 {
	if rec.DividendYield == types.Unavailable {
		return -1
	}
	token := yieldNumberPattern.FindString(strings.ReplaceAll(rec.DividendYield, ",", ""))
	if token == "" {
		return -1
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return -1
	}
	return value
}

// ----------------------------------------------------------------------
// ファイル出力
// ----------------------------------------------------------------------

// WriteCSV は、レコード列をCSVファイルへ全上書きで保存します。
// Excelでの文字化けを避けるため、先頭にUTF-8のBOMを書き込みます。
func WriteCSV(filename string, records []*types.CompanyRecord) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("CSVファイルの作成に失敗しました (%s): %w", filename, err)
	}
	defer f.Close()

	if _, err := f.WriteString("\uFEFF"); err != nil {
		return fmt.Errorf("BOMの書き込みに失敗しました: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗しました: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rowOf(rec).fields()); err != nil {
			return fmt.Errorf("CSV行の書き込みに失敗しました: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("CSVの書き出しに失敗しました: %w", err)
	}
	return nil
}

// WriteJSON は、レコード列をJSON配列としてファイルへ全上書きで保存します。
func WriteJSON(filename string, records []*types.CompanyRecord) error {
	rows := make([]recordRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rowOf(rec))
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("JSONのシリアライズに失敗しました: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("JSONファイルの書き込みに失敗しました (%s): %w", filename, err)
	}
	return nil
}

// ----------------------------------------------------------------------
// コンソール出力
// ----------------------------------------------------------------------

// PrintSummary は、整列済みレコードの上位limit件をテーブル形式で表示します。
func PrintSummary(w io.Writer, records []*types.CompanyRecord, limit int) {
	fmt.Fprintln(w, strings.Repeat("=", 120))
	fmt.Fprintln(w, "配当利回りの高い順")
	fmt.Fprintln(w, strings.Repeat("=", 120))
	fmt.Fprintf(w, "%-25s %-10s %-10s %-10s %-10s %-12s %-12s %-12s %-12s %-10s\n",
		"会社名", "銘柄コード", "進捗率", "PER", "PBR", "配当利回り", "現在値", "52週高値", "52週安値", "指標")
	fmt.Fprintln(w, strings.Repeat("=", 120))

	count := min(limit, len(records))
	for _, rec := range records[:count] {
		row := rowOf(rec)
		fmt.Fprintf(w, "%-25s %-10s %-10s %-10s %-10s %-12s %-12s %-12s %-12s %-10s\n",
			row.Name, row.Code, row.ProgressRate, row.PER, row.PBR,
			row.DividendYield, row.CurrentPrice, row.WeekHigh, row.WeekLow, row.Indicator)
	}

	if len(records) > count {
		fmt.Fprintf(w, "... 他 %d 件\n", len(records)-count)
	}
}
