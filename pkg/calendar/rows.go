package calendar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textutils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-earnings-calendar/pkg/types"
)

const (
	// companyLinkSelector は、会社詳細ページへのアンカーを特定するセレクターです。
	companyLinkSelector = `a[href*="/reportTop?bcode="]`

	// 進捗率として妥当な範囲（パーセント）
	minProgressRate = 0
	maxProgressRate = 200
)

var (
	stockCodePattern       = regexp.MustCompile(`bcode=(\d+)`)
	progressRatePattern    = regexp.MustCompile(`^\d+\.\d+$`)
	progressPercentPattern = regexp.MustCompile(`^\d+\.\d+%$`)
)

// ExtractRows は、一覧ドキュメントの行から会社レコードの列を抽出します。
// 出力はドキュメント内の行順を保ち、dedupKey（会社名 + 銘柄コード）で重複排除されます。
// 会社詳細リンクを持たない行、会社名が得られない行は黙ってスキップされます。
func ExtractRows(doc *goquery.Document) []*types.CompanyRecord {
	var records []*types.CompanyRecord
	seen := make(map[string]struct{})

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		record := parseCompanyRow(row)
		if record == nil {
			return
		}
		key := record.DedupKey()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		records = append(records, record)
	})

	return records
}

// parseCompanyRow は1つの行要素から会社レコードを構築します。対象外の行はnilを返します。
func parseCompanyRow(row *goquery.Selection) *types.CompanyRecord {
	link := row.Find(companyLinkSelector).First()
	if link.Length() == 0 {
		return nil
	}

	fullText := textutils.NormalizeText(link.Text())
	href, _ := link.Attr("href")

	// 銘柄コードはリンクのbcodeパラメータを優先する
	code := ""
	if m := stockCodePattern.FindStringSubmatch(href); m != nil {
		code = m[1]
	}

	// "会社名 1234" 形式: 末尾トークンが数字のみなら銘柄コードとして切り離す
	name := fullText
	parts := strings.Fields(fullText)
	if len(parts) >= 2 && isAllDigits(parts[len(parts)-1]) {
		name = strings.Join(parts[:len(parts)-1], " ")
		if code == "" {
			code = parts[len(parts)-1]
		}
	}

	if name == "" {
		return nil
	}

	return types.NewCompanyRecord(name, code, buildDetailURL(href), findProgressRate(row))
}

// findProgressRate は、行内のセルを右から左へ走査し、最初に見つかった進捗率を返します。
// 進捗率は一覧レイアウト上、右端寄りの数値セルに現れる傾向があるため、
// 右からの最初の一致で打ち切ることで、より左の数値セル（金額や四半期表記）の誤読を避けます。
func findProgressRate(row *goquery.Selection) *float64 {
	cells := row.Find("td")
	for i := cells.Length() - 1; i >= 0; i-- {
		cellText := textutils.NormalizeText(cells.Eq(i).Text())
		if rate := ParseProgressRate(cellText); rate != nil {
			return rate
		}
	}
	return nil
}

// ParseProgressRate は、セルのテキストを進捗率として解釈します。
// "59.4" または "59.4%" の形式のみを受け付け、0〜200の範囲外はnilを返します。
func ParseProgressRate(cellText string) *float64 {
	switch {
	case progressRatePattern.MatchString(cellText):
		// そのまま数値
	case progressPercentPattern.MatchString(cellText):
		cellText = strings.TrimSuffix(cellText, "%")
	default:
		return nil
	}

	rate, err := strconv.ParseFloat(cellText, 64)
	if err != nil || rate < minProgressRate || rate > maxProgressRate {
		return nil
	}
	return &rate
}

// buildDetailURL は、hrefから詳細ページの絶対URLを構築します。
func buildDetailURL(href string) string {
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "/"):
		return BaseDomain + href
	case strings.HasPrefix(href, "http"):
		return href
	default:
		return BaseDomain + "/" + href
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
