// Package calendar は、決算カレンダーの一覧ページからの
// ページネーション解決と行データ抽出を提供します。
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BaseDomain は、一覧サイトのベースオリジンです。相対hrefの解決に使用します。
const BaseDomain = "https://kabuyoho.jp"

var (
	pageLinkPattern   = regexp.MustCompile(`/calender\?.*page=\d+`)
	pageNumberPattern = regexp.MustCompile(`page=(\d+)`)
)

// ResolvePageURLs は、シードページのナビゲーションリンクから全ページのURLを導出します。
// リンクが1つも見つからない場合、ページ数は1（シードのみ）です。
// 1ページ目は常にシードURLそのもの（pageパラメータなし）にマップされます。
// 取得済みの内容を別URLで再取得しないためです。
// 戻り値はページ番号の昇順で、URL文字列として重複排除されています。
func ResolvePageURLs(doc *goquery.Document, seedURL string) []string {
	pageNumbers := make(map[int]struct{})

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !pageLinkPattern.MatchString(href) {
			return
		}
		if m := pageNumberPattern.FindStringSubmatch(href); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				pageNumbers[n] = struct{}{}
			}
		}
	})

	maxPage := 1
	for n := range pageNumbers {
		if n > maxPage {
			maxPage = n
		}
	}

	urls := make([]string, 0, maxPage)
	seen := make(map[string]struct{}, maxPage)

	for page := 1; page <= maxPage; page++ {
		pageURL := seedURL
		if page > 1 {
			pageURL = buildPageURL(seedURL, page)
		}
		if _, dup := seen[pageURL]; dup {
			continue
		}
		seen[pageURL] = struct{}{}
		urls = append(urls, pageURL)
	}

	return urls
}

// buildPageURL は、シードURLに page クエリパラメータを挿入したURLを合成します。
// フラグメント（#...）は常にURLの末尾に残ります。
func buildPageURL(seedURL string, page int) string {
	base := seedURL
	fragment := ""
	if idx := strings.Index(seedURL, "#"); idx >= 0 {
		base = seedURL[:idx]
		fragment = seedURL[idx:]
	}

	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}

	pageURL := fmt.Sprintf("%s%spage=%d%s", base, separator, page, fragment)
	if strings.HasPrefix(pageURL, "/") {
		pageURL = BaseDomain + pageURL
	}
	return pageURL
}
