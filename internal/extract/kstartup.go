package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// DefaultKStartupBaseURL is the K-Startup site root.
const DefaultKStartupBaseURL = "https://www.k-startup.go.kr"

const kstartupBoard = "/web/contents/bizpbanc-ongoing.do"

// KStartupCategories is the category vocabulary shown on K-Startup list items.
var KStartupCategories = []string{
	"사업화", "기술개발(R&D)", "시설·공간·보육", "멘토링·컨설팅·교육",
	"판로·해외진출", "행사·네트워크", "인력", "융자", "글로벌", "정책자금",
}

var (
	kstartupIDRe       = regexp.MustCompile(`go_view\(\s*'?(\d+)'?\s*\)|pbancSn=(\d+)`)
	kstartupDeadlineRe = regexp.MustCompile(`마감일자\s*(\d{4}[-.]\d{1,2}[-.]\d{1,2})`)
	kstartupTitleRe    = regexp.MustCompile(`마감일자\s*\d{4}[-.]\d{1,2}[-.]\d{1,2}\s*(.+?)\s*조회`)
	kstartupViewsRe    = regexp.MustCompile(`조회\s*([\d,]+)`)
	kstartupOrgRe      = regexp.MustCompile(`(?:기관명|주관기관)\s*([^\s|]+)`)
)

var kstartupDetail = DetailLayout{
	Pairs: []LabelPair{
		{Container: ".information_list li, .information_list .dot_list", Label: ".tit", Value: ".txt"},
		{Container: ".bg_box li, .box_inner li", Label: ".tit", Value: ".txt"},
	},
	ContentSelectors: []string{".board_view", ".view_cont", ".information_wrap", "#contents"},
	TitleSelectors:   []string{".information_wrap .title h3", ".view_top .tit", ".board_view .title"},
	SiteNames:        []string{"K-Startup", "K-스타트업", "K-Startup 창업지원포털", "창업지원포털"},
}

// KStartup extracts announcements from the K-Startup ongoing-announcement board.
type KStartup struct {
	BaseURL string
}

var _ Strategy = (*KStartup)(nil)

// Source implements Strategy.
func (k *KStartup) Source() crawler.Source { return crawler.SourceKStartup }

// ListURL implements Strategy.
func (k *KStartup) ListURL(page int) string {
	return fmt.Sprintf("%s%s?schM=list&page=%d", k.BaseURL, kstartupBoard, page)
}

// DetailURL implements Strategy.
func (k *KStartup) DetailURL(sourceID string) string {
	return fmt.Sprintf("%s%s?schM=view&pbancSn=%s", k.BaseURL, kstartupBoard, sourceID)
}

// ContentSelector implements Strategy.
func (k *KStartup) ContentSelector() string { return ".board_view, .information_list" }

// TotalPages implements Strategy.
func (k *KStartup) TotalPages(body []byte) int { return totalPages(body) }

// ParseDetail implements Strategy.
func (k *KStartup) ParseDetail(body []byte, pageURL string) crawler.Fields {
	return parseDetail(body, pageURL, kstartupDetail)
}

// ParseList implements Strategy.
func (k *KStartup) ParseList(body []byte) ([]crawler.ListItem, error) {
	doc, err := parseDocument("kstartup list", body)
	if err != nil {
		return nil, err
	}
	seen := dedupe{}
	var items []crawler.ListItem
	doc.Find(`a[href*="go_view"], a[onclick*="go_view"], a[href*="pbancSn="]`).Each(func(_ int, a *goquery.Selection) {
		id := kstartupID(a)
		if id == "" || !seen.first(id) {
			return
		}
		container := a.Closest("li")
		if container.Length() == 0 {
			container = a
		}
		items = append(items, crawler.ListItem{
			SourceID: id,
			URL:      k.DetailURL(id),
			Fields:   kstartupListFields(a, container),
		})
	})
	return items, nil
}

func kstartupID(a *goquery.Selection) string {
	href, _ := a.Attr("href")
	onclick, _ := a.Attr("onclick")
	for _, payload := range []string{href, onclick} {
		if m := kstartupIDRe.FindStringSubmatch(payload); m != nil {
			if m[1] != "" {
				return m[1]
			}
			return m[2]
		}
	}
	return ""
}

func kstartupListFields(a, container *goquery.Selection) crawler.Fields {
	text := FlatText(SelectionText(container))

	title := FlatText(container.Find(".tit").First().Text())
	if title == "" {
		if m := kstartupTitleRe.FindStringSubmatch(text); m != nil {
			title = m[1]
		}
	}
	if title == "" {
		title = FlatText(a.Text())
	}
	region, title := SplitRegionTag(title)

	f := crawler.Fields{
		Title:    title,
		Region:   region,
		Category: MatchCategory(FlatText(container.Find(".flag").Text()), KStartupCategories),
	}
	if f.Category == "" {
		f.Category = MatchCategory(text, KStartupCategories)
	}
	f.ApplicationStart, f.ApplicationEnd = ParseDateRange(text)
	if f.ApplicationEnd == nil {
		if m := kstartupDeadlineRe.FindStringSubmatch(text); m != nil {
			f.ApplicationEnd = EndOfDay(ParseDate(m[1]))
		}
	}
	if m := kstartupViewsRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			f.ViewCount = &n
		}
	}
	if m := kstartupOrgRe.FindStringSubmatch(text); m != nil {
		f.Organization = strings.TrimSpace(m[1])
	}
	return f
}
