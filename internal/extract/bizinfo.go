package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// DefaultBizinfoBaseURL is the 기업마당 site root.
const DefaultBizinfoBaseURL = "https://www.bizinfo.go.kr"

const bizinfoBoard = "/web/lay1/bbs/S1T122C128/AS/74"

// BizinfoCategories is the support-field column vocabulary of the 기업마당 board.
var BizinfoCategories = []string{"금융", "기술", "인력", "수출", "내수", "창업", "경영", "기타"}

var bizinfoIDRe = regexp.MustCompile(`pblancId=(PBLN_\d+)`)

var bizinfoDetail = DetailLayout{
	Pairs: []LabelPair{
		{Container: ".view_cont ul li", Label: "span.s_title", Value: "div.txt"},
		{Container: ".category_wrap li", Label: ".s_title", Value: ".txt"},
	},
	ContentSelectors: []string{".view_cont", ".view_box", ".board_view", "#container"},
	TitleSelectors:   []string{".view_top h2", ".title_area h2", ".sub_cont h2.title"},
	SiteNames:        []string{"기업마당", "기업마당(Bizinfo)", "Bizinfo"},
}

// Bizinfo extracts announcements from the 기업마당 support-program board.
type Bizinfo struct {
	BaseURL string
}

var _ Strategy = (*Bizinfo)(nil)

// Source implements Strategy.
func (b *Bizinfo) Source() crawler.Source { return crawler.SourceBizinfo }

// ListURL implements Strategy.
func (b *Bizinfo) ListURL(page int) string {
	return fmt.Sprintf("%s%s/list.do?cpage=%d&rows=15", b.BaseURL, bizinfoBoard, page)
}

// DetailURL implements Strategy.
func (b *Bizinfo) DetailURL(sourceID string) string {
	return fmt.Sprintf("%s%s/view.do?pblancId=%s", b.BaseURL, bizinfoBoard, sourceID)
}

// ContentSelector implements Strategy.
func (b *Bizinfo) ContentSelector() string { return ".view_cont" }

// TotalPages implements Strategy.
func (b *Bizinfo) TotalPages(body []byte) int { return totalPages(body) }

// ParseDetail implements Strategy.
func (b *Bizinfo) ParseDetail(body []byte, pageURL string) crawler.Fields {
	return parseDetail(body, pageURL, bizinfoDetail)
}

// bizinfoColumns maps list table columns by header label.
type bizinfoColumns struct {
	category, period, organization, ministry, views int
}

func readBizinfoColumns(table *goquery.Selection) bizinfoColumns {
	cols := bizinfoColumns{category: -1, period: -1, organization: -1, ministry: -1, views: -1}
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		label := normalizeLabel(th.Text())
		switch {
		case strings.Contains(label, "지원분야"):
			cols.category = i
		case strings.Contains(label, "기간"):
			cols.period = i
		case strings.Contains(label, "수행기관"):
			cols.organization = i
		case strings.Contains(label, "소관부처"):
			cols.ministry = i
		case strings.Contains(label, "조회"):
			cols.views = i
		}
	})
	return cols
}

// ParseList implements Strategy.
func (b *Bizinfo) ParseList(body []byte) ([]crawler.ListItem, error) {
	doc, err := parseDocument("bizinfo list", body)
	if err != nil {
		return nil, err
	}
	seen := dedupe{}
	var items []crawler.ListItem
	doc.Find(`a[href*="pblancId="]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := bizinfoIDRe.FindStringSubmatch(href)
		if m == nil || !seen.first(m[1]) {
			return
		}
		id := m[1]
		row := a.Closest("tr")
		var f crawler.Fields
		if row.Length() > 0 {
			f = bizinfoRowFields(row, readBizinfoColumns(row.Closest("table")))
		} else {
			f = bizinfoLooseFields(a.Parent())
		}
		title := FlatText(a.Text())
		if t, ok := a.Attr("title"); ok && strings.TrimSpace(t) != "" && title == "" {
			title = FlatText(t)
		}
		f.Region, f.Title = SplitRegionTag(title)
		items = append(items, crawler.ListItem{SourceID: id, URL: b.DetailURL(id), Fields: f})
	})
	return items, nil
}

func bizinfoRowFields(row *goquery.Selection, cols bizinfoColumns) crawler.Fields {
	cells := row.Find("td")
	cell := func(i int) string {
		if i < 0 || i >= cells.Length() {
			return ""
		}
		return FlatText(cells.Eq(i).Text())
	}

	var f crawler.Fields
	if c := cell(cols.category); c != "" {
		f.Category = MatchCategory(c, BizinfoCategories)
		if f.Category == "" {
			f.Category = c
		}
	}
	period := cell(cols.period)
	if period == "" {
		period = FlatText(row.Text())
	}
	f.ApplicationStart, f.ApplicationEnd = ParseDateRange(period)
	f.Organization = cell(cols.organization)
	if f.Organization == "" {
		f.Organization = cell(cols.ministry)
	}
	if v := strings.ReplaceAll(cell(cols.views), ",", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.ViewCount = &n
		}
	}
	return f
}

func bizinfoLooseFields(container *goquery.Selection) crawler.Fields {
	text := FlatText(container.Text())
	var f crawler.Fields
	f.Category = MatchCategory(text, BizinfoCategories)
	f.ApplicationStart, f.ApplicationEnd = ParseDateRange(text)
	return f
}
