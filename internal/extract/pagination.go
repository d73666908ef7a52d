package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxDiscoveredPages bounds how deep a crawl follows a listing, regardless of what the site advertises.
const MaxDiscoveredPages = 10

const paginationContainers = ".paging, .pagination, .page_list, .board_pager, .pager, #paging"

var (
	pageParamRe = regexp.MustCompile(`(?i)[?&](?:page|cpage|pageIndex|currentPage|pageNo)=(\d+)`)
	pageCallRe  = regexp.MustCompile(`(?i)\w*page\w*\(\s*'?(\d+)'?\s*\)`)
)

// DiscoverTotalPages scans page links for the highest page number, clamped to [1, MaxDiscoveredPages].
func DiscoverTotalPages(doc *goquery.Document) int {
	highest := 1
	note := func(n int) {
		if n > highest {
			highest = n
		}
	}

	pager := doc.Find(paginationContainers)
	pager.Find("a, span, strong").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > 0 {
			note(n)
		}
	})

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		onclick, _ := s.Attr("onclick")
		for _, payload := range []string{href, onclick} {
			if m := pageParamRe.FindStringSubmatch(payload); m != nil {
				n, _ := strconv.Atoi(m[1])
				note(n)
			}
			if m := pageCallRe.FindStringSubmatch(payload); m != nil {
				n, _ := strconv.Atoi(m[1])
				note(n)
			}
		}
	})

	return ClampPages(highest)
}

// ClampPages bounds a requested or discovered page count to [1, MaxDiscoveredPages].
func ClampPages(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxDiscoveredPages:
		return MaxDiscoveredPages
	default:
		return n
	}
}
