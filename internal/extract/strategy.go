// Package extract turns source-site list and detail HTML into partial program records.
// Each source site is one Strategy; markup drift is contained to that implementation.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// Strategy is the per-source structural extractor.
type Strategy interface {
	Source() crawler.Source
	ListURL(page int) string
	DetailURL(sourceID string) string
	// ParseList returns announcements in page order, deduplicated by id. The error is a
	// *crawler.ParseError only when the body cannot be read as HTML at all.
	ParseList(body []byte) ([]crawler.ListItem, error)
	ParseDetail(body []byte, pageURL string) crawler.Fields
	TotalPages(body []byte) int
	// ContentSelector is the primary content element used by the rendering tier.
	ContentSelector() string
}

// New returns the strategy for source rooted at baseURL.
func New(source crawler.Source, baseURL string) (Strategy, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	switch source {
	case crawler.SourceKStartup:
		if baseURL == "" {
			baseURL = DefaultKStartupBaseURL
		}
		return &KStartup{BaseURL: baseURL}, nil
	case crawler.SourceBizinfo:
		if baseURL == "" {
			baseURL = DefaultBizinfoBaseURL
		}
		return &Bizinfo{BaseURL: baseURL}, nil
	default:
		return nil, fmt.Errorf("new strategy: unknown source %q", source)
	}
}

func parseDocument(what string, body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &crawler.ParseError{What: what, Err: err}
	}
	return doc, nil
}

func totalPages(body []byte) int {
	doc, err := parseDocument("pagination", body)
	if err != nil {
		return 1
	}
	return DiscoverTotalPages(doc)
}

func parseDetail(body []byte, pageURL string, layout DetailLayout) crawler.Fields {
	doc, err := parseDocument("detail", body)
	if err != nil {
		return crawler.Fields{}
	}
	return ParseDetailDocument(doc, body, pageURL, layout)
}

type dedupe map[string]struct{}

func (d dedupe) first(id string) bool {
	if _, ok := d[id]; ok {
		return false
	}
	d[id] = struct{}{}
	return true
}
