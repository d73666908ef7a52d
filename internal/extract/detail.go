package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// LabelPair locates label/value pairs inside repeated container elements.
type LabelPair struct {
	Container string
	Label     string
	Value     string
}

// DetailLayout is the per-source description of a detail page.
type DetailLayout struct {
	Pairs []LabelPair
	// ContentSelectors are candidates for the largest plausible content container.
	ContentSelectors []string
	// TitleSelectors locate the announcement heading; og:title and <title> are tried after them.
	TitleSelectors []string
	// SiteNames are dropped from document titles such as "공고명 | 기업마당".
	SiteNames []string
}

var titleSeparatorRe = regexp.MustCompile(`\s*[|｜]\s*|\s+[-–:>]\s+`)

// minContentRunes is the smallest container text accepted as a description by the fallback pass.
const minContentRunes = 40

// ParseDetailDocument runs the three label/table/content passes over a detail document.
// Missing structure yields absent fields; it never fails.
func ParseDetailDocument(doc *goquery.Document, body []byte, pageURL string, layout DetailLayout) crawler.Fields {
	c := &detailCollector{}
	c.fields.Region, c.fields.Title = SplitRegionTag(detailTitle(doc, layout))

	for _, pair := range layout.Pairs {
		doc.Find(pair.Container).Each(func(_ int, s *goquery.Selection) {
			label := s.Find(pair.Label).First()
			value := s.Find(pair.Value).First()
			if label.Length() == 0 || value.Length() == 0 {
				return
			}
			c.assign(label.Text(), value)
		})
	}

	if c.fields.Description == "" && c.fields.Eligibility == "" {
		doc.Find("th").Each(func(_ int, th *goquery.Selection) {
			c.assign(th.Text(), th.NextFiltered("td"))
		})
		doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
			c.assign(dt.Text(), dt.NextFiltered("dd"))
		})
	}

	if c.fields.Description == "" {
		c.fields.Description = largestContent(doc, layout.ContentSelectors)
	}
	if c.fields.Description == "" {
		c.fields.Description = readableText(body, pageURL)
	}

	if c.fields.FundingAmount == "" {
		c.fields.FundingAmount = FindFundingAmount(c.fields.Description + "\n" + c.fields.Eligibility)
	}
	if c.fields.SupportField != "" {
		if normalized := NormalizeSupportField(c.fields.SupportField); normalized != "" {
			c.fields.SupportField = normalized
		}
	}
	return c.fields
}

func detailTitle(doc *goquery.Document, layout DetailLayout) string {
	for _, sel := range layout.TitleSelectors {
		if title := FlatText(doc.Find(sel).First().Text()); title != "" {
			return title
		}
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if title := trimSiteName(og, layout.SiteNames); title != "" {
			return title
		}
	}
	return trimSiteName(doc.Find("title").First().Text(), layout.SiteNames)
}

// trimSiteName removes site-name segments from a document title; a bare site name yields "".
func trimSiteName(title string, siteNames []string) string {
	var kept []string
	for _, part := range titleSeparatorRe.Split(FlatText(title), -1) {
		part = strings.TrimSpace(part)
		if part == "" || slices.ContainsFunc(siteNames, func(name string) bool { return strings.EqualFold(part, name) }) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, " - ")
}

type detailCollector struct {
	fields crawler.Fields
}

func (c *detailCollector) assign(rawLabel string, value *goquery.Selection) {
	if value == nil || value.Length() == 0 {
		return
	}
	field := classifyLabel(rawLabel)
	if field == labelNone {
		return
	}
	text := SelectionText(value)
	if text == "" {
		return
	}
	flat := FlatText(text)
	f := &c.fields
	switch field {
	case labelPeriod:
		start, end := ParseDateRange(flat)
		if f.ApplicationStart == nil {
			f.ApplicationStart = start
		}
		if f.ApplicationEnd == nil {
			f.ApplicationEnd = end
		}
	case labelEligibility:
		setIfEmpty(&f.Eligibility, text)
	case labelDescription:
		setIfEmpty(&f.Description, text)
	case labelOrganization:
		setIfEmpty(&f.Organization, flat)
	case labelFunding:
		if amount := FindFundingAmount(flat); amount != "" {
			setIfEmpty(&f.FundingAmount, amount)
		} else {
			setIfEmpty(&f.FundingAmount, flat)
		}
	case labelSupportField:
		setIfEmpty(&f.SupportField, flat)
	case labelCompanyAge:
		setIfEmpty(&f.CompanyAge, flat)
	case labelTargetAge:
		setIfEmpty(&f.TargetAge, flat)
	case labelTargetType:
		setIfEmpty(&f.TargetType, flat)
	case labelInstitutionType:
		setIfEmpty(&f.InstitutionType, flat)
	case labelIndustry:
		setIfEmpty(&f.TargetIndustry, flat)
	case labelRegion:
		setIfEmpty(&f.TargetRegion, flat)
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func largestContent(doc *goquery.Document, selectors []string) string {
	best := ""
	bestLen := 0
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := SelectionText(s)
			if n := utf8.RuneCountInString(text); n > bestLen {
				best, bestLen = text, n
			}
		})
	}
	if bestLen < minContentRunes {
		return ""
	}
	return best
}

func readableText(body []byte, pageURL string) string {
	if len(body) == 0 {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return ""
	}
	text := CleanText(article.TextContent)
	if utf8.RuneCountInString(text) < minContentRunes {
		return ""
	}
	return strings.TrimSpace(text)
}
