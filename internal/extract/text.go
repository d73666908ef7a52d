package extract

import (
	stdhtml "html"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Residual script fragments that survive tag stripping when sites inline code in text nodes.
var scriptNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<!--.*?-->`),
	regexp.MustCompile(`(?s)/\*.*?\*/`),
	regexp.MustCompile(`(?m)(^|[\s;])//[^\n]*`),
	regexp.MustCompile(`(?s)function\s*[\w$]*\s*\([^)]*\)\s*\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`),
	regexp.MustCompile(`\b(?:var|let|const)\s+[A-Za-z_$][\w$]*\s*=\s*[^;\n]*;?`),
	regexp.MustCompile(`(?:jQuery|\$)\s*\([^)]*\)(?:\s*\.\s*[A-Za-z_$][\w$]*\s*\([^)]*\))*\s*;?`),
	regexp.MustCompile(`\b(?:document|window|location)\.[^;\n]*;`),
	// Bare calls only at a statement boundary, so prose like "R&D(연구개발);" survives.
	regexp.MustCompile(`(?m)(^|[;{}])(?:[ \t]*[A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*\s*\([^()\n]*\)\s*;)+`),
}

var (
	strayPunct  = regexp.MustCompile(`[{};]`)
	inlineSpace = regexp.MustCompile(`[ \t\r\f\v\x{00a0}\x{3000}]+`)
)

const blockElements = "p, div, li, tr, dd, dt, h1, h2, h3, h4, h5, h6, table, ul, ol"

// CleanHTML converts an HTML fragment into plain text: script, style, and iframe content is dropped,
// tags are stripped, entities are decoded, and residual script noise is removed.
func CleanHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CleanText(stdhtml.UnescapeString(strictPolicy.Sanitize(fragment)))
	}
	return cleanSelection(doc.Selection)
}

// SelectionText is CleanHTML applied to a parsed selection.
func SelectionText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return cleanSelection(sel.Clone())
}

func cleanSelection(sel *goquery.Selection) string {
	sel.Find("script, style, iframe, noscript, template").Remove()
	sel.Find("br").ReplaceWithHtml("\n")
	sel.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		raw, err := goquery.OuterHtml(s)
		if err != nil {
			raw = s.Text()
		}
		parts = append(parts, raw)
	})
	stripped := strictPolicy.Sanitize(strings.Join(parts, "\n"))
	return CleanText(stdhtml.UnescapeString(stripped))
}

// CleanText strips inline script noise and collapses whitespace, keeping one line per block.
func CleanText(s string) string {
	for _, re := range scriptNoise {
		s = re.ReplaceAllString(s, "$1")
	}
	s = strayPunct.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// FlatText collapses all whitespace, including newlines, to single spaces.
func FlatText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeLabel strips whitespace and decoration so label fragments can be matched by substring.
func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case strings.ContainsRune("·ㆍ:：*•-()[]<>「」○◦▶■□", r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
