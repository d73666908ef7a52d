package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/extract"
)

// Sentinels mark a field the model judged unrestricted or inapplicable. They are distinct from "".
const (
	Nationwide    = "전국"
	Unrestricted  = "제한없음"
	NotApplicable = "해당없음"
)

// Result is the normalized structured output of one extraction call.
type Result struct {
	CompanyAge       string `json:"companyAge"`
	TargetRegion     string `json:"targetRegion"`
	TargetAge        string `json:"targetAge"`
	TargetIndustry   string `json:"targetIndustry"`
	TargetType       string `json:"targetType"`
	SupportField     string `json:"supportField"`
	Summary          string `json:"summary"`
	TargetDetail     string `json:"targetDetail"`
	ExclusionDetail  string `json:"exclusionDetail"`
	ApplicationStart string `json:"applicationStart"`
	ApplicationEnd   string `json:"applicationEnd"`

	// Parsed is false when the response could not be decoded and every field holds its default.
	Parsed bool `json:"-"`
}

// DefaultResult is the fully defaulted record returned for an unparseable response.
func DefaultResult() Result {
	var r Result
	r.applyDefaults()
	return r
}

// ParseResult decodes a model response. It never fails: malformed input yields DefaultResult.
func ParseResult(raw string) Result {
	var fields map[string]any
	if err := json.Unmarshal([]byte(stripFence(raw)), &fields); err != nil || fields == nil {
		return DefaultResult()
	}
	r := Result{
		CompanyAge:       stringValue(fields["companyAge"]),
		TargetRegion:     stringValue(fields["targetRegion"]),
		TargetAge:        stringValue(fields["targetAge"]),
		TargetIndustry:   stringValue(fields["targetIndustry"]),
		TargetType:       stringValue(fields["targetType"]),
		SupportField:     stringValue(fields["supportField"]),
		Summary:          stringValue(fields["summary"]),
		TargetDetail:     stringValue(fields["targetDetail"]),
		ExclusionDetail:  stringValue(fields["exclusionDetail"]),
		ApplicationStart: stringValue(fields["applicationStart"]),
		ApplicationEnd:   stringValue(fields["applicationEnd"]),
		Parsed:           true,
	}
	r.applyDefaults()
	return r
}

func (r *Result) applyDefaults() {
	defaultTo(&r.TargetRegion, Nationwide)
	defaultTo(&r.CompanyAge, Unrestricted)
	defaultTo(&r.TargetAge, Unrestricted)
	defaultTo(&r.TargetIndustry, Unrestricted)
	defaultTo(&r.TargetType, Unrestricted)
	defaultTo(&r.Summary, NotApplicable)
	defaultTo(&r.TargetDetail, NotApplicable)
	defaultTo(&r.ExclusionDetail, NotApplicable)
}

// Informative returns only the values carrying real information: sentinels and blanks are dropped.
func (r Result) Informative() crawler.Fields {
	f := crawler.Fields{
		CompanyAge:      informative(r.CompanyAge),
		TargetRegion:    informative(r.TargetRegion),
		TargetAge:       informative(r.TargetAge),
		TargetIndustry:  informative(r.TargetIndustry),
		TargetType:      informative(r.TargetType),
		SupportField:    extract.NormalizeSupportField(informative(r.SupportField)),
		AISummary:       informative(r.Summary),
		TargetDetail:    informative(r.TargetDetail),
		ExclusionDetail: informative(r.ExclusionDetail),
	}
	f.ApplicationStart = parseDate(r.ApplicationStart)
	f.ApplicationEnd = extract.EndOfDay(parseDate(r.ApplicationEnd))
	return f
}

func parseDate(s string) *time.Time {
	if t := extract.ParseISODate(strings.TrimSpace(s)); t != nil {
		return t
	}
	return extract.ParseDate(s)
}

// Fields returns every normalized value, sentinels included.
func (r Result) Fields() crawler.Fields {
	f := r.Informative()
	f.CompanyAge = r.CompanyAge
	f.TargetRegion = r.TargetRegion
	f.TargetAge = r.TargetAge
	f.TargetIndustry = r.TargetIndustry
	f.TargetType = r.TargetType
	f.AISummary = r.Summary
	f.TargetDetail = r.TargetDetail
	f.ExclusionDetail = r.ExclusionDetail
	return f
}

// Enrichment returns the narrative fields written by a re-extraction pass.
func (r Result) Enrichment() crawler.Enrichment {
	return crawler.Enrichment{
		AISummary:       crawler.TruncateRunes(r.Summary, crawler.MaxNarrativeLen),
		TargetDetail:    crawler.TruncateRunes(r.TargetDetail, crawler.MaxNarrativeLen),
		ExclusionDetail: crawler.TruncateRunes(r.ExclusionDetail, crawler.MaxNarrativeLen),
		LLMProcessed:    r.Parsed,
	}
}

// IsSentinel reports whether v is one of the "unspecified" markers.
func IsSentinel(v string) bool {
	switch strings.TrimSpace(v) {
	case Nationwide, Unrestricted, NotApplicable:
		return true
	}
	return false
}

func informative(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || IsSentinel(v) {
		return ""
	}
	return v
}

func defaultTo(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

// stringValue coerces a decoded JSON value to text; models sometimes answer with arrays.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
