// Package crawler defines the program record model and the contracts shared by the
// fetch, extract, render, and persistence subsystems.
package crawler

import (
	"fmt"
	"time"
)

// Source identifies one of the crawled announcement sites.
type Source string

// Supported sources.
const (
	SourceKStartup Source = "kstartup"
	SourceBizinfo  Source = "bizinfo"
)

// Sources lists every supported source in crawl order.
func Sources() []Source {
	return []Source{SourceKStartup, SourceBizinfo}
}

// ParseSource validates a raw source name.
func ParseSource(raw string) (Source, error) {
	switch s := Source(raw); s {
	case SourceKStartup, SourceBizinfo:
		return s, nil
	default:
		return "", fmt.Errorf("unknown source %q", raw)
	}
}

// Maximum stored lengths, in runes.
const (
	MaxTitleLen        = 500
	MaxDescriptionLen  = 5000
	MaxEligibilityLen  = 2000
	MaxShortFieldLen   = 200
	MaxNarrativeLen    = 1000
	MaxFundingLen      = 200
	MaxOrganizationLen = 200
)

// Fields is the partial program record accumulated across extraction tiers.
// Empty strings and nil pointers mean "absent".
type Fields struct {
	// Listing.
	Category         string     `json:"category,omitempty"`
	Title            string     `json:"title,omitempty"`
	Organization     string     `json:"organization,omitempty"`
	Region           string     `json:"region,omitempty"`
	ApplicationStart *time.Time `json:"applicationStart,omitempty"`
	ApplicationEnd   *time.Time `json:"applicationEnd,omitempty"`
	ViewCount        *int       `json:"viewCount,omitempty"`

	// Detail.
	Description   string `json:"description,omitempty"`
	Eligibility   string `json:"eligibility,omitempty"`
	SupportField  string `json:"supportField,omitempty"`
	FundingAmount string `json:"fundingAmount,omitempty"`

	// Matching.
	TargetAge       string `json:"targetAge,omitempty"`
	TargetRegion    string `json:"targetRegion,omitempty"`
	TargetType      string `json:"targetType,omitempty"`
	CompanyAge      string `json:"companyAge,omitempty"`
	InstitutionType string `json:"institutionType,omitempty"`
	TargetIndustry  string `json:"targetIndustry,omitempty"`

	// Enrichment (LLM only).
	AISummary       string `json:"aiSummary,omitempty"`
	TargetDetail    string `json:"targetDetail,omitempty"`
	ExclusionDetail string `json:"exclusionDetail,omitempty"`
}

// ProgramRecord is the canonical stored entity, keyed by (Source, SourceID).
type ProgramRecord struct {
	Source   Source `json:"source"`
	SourceID string `json:"sourceId"`
	URL      string `json:"url"`
	Fields
	LLMProcessed bool      `json:"llmProcessed"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Key returns the natural key of the record.
func (r ProgramRecord) Key() Key {
	return Key{Source: r.Source, SourceID: r.SourceID}
}

// Key is the natural key of a program record.
type Key struct {
	Source   Source
	SourceID string
}

func (k Key) String() string {
	return string(k.Source) + ":" + k.SourceID
}

// ListItem is one announcement discovered on a list page.
type ListItem struct {
	SourceID string
	URL      string
	Fields
}

// Enrichment carries the LLM-only narrative fields rewritten by a re-extraction pass.
type Enrichment struct {
	AISummary       string
	TargetDetail    string
	ExclusionDetail string
	LLMProcessed    bool
}

// CrawlOptions are the per-invocation knobs of a crawl pass.
type CrawlOptions struct {
	MaxPages        int    `json:"maxPages"`
	FetchDetails    bool   `json:"fetchDetails"`
	EnableRendering bool   `json:"enableRendering"`
	TargetID        string `json:"targetId,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

// ReextractOptions are the knobs of a batch re-extraction pass.
type ReextractOptions struct {
	Limit int  `json:"limit"`
	Force bool `json:"force"`
}

// Result summarizes one crawl or re-extraction pass.
type Result struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	Errors  []string `json:"errors,omitempty"`
}

// AddError appends a formatted, human-readable error entry.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Image is one encoded screenshot handed to the vision strategy.
type Image struct {
	MIMEType string
	// Base64 holds the standard base64 encoding of the image bytes.
	Base64 string
}
