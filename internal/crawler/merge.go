package crawler

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Overlay copies every present field of src onto f, replacing existing values.
func (f *Fields) Overlay(src Fields) {
	overlayString(&f.Category, src.Category)
	overlayString(&f.Title, src.Title)
	overlayString(&f.Organization, src.Organization)
	overlayString(&f.Region, src.Region)
	overlayTime(&f.ApplicationStart, src.ApplicationStart)
	overlayTime(&f.ApplicationEnd, src.ApplicationEnd)
	if src.ViewCount != nil {
		f.ViewCount = src.ViewCount
	}
	overlayString(&f.Description, src.Description)
	overlayString(&f.Eligibility, src.Eligibility)
	overlayString(&f.SupportField, src.SupportField)
	overlayString(&f.FundingAmount, src.FundingAmount)
	overlayString(&f.TargetAge, src.TargetAge)
	overlayString(&f.TargetRegion, src.TargetRegion)
	overlayString(&f.TargetType, src.TargetType)
	overlayString(&f.CompanyAge, src.CompanyAge)
	overlayString(&f.InstitutionType, src.InstitutionType)
	overlayString(&f.TargetIndustry, src.TargetIndustry)
	overlayString(&f.AISummary, src.AISummary)
	overlayString(&f.TargetDetail, src.TargetDetail)
	overlayString(&f.ExclusionDetail, src.ExclusionDetail)
}

// Fill copies present fields of src into f only where f is still absent.
func (f *Fields) Fill(src Fields) {
	fillString(&f.Category, src.Category)
	fillString(&f.Title, src.Title)
	fillString(&f.Organization, src.Organization)
	fillString(&f.Region, src.Region)
	fillTime(&f.ApplicationStart, src.ApplicationStart)
	fillTime(&f.ApplicationEnd, src.ApplicationEnd)
	if f.ViewCount == nil {
		f.ViewCount = src.ViewCount
	}
	fillString(&f.Description, src.Description)
	fillString(&f.Eligibility, src.Eligibility)
	fillString(&f.SupportField, src.SupportField)
	fillString(&f.FundingAmount, src.FundingAmount)
	fillString(&f.TargetAge, src.TargetAge)
	fillString(&f.TargetRegion, src.TargetRegion)
	fillString(&f.TargetType, src.TargetType)
	fillString(&f.CompanyAge, src.CompanyAge)
	fillString(&f.InstitutionType, src.InstitutionType)
	fillString(&f.TargetIndustry, src.TargetIndustry)
	fillString(&f.AISummary, src.AISummary)
	fillString(&f.TargetDetail, src.TargetDetail)
	fillString(&f.ExclusionDetail, src.ExclusionDetail)
}

// MissingCritical lists the critical matching fields that are still absent.
func (f Fields) MissingCritical() []string {
	var missing []string
	if strings.TrimSpace(f.CompanyAge) == "" {
		missing = append(missing, "companyAge")
	}
	if strings.TrimSpace(f.TargetRegion) == "" {
		missing = append(missing, "targetRegion")
	}
	if f.ApplicationStart == nil {
		missing = append(missing, "applicationStart")
	}
	if f.ApplicationEnd == nil {
		missing = append(missing, "applicationEnd")
	}
	return missing
}

// CriticalMissing reports whether any critical field is absent.
func (f Fields) CriticalMissing() bool {
	return len(f.MissingCritical()) > 0
}

// Truncate clamps every text field to its stored maximum length.
func (f *Fields) Truncate() {
	f.Title = TruncateRunes(f.Title, MaxTitleLen)
	f.Category = TruncateRunes(f.Category, MaxShortFieldLen)
	f.Organization = TruncateRunes(f.Organization, MaxOrganizationLen)
	f.Region = TruncateRunes(f.Region, MaxShortFieldLen)
	f.Description = TruncateRunes(f.Description, MaxDescriptionLen)
	f.Eligibility = TruncateRunes(f.Eligibility, MaxEligibilityLen)
	f.SupportField = TruncateRunes(f.SupportField, MaxShortFieldLen)
	f.FundingAmount = TruncateRunes(f.FundingAmount, MaxFundingLen)
	f.TargetAge = TruncateRunes(f.TargetAge, MaxShortFieldLen)
	f.TargetRegion = TruncateRunes(f.TargetRegion, MaxShortFieldLen)
	f.TargetType = TruncateRunes(f.TargetType, MaxShortFieldLen)
	f.CompanyAge = TruncateRunes(f.CompanyAge, MaxShortFieldLen)
	f.InstitutionType = TruncateRunes(f.InstitutionType, MaxShortFieldLen)
	f.TargetIndustry = TruncateRunes(f.TargetIndustry, MaxShortFieldLen)
	f.AISummary = TruncateRunes(f.AISummary, MaxNarrativeLen)
	f.TargetDetail = TruncateRunes(f.TargetDetail, MaxNarrativeLen)
	f.ExclusionDetail = TruncateRunes(f.ExclusionDetail, MaxNarrativeLen)
}

// TruncateRunes cuts s to at most limit runes.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func overlayString(dst *string, src string) {
	if strings.TrimSpace(src) != "" {
		*dst = src
	}
}

func fillString(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
		*dst = src
	}
}

func overlayTime(dst **time.Time, src *time.Time) {
	if src != nil {
		*dst = src
	}
}

func fillTime(dst **time.Time, src *time.Time) {
	if *dst == nil && src != nil {
		*dst = src
	}
}
