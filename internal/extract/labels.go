package extract

import "strings"

type labelField int

const (
	labelNone labelField = iota
	labelPeriod
	labelEligibility
	labelDescription
	labelOrganization
	labelFunding
	labelSupportField
	labelCompanyAge
	labelTargetAge
	labelTargetType
	labelInstitutionType
	labelIndustry
	labelRegion
)

// labelFragments is checked in order; the first fragment contained in a normalized label decides its field.
var labelFragments = []struct {
	field     labelField
	fragments []string
}{
	{labelPeriod, []string{"신청기간", "접수기간", "모집기간", "공고기간"}},
	{labelEligibility, []string{"신청자격", "지원대상", "신청대상", "참여대상", "지원자격", "모집대상"}},
	{labelDescription, []string{"사업개요", "지원내용", "사업내용", "사업목적", "공고내용", "사업소개"}},
	{labelOrganization, []string{"주관기관", "운영기관", "소관부처", "수행기관", "전담기관", "담당기관", "기관명"}},
	{labelFunding, []string{"지원규모", "지원금액", "지원한도", "사업규모", "지원예산"}},
	{labelSupportField, []string{"지원분야", "사업분야"}},
	{labelCompanyAge, []string{"업력", "창업기간"}},
	{labelTargetAge, []string{"연령", "대상연령"}},
	{labelTargetType, []string{"대상유형", "신청유형"}},
	{labelInstitutionType, []string{"기관구분", "기관유형"}},
	{labelIndustry, []string{"업종"}},
	{labelRegion, []string{"지역"}},
}

func classifyLabel(raw string) labelField {
	label := normalizeLabel(raw)
	if label == "" {
		return labelNone
	}
	for _, entry := range labelFragments {
		for _, frag := range entry.fragments {
			if strings.Contains(label, frag) {
				return entry.field
			}
		}
	}
	return labelNone
}
