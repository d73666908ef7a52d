package extract

import (
	"regexp"
	"strings"
)

// Normalized support-field vocabulary.
const (
	FieldCommercialization = "사업화"
	FieldRnD               = "기술개발(R&D)"
	FieldSpace             = "시설·공간·보육"
	FieldMentoring         = "멘토링·컨설팅·교육"
	FieldMarket            = "판로·해외진출"
	FieldManpower          = "인력"
	FieldFinance           = "융자·보증"
	FieldNetwork           = "행사·네트워크"
	FieldPolicyFund        = "정책자금"
)

// supportFieldDictionary maps site tag strings onto the normalized vocabulary.
var supportFieldDictionary = map[string]string{
	"사업화":  FieldCommercialization,
	"창업":   FieldCommercialization,
	"기술개발": FieldRnD,
	"r&d":  FieldRnD,
	"기술":   FieldRnD,
	"시설":   FieldSpace,
	"공간":   FieldSpace,
	"보육":   FieldSpace,
	"멘토링":  FieldMentoring,
	"컨설팅":  FieldMentoring,
	"창업교육": FieldMentoring,
	"교육":   FieldMentoring,
	"경영":   FieldMentoring,
	"판로":   FieldMarket,
	"해외진출": FieldMarket,
	"글로벌":  FieldMarket,
	"수출":   FieldMarket,
	"내수":   FieldMarket,
	"인력":   FieldManpower,
	"융자":   FieldFinance,
	"보증":   FieldFinance,
	"금융":   FieldFinance,
	"행사":   FieldNetwork,
	"네트워크": FieldNetwork,
	"정책자금": FieldPolicyFund,
	"자금":   FieldPolicyFund,
}

// dictionaryOrder fixes lookup precedence so longer tags win over their substrings.
var dictionaryOrder = []string{
	"창업교육", "기술개발", "해외진출", "네트워크", "정책자금",
	"사업화", "r&d", "멘토링", "컨설팅", "글로벌",
	"창업", "기술", "시설", "공간", "보육", "교육", "경영", "판로", "수출", "내수",
	"인력", "융자", "보증", "금융", "행사", "자금",
}

// NormalizeSupportField maps a displayed tag onto the normalized vocabulary. Unknown tags yield "".
func NormalizeSupportField(tag string) string {
	key := strings.ToLower(normalizeLabel(tag))
	if key == "" {
		return ""
	}
	if v, ok := supportFieldDictionary[key]; ok {
		return v
	}
	for _, k := range dictionaryOrder {
		if strings.Contains(key, k) {
			return supportFieldDictionary[k]
		}
	}
	return ""
}

type inferenceTerm struct {
	term  string
	field string
}

// inferenceTerms are scanned in order against description and eligibility text.
var inferenceTerms = []inferenceTerm{
	{"사업화 자금", FieldCommercialization},
	{"사업화자금", FieldCommercialization},
	{"시제품", FieldCommercialization},
	{"연구개발", FieldRnD},
	{"R&D", FieldRnD},
	{"기술개발", FieldRnD},
	{"입주", FieldSpace},
	{"보육공간", FieldSpace},
	{"사무공간", FieldSpace},
	{"멘토링", FieldMentoring},
	{"컨설팅", FieldMentoring},
	{"액셀러레이팅", FieldMentoring},
	{"교육과정", FieldMentoring},
	{"해외진출", FieldMarket},
	{"수출", FieldMarket},
	{"판로", FieldMarket},
	{"인건비", FieldManpower},
	{"채용", FieldManpower},
	{"융자", FieldFinance},
	{"보증", FieldFinance},
	{"정책자금", FieldPolicyFund},
	{"데모데이", FieldNetwork},
	{"네트워킹", FieldNetwork},
}

// InferSupportField is the deterministic keyword pass over free text. It returns "" when nothing fires.
func InferSupportField(texts ...string) string {
	joined := strings.Join(texts, " ")
	if strings.TrimSpace(joined) == "" {
		return ""
	}
	for _, t := range inferenceTerms {
		if strings.Contains(joined, t.term) {
			return t.field
		}
	}
	return ""
}

// MatchCategory returns the first vocabulary entry contained in text.
func MatchCategory(text string, vocabulary []string) string {
	for _, c := range vocabulary {
		if strings.Contains(text, c) {
			return c
		}
	}
	return ""
}

var fundingRe = regexp.MustCompile(
	`(?:최대|최고|총|기업당|팀당|과제당)?\s*\d[\d,.]*\s*(?:조|억|천만|백만|만)?\s*(?:[\d,.]+\s*(?:천만|백만|만)\s*)?원`,
)

// FindFundingAmount scans text for the first currency amount, e.g. "최대 1억원".
func FindFundingAmount(text string) string {
	return strings.TrimSpace(fundingRe.FindString(text))
}

var regions = []string{
	"서울", "부산", "대구", "인천", "광주", "대전", "울산", "세종", "경기",
	"강원", "충북", "충남", "전북", "전남", "경북", "경남", "제주", "전국",
	"충청북도", "충청남도", "전라북도", "전라남도", "경상북도", "경상남도",
}

// IsRegion reports whether s names a known region.
func IsRegion(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range regions {
		if strings.Contains(s, r) {
			return true
		}
	}
	return false
}

var regionTagRe = regexp.MustCompile(`^\s*\[([^\]]{1,20})\]\s*`)

// SplitRegionTag removes a leading "[지역]" tag from a title. Non-region tags are left in place.
func SplitRegionTag(title string) (region, rest string) {
	title = FlatText(title)
	m := regionTagRe.FindStringSubmatch(title)
	if m == nil || !IsRegion(m[1]) {
		return "", title
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(title[len(m[0]):])
}
