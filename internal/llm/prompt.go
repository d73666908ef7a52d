package llm

import "strings"

const instructions = `당신은 정부 창업지원사업 공고를 분석하는 도우미입니다.
아래 공고 내용에서 지원 자격과 조건을 찾아 JSON으로만 답하세요.

규칙:
- companyAge: 창업 업력 조건 (예: "3년 미만", "7년 이내"). 조건이 없으면 "제한없음".
- targetRegion: 지원 대상 지역 (예: "서울", "부산, 경남"). 지역 제한이 없으면 "전국".
- targetAge: 대표자 연령 조건 (예: "만 39세 이하"). 조건이 없으면 "제한없음".
- targetIndustry: 대상 업종 또는 기술 분야. 제한이 없으면 "제한없음".
- targetType: 지원 대상 유형 (예: "예비창업자", "중소기업"). 제한이 없으면 "제한없음".
- supportField: 지원 분야 (사업화, 기술개발(R&D), 시설·공간·보육, 멘토링·컨설팅·교육, 판로·해외진출, 인력, 융자·보증, 행사·네트워크, 정책자금 중 하나).
- summary: 사업 내용을 3문장 이내로 요약.
- targetDetail: 신청 자격을 구체적으로 정리. 없으면 "해당없음".
- exclusionDetail: 신청 제외 대상. 없으면 "해당없음".
- applicationStart, applicationEnd: 신청 기간의 시작일과 마감일 (YYYY-MM-DD). 알 수 없으면 빈 문자열.
추측하지 말고 공고에 적힌 내용만 사용하세요.`

const imageInstruction = `첨부된 이미지들은 하나의 공고 문서를 위에서 아래로 나눈 것입니다. 모든 이미지를 하나의 문서로 보고 분석하세요.`

// TextPrompt builds the prompt for the text strategy.
func TextPrompt(eligibility, description string) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	if strings.TrimSpace(eligibility) != "" {
		b.WriteString("[신청 자격]\n")
		b.WriteString(strings.TrimSpace(eligibility))
		b.WriteString("\n\n")
	}
	if strings.TrimSpace(description) != "" {
		b.WriteString("[사업 내용]\n")
		b.WriteString(strings.TrimSpace(description))
		b.WriteString("\n")
	}
	return b.String()
}

// VisionPrompt builds the prompt for the vision strategy.
func VisionPrompt() string {
	return instructions + "\n\n" + imageInstruction
}

var stringProp = map[string]any{"type": "string"}

// Schema is the JSON schema the response must satisfy.
func Schema() map[string]any {
	props := map[string]any{}
	required := []string{
		"companyAge", "targetRegion", "targetAge", "targetIndustry", "targetType",
		"supportField", "summary", "targetDetail", "exclusionDetail",
		"applicationStart", "applicationEnd",
	}
	for _, name := range required {
		props[name] = stringProp
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
