package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanTextStripsScriptNoise(t *testing.T) {
	t.Parallel()

	in := "사업 개요\nvar x = 1; jQuery('#a').show();\n지원 내용"
	got := CleanText(in)
	require.Equal(t, "사업 개요\n지원 내용", got)
	require.NotContains(t, got, "{")
	require.NotContains(t, got, "}")
	require.NotContains(t, got, ";")
}

func TestCleanTextStripsFunctionsAndComments(t *testing.T) {
	t.Parallel()

	in := "function foo() { return 1; } 본문 <!-- hidden --> 계속\n// trailing note\n/* block */끝"
	require.Equal(t, "본문 계속\n끝", CleanText(in))
}

func TestCleanTextKeepsParentheticalProse(t *testing.T) {
	t.Parallel()

	in := "신청 안내\nfn_openPopup('apply');goList(1);\n지원분야: R&D(연구개발);\nR&D(연구개발); 사업화 지원"
	require.Equal(t, "신청 안내\n지원분야: R&D(연구개발)\nR&D(연구개발) 사업화 지원", CleanText(in))
}

func TestCleanHTMLDropsScriptAndDecodesEntities(t *testing.T) {
	t.Parallel()

	in := `<div><p>사업 개요</p><script>var a = 1;</script><p>지원&nbsp;내용</p><iframe src="x"></iframe></div>`
	require.Equal(t, "사업 개요\n지원 내용", CleanHTML(in))
	require.Empty(t, CleanHTML("   "))
}

func TestParseDateRange(t *testing.T) {
	t.Parallel()

	start, end := ParseDateRange("2026-01-06 ~ 2026-01-27")
	require.NotNil(t, start)
	require.NotNil(t, end)
	require.Equal(t, time.Date(2026, 1, 6, 0, 0, 0, 0, KST), *start)
	require.Equal(t, time.Date(2026, 1, 27, 23, 59, 59, 0, KST), *end)

	start, end = ParseDateRange("접수기간 2026.02.01(월) 09:00 ~ 2026.02.28(금) 18:00")
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, KST), *start)
	require.Equal(t, time.Date(2026, 2, 28, 23, 59, 59, 0, KST), *end)

	start, end = ParseDateRange("상시 접수")
	require.Nil(t, start)
	require.Nil(t, end)
}

func TestParseDateRejectsInvalidDays(t *testing.T) {
	t.Parallel()

	require.Nil(t, ParseDate("2026-02-30"))
	require.Nil(t, ParseDate("2026-13-01"))
	require.NotNil(t, ParseDate("2026년 3월 2일"))
	require.Nil(t, ParseISODate("unknown"))
	require.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, KST), *ParseISODate("2026-05-01"))
}

func TestSplitRegionTag(t *testing.T) {
	t.Parallel()

	region, title := SplitRegionTag("[서울] 2026년 창업 지원사업")
	require.Equal(t, "서울", region)
	require.Equal(t, "2026년 창업 지원사업", title)

	region, title = SplitRegionTag("[모집] 글로벌 액셀러레이팅")
	require.Empty(t, region)
	require.Equal(t, "[모집] 글로벌 액셀러레이팅", title)
}

func TestSupportFieldKeywords(t *testing.T) {
	t.Parallel()

	require.Equal(t, FieldCommercialization, InferSupportField("시제품 제작 지원", ""))
	require.Equal(t, FieldRnD, InferSupportField("", "중소기업 연구개발 과제"))
	require.Empty(t, InferSupportField("", ""))

	require.Equal(t, FieldCommercialization, NormalizeSupportField("창업"))
	require.Equal(t, FieldRnD, NormalizeSupportField("기술개발(R&D)"))
	require.Empty(t, NormalizeSupportField("기타"))
}

func TestFindFundingAmount(t *testing.T) {
	t.Parallel()

	require.Equal(t, "최대 1억원", FindFundingAmount("기업당 지원금 최대 1억원 이내"))
	require.Equal(t, "5천만원", FindFundingAmount("총 사업비의 70% 이내, 5천만원 한도"))
	require.Empty(t, FindFundingAmount("금액 미정"))
}
