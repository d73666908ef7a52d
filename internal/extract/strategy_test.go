package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

const kstartupListHTML = `<html><body>
<ul class="board_list">
<li class="notice">
  <div class="flag_box"><span class="flag type01">사업화</span></div>
  <a href="javascript:go_view(174542);">
    <div class="tit_wrap"><p class="tit">[서울] 2026년 창업 지원사업</p></div>
  </a>
  <div class="bottom">
    <span class="list">기관명 창업진흥원</span>
    <span class="list">접수기간 2026-01-06 ~ 2026-01-27</span>
    <span class="list">조회 1,234</span>
  </div>
</li>
<li><a href="javascript:go_view(174542);"><p class="tit">duplicate</p></a></li>
<li>
  <span class="flag">융자</span>
  <a onclick="go_view('174600')" href="#">마감일자 2026-02-10 청년 창업 융자 조회 56</a>
</li>
</ul>
<div class="paging">
  <a href="?page=1">1</a><a href="?page=2">2</a><a href="javascript:fn_goPage(50)">끝</a>
</div>
</body></html>`

const bizinfoListHTML = `<html><body><table>
<thead><tr><th>번호</th><th>지원분야</th><th>지원사업명</th><th>신청기간</th><th>소관부처</th><th>사업수행기관</th><th>등록일</th><th>조회</th></tr></thead>
<tbody>
<tr><td>1</td><td>창업</td><td><a href="/web/lay1/bbs/S1T122C128/AS/74/view.do?pblancId=PBLN_000000000112233">[부산] 청년 창업 지원</a></td><td>2026-01-06 ~ 2026-01-27</td><td>중소벤처기업부</td><td>부산창조경제혁신센터</td><td>2026-01-05</td><td>1,024</td></tr>
<tr><td>2</td><td>금융</td><td><a href="view.do?pblancId=PBLN_000000000112244">정책자금 융자</a></td><td>상시</td><td>중소벤처기업부</td><td></td><td>2026-01-04</td><td>77</td></tr>
<tr><td>3</td><td>금융</td><td><a href="view.do?pblancId=PBLN_000000000112244">정책자금 융자</a></td><td>상시</td><td>중소벤처기업부</td><td></td><td>2026-01-04</td><td>77</td></tr>
</tbody></table>
<div class="page_list"><a href="list.do?cpage=1">1</a><a href="list.do?cpage=3">3</a></div>
</body></html>`

const bizinfoDetailHTML = `<html><body><div class="view_cont"><ul>
<li><span class="s_title">소관부처·지자체</span><div class="txt">중소벤처기업부</div></li>
<li><span class="s_title">사업수행기관</span><div class="txt">창업진흥원</div></li>
<li><span class="s_title">신청기간</span><div class="txt">2026-01-06 ~ 2026-01-27</div></li>
<li><span class="s_title">사업개요</span><div class="txt"><p>예비창업자 사업화 자금 지원</p><script>var a = 1;</script></div></li>
<li><span class="s_title">지원대상</span><div class="txt">만 39세 이하 예비창업자</div></li>
<li><span class="s_title">지원규모</span><div class="txt">최대 1억원 지원</div></li>
<li><span class="s_title">지원분야</span><div class="txt">창업</div></li>
</ul></div></body></html>`

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, KST)
}

func endOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 0, KST)
}

func TestKStartupParseList(t *testing.T) {
	t.Parallel()

	s, err := New(crawler.SourceKStartup, "https://example.test/")
	require.NoError(t, err)

	items, err := s.ParseList([]byte(kstartupListHTML))
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	require.Equal(t, "174542", first.SourceID)
	require.Equal(t, "https://example.test/web/contents/bizpbanc-ongoing.do?schM=view&pbancSn=174542", first.URL)
	require.Equal(t, "2026년 창업 지원사업", first.Title)
	require.Equal(t, "서울", first.Region)
	require.Equal(t, "사업화", first.Category)
	require.Equal(t, "창업진흥원", first.Organization)
	require.Equal(t, day(2026, 1, 6), *first.ApplicationStart)
	require.Equal(t, endOf(2026, 1, 27), *first.ApplicationEnd)
	require.Equal(t, 1234, *first.ViewCount)

	second := items[1]
	require.Equal(t, "174600", second.SourceID)
	require.Equal(t, "청년 창업 융자", second.Title)
	require.Equal(t, "융자", second.Category)
	require.Nil(t, second.ApplicationStart)
	require.Equal(t, endOf(2026, 2, 10), *second.ApplicationEnd)
	require.Equal(t, 56, *second.ViewCount)
}

func TestBizinfoParseList(t *testing.T) {
	t.Parallel()

	s, err := New(crawler.SourceBizinfo, "")
	require.NoError(t, err)

	items, err := s.ParseList([]byte(bizinfoListHTML))
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	require.Equal(t, "PBLN_000000000112233", first.SourceID)
	require.Equal(t, DefaultBizinfoBaseURL+"/web/lay1/bbs/S1T122C128/AS/74/view.do?pblancId=PBLN_000000000112233", first.URL)
	require.Equal(t, "부산", first.Region)
	require.Equal(t, "청년 창업 지원", first.Title)
	require.Equal(t, "창업", first.Category)
	require.Equal(t, "부산창조경제혁신센터", first.Organization)
	require.Equal(t, day(2026, 1, 6), *first.ApplicationStart)
	require.Equal(t, endOf(2026, 1, 27), *first.ApplicationEnd)
	require.Equal(t, 1024, *first.ViewCount)

	second := items[1]
	require.Equal(t, "금융", second.Category)
	require.Equal(t, "중소벤처기업부", second.Organization)
	require.Nil(t, second.ApplicationStart)
	require.Nil(t, second.ApplicationEnd)
	require.Equal(t, 77, *second.ViewCount)
}

func TestTotalPagesIsClamped(t *testing.T) {
	t.Parallel()

	k, _ := New(crawler.SourceKStartup, "")
	require.Equal(t, MaxDiscoveredPages, k.TotalPages([]byte(kstartupListHTML)))

	b, _ := New(crawler.SourceBizinfo, "")
	require.Equal(t, 3, b.TotalPages([]byte(bizinfoListHTML)))
	require.Equal(t, 1, b.TotalPages([]byte("<html><body>empty</body></html>")))
}

func TestClampPages(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, ClampPages(0))
	require.Equal(t, 4, ClampPages(4))
	require.Equal(t, MaxDiscoveredPages, ClampPages(50))
}

func TestBizinfoParseDetailLabelPass(t *testing.T) {
	t.Parallel()

	b, _ := New(crawler.SourceBizinfo, "")
	f := b.ParseDetail([]byte(bizinfoDetailHTML), b.DetailURL("PBLN_1"))

	require.Equal(t, "중소벤처기업부", f.Organization)
	require.Equal(t, "예비창업자 사업화 자금 지원", f.Description)
	require.Equal(t, "만 39세 이하 예비창업자", f.Eligibility)
	require.Equal(t, "최대 1억원", f.FundingAmount)
	require.Equal(t, FieldCommercialization, f.SupportField)
	require.Equal(t, day(2026, 1, 6), *f.ApplicationStart)
	require.Equal(t, endOf(2026, 1, 27), *f.ApplicationEnd)
}

func TestParseDetailTitle(t *testing.T) {
	t.Parallel()

	k, _ := New(crawler.SourceKStartup, "")
	b, _ := New(crawler.SourceBizinfo, "")

	tests := map[string]struct {
		strategy   Strategy
		html       string
		wantTitle  string
		wantRegion string
	}{
		"kstartup heading": {
			strategy: k,
			html: `<html><head><title>K-Startup</title></head><body>
<div class="information_wrap"><div class="title"><h3>[서울] 2026년 예비창업패키지</h3></div></div></body></html>`,
			wantTitle:  "2026년 예비창업패키지",
			wantRegion: "서울",
		},
		"kstartup document title": {
			strategy:  k,
			html:      `<html><head><title>2026년 초기창업패키지 | K-Startup</title></head><body></body></html>`,
			wantTitle: "2026년 초기창업패키지",
		},
		"bizinfo heading": {
			strategy:  b,
			html:      `<html><body><div class="view_top"><h2>중소기업 정책자금 융자 공고</h2></div></body></html>`,
			wantTitle: "중소기업 정책자금 융자 공고",
		},
		"bizinfo og title": {
			strategy: b,
			html: `<html><head><meta property="og:title" content="[부산] 청년 창업 지원 - 기업마당">
<title>기업마당</title></head><body></body></html>`,
			wantTitle:  "청년 창업 지원",
			wantRegion: "부산",
		},
		"site name only": {
			strategy: b,
			html:     `<html><head><title>기업마당</title></head><body></body></html>`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := tc.strategy.ParseDetail([]byte(tc.html), tc.strategy.DetailURL("1"))
			require.Equal(t, tc.wantTitle, f.Title)
			require.Equal(t, tc.wantRegion, f.Region)
		})
	}
}

func TestParseDetailTablePass(t *testing.T) {
	t.Parallel()

	html := `<html><body><table>
<tr><th>지원 내용</th><td>시제품 제작비 지원</td></tr>
<tr><th>신청 자격</th><td>업력 3년 이내 창업기업</td></tr>
<tr><th>업력</th><td>3년 이내</td></tr>
</table><dl><dt>지역</dt><dd>전국</dd></dl></body></html>`

	k, _ := New(crawler.SourceKStartup, "")
	f := k.ParseDetail([]byte(html), k.DetailURL("1"))

	require.Equal(t, "시제품 제작비 지원", f.Description)
	require.Equal(t, "업력 3년 이내 창업기업", f.Eligibility)
	require.Equal(t, "3년 이내", f.CompanyAge)
	require.Equal(t, "전국", f.TargetRegion)
}

func TestParseDetailContentFallback(t *testing.T) {
	t.Parallel()

	html := `<html><body><div class="board_view"><p>본 사업은 예비창업자를 대상으로 시제품 제작과 마케팅 비용을 지원하며 최대 5천만원까지 사업화 자금을 지원합니다.</p></div></body></html>`

	k, _ := New(crawler.SourceKStartup, "")
	f := k.ParseDetail([]byte(html), k.DetailURL("1"))

	require.Contains(t, f.Description, "예비창업자를 대상으로")
	require.Equal(t, "최대 5천만원", f.FundingAmount)
	require.Empty(t, f.Eligibility)
}

func TestParseDetailNeverFailsOnGarbage(t *testing.T) {
	t.Parallel()

	b, _ := New(crawler.SourceBizinfo, "")
	require.NotPanics(t, func() {
		f := b.ParseDetail([]byte("<<<not html"), "::bad url")
		require.Empty(t, f.Eligibility)
	})
}

func TestNewRejectsUnknownSource(t *testing.T) {
	t.Parallel()

	_, err := New(crawler.Source("other"), "")
	require.Error(t, err)
}
