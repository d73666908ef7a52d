package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Generate(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestExtractTextSkipsEmptyInput(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	e := NewExtractor(p, Config{}, nil)
	require.Nil(t, e.ExtractText(context.Background(), "  ", ""))
	p.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestExtractTextWithoutProviderReturnsNil(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, Config{}, nil)
	require.False(t, e.Enabled())
	require.Nil(t, e.ExtractText(context.Background(), "자격", "내용"))
	require.Nil(t, e.ExtractVision(context.Background(), []crawler.Image{{MIMEType: "image/jpeg", Base64: "AA=="}}))
}

func TestExtractTextParsesReply(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return len(req.Images) == 0 && req.Temperature == 0.1 && req.Schema != nil
	})).Return(`{"companyAge":"7년 이내","targetRegion":"서울"}`, nil).Once()

	e := NewExtractor(p, Config{Temperature: 0.1}, nil)
	r := e.ExtractText(context.Background(), "창업 7년 이내 기업", "서울 소재 기업 지원")
	require.NotNil(t, r)
	require.True(t, r.Parsed)
	require.Equal(t, "서울", r.TargetRegion)
	p.AssertExpectations(t)
}

func TestExtractTextCallErrorReturnsNil(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("429 too many requests")).Once()

	e := NewExtractor(p, Config{}, nil)
	require.Nil(t, e.ExtractText(context.Background(), "자격", ""))
}

func TestExtractTextUnparseableReplyIsDefaulted(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return("죄송합니다, 분석할 수 없습니다.", nil).Once()

	e := NewExtractor(p, Config{}, nil)
	r := e.ExtractText(context.Background(), "자격", "")
	require.NotNil(t, r)
	require.False(t, r.Parsed)
	require.Equal(t, Nationwide, r.TargetRegion)
}

func TestExtractVisionSendsImagesInOrder(t *testing.T) {
	t.Parallel()

	images := []crawler.Image{
		{MIMEType: "image/jpeg", Base64: "Zmlyc3Q="},
		{MIMEType: "image/jpeg", Base64: "c2Vjb25k"},
	}
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return len(req.Images) == 2 && req.Images[0].Base64 == "Zmlyc3Q=" && req.Prompt == VisionPrompt()
	})).Return(`{"companyAge":"3년 미만"}`, nil).Once()

	e := NewExtractor(p, Config{}, nil)
	r := e.ExtractVision(context.Background(), images)
	require.NotNil(t, r)
	require.Equal(t, "3년 미만", r.CompanyAge)
	p.AssertExpectations(t)
}

func TestExtractVisionTimeoutIsFailure(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(`{"companyAge":"3년 미만"}`, nil).Once()

	e := NewExtractor(p, Config{VisionTimeout: 20 * time.Millisecond}, nil)
	start := time.Now()
	r := e.ExtractVision(context.Background(), []crawler.Image{{MIMEType: "image/jpeg", Base64: "AA=="}})
	require.Nil(t, r)
	require.Less(t, time.Since(start), 2*time.Second)
}
