package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/llm"
	"github.com/JakeFAU/startup-programs-crawler/internal/storage/memory"
)

func seed(t *testing.T, store *memory.ProgramStore, id string, fields crawler.Fields, processed bool) {
	t.Helper()
	_, err := store.Upsert(context.Background(), crawler.ProgramRecord{
		Source:       crawler.SourceBizinfo,
		SourceID:     id,
		URL:          "https://detail.test/" + id,
		Fields:       fields,
		LLMProcessed: processed,
	})
	require.NoError(t, err)
}

func newTestReextractor(store crawler.Store, ext Extractor) (*Reextractor, *[]time.Duration) {
	var sleeps []time.Duration
	r := NewReextractor(store, ext, 2*time.Second, nil)
	r.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return r, &sleeps
}

func TestReextractRequiresLLM(t *testing.T) {
	t.Parallel()

	r, _ := newTestReextractor(memory.NewProgramStore(nil), &fakeExtractor{})
	res := r.Run(context.Background(), crawler.ReextractOptions{})
	require.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
}

func TestReextractRewritesNarrativeFields(t *testing.T) {
	t.Parallel()

	store := memory.NewProgramStore(&stepClock{now: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)})
	seed(t, store, "1", crawler.Fields{Description: "수출 바우처", TargetRegion: "부산"}, false)
	seed(t, store, "2", crawler.Fields{Eligibility: "중소기업"}, false)
	seed(t, store, "3", crawler.Fields{Description: "이미 처리됨"}, true)
	seed(t, store, "4", crawler.Fields{Title: "본문 없음"}, false)

	ext := &fakeExtractor{
		enabled: true,
		text:    parsed(`{"summary":"수출 지원","exclusionDetail":"휴폐업 기업 제외","targetRegion":"서울"}`),
	}
	r, sleeps := newTestReextractor(store, ext)

	res := r.Run(context.Background(), crawler.ReextractOptions{})
	require.True(t, res.Success)
	require.Equal(t, 2, res.Count)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "bizinfo:4")
	require.Equal(t, 2, ext.textCalls)
	require.Equal(t, []time.Duration{2 * time.Second}, *sleeps)

	record, err := store.Get(context.Background(), crawler.Key{Source: crawler.SourceBizinfo, SourceID: "1"})
	require.NoError(t, err)
	require.True(t, record.LLMProcessed)
	require.Equal(t, "수출 지원", record.AISummary)
	require.Equal(t, llm.NotApplicable, record.TargetDetail)
	require.Equal(t, "휴폐업 기업 제외", record.ExclusionDetail)
	// Matching fields are not part of re-extraction.
	require.Equal(t, "부산", record.TargetRegion)
}

func TestReextractForceAndLimit(t *testing.T) {
	t.Parallel()

	store := memory.NewProgramStore(&stepClock{now: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)})
	seed(t, store, "1", crawler.Fields{Description: "a"}, true)
	seed(t, store, "2", crawler.Fields{Description: "b"}, true)
	seed(t, store, "3", crawler.Fields{Description: "c"}, true)

	ext := &fakeExtractor{enabled: true, text: parsed(`{"summary":"요약"}`)}
	r, _ := newTestReextractor(store, ext)

	res := r.Run(context.Background(), crawler.ReextractOptions{})
	require.True(t, res.Success)
	require.Zero(t, res.Count)

	res = r.Run(context.Background(), crawler.ReextractOptions{Force: true, Limit: 2})
	require.True(t, res.Success)
	require.Equal(t, 2, res.Count)
	require.Equal(t, 2, ext.textCalls)
}

func TestReextractUnparseableIsRecordError(t *testing.T) {
	t.Parallel()

	store := memory.NewProgramStore(nil)
	seed(t, store, "1", crawler.Fields{Description: "본문"}, false)

	ext := &fakeExtractor{enabled: true, text: parsed("not json")}
	r, _ := newTestReextractor(store, ext)

	res := r.Run(context.Background(), crawler.ReextractOptions{})
	require.True(t, res.Success)
	require.Zero(t, res.Count)
	require.Equal(t, []string{"bizinfo:1: response not parseable"}, res.Errors)

	record, err := store.Get(context.Background(), crawler.Key{Source: crawler.SourceBizinfo, SourceID: "1"})
	require.NoError(t, err)
	require.False(t, record.LLMProcessed)
	require.Empty(t, record.AISummary)
}

func TestReextractNilResultIsRecordError(t *testing.T) {
	t.Parallel()

	store := memory.NewProgramStore(nil)
	seed(t, store, "1", crawler.Fields{Description: "본문"}, false)

	r, _ := newTestReextractor(store, &fakeExtractor{enabled: true})
	res := r.Run(context.Background(), crawler.ReextractOptions{})
	require.True(t, res.Success)
	require.Equal(t, []string{"bizinfo:1: extraction failed"}, res.Errors)
}
