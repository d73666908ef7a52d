package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/headless"
	"github.com/JakeFAU/startup-programs-crawler/internal/llm"
)

type fakeStrategy struct {
	pages   int
	lists   map[string][]crawler.ListItem
	details map[string]crawler.Fields
}

func (s *fakeStrategy) Source() crawler.Source { return crawler.SourceKStartup }

func (s *fakeStrategy) ListURL(page int) string {
	return fmt.Sprintf("https://list.test/?page=%d", page)
}

func (s *fakeStrategy) DetailURL(id string) string { return "https://detail.test/" + id }

func (s *fakeStrategy) ParseList(body []byte) ([]crawler.ListItem, error) {
	items, ok := s.lists[string(body)]
	if !ok {
		return nil, &crawler.ParseError{What: "list", Err: errors.New("unknown body")}
	}
	return items, nil
}

func (s *fakeStrategy) ParseDetail(_ []byte, pageURL string) crawler.Fields {
	return s.details[pageURL]
}

func (s *fakeStrategy) TotalPages([]byte) int {
	if s.pages == 0 {
		return 1
	}
	return s.pages
}

func (s *fakeStrategy) ContentSelector() string { return ".board_view" }

func item(id string, fields crawler.Fields) crawler.ListItem {
	return crawler.ListItem{SourceID: id, URL: "https://detail.test/" + id, Fields: fields}
}

type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	failures map[string]bool
	calls    []string
	headers  []http.Header
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, headers http.Header) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	f.headers = append(f.headers, headers)
	if f.failures[url] {
		return nil, &crawler.FetchError{URL: url, Attempts: 3, Err: &crawler.StatusError{StatusCode: 503}}
	}
	body, ok := f.bodies[url]
	if !ok {
		body = "<html>detail</html>"
	}
	return []byte(body), nil
}

type fakeExtractor struct {
	enabled     bool
	text        *llm.Result
	vision      *llm.Result
	textCalls   int
	visionCalls int
	images      []crawler.Image
}

func (f *fakeExtractor) Enabled() bool { return f.enabled }

func (f *fakeExtractor) ExtractText(_ context.Context, eligibility, description string) *llm.Result {
	if eligibility == "" && description == "" {
		return nil
	}
	f.textCalls++
	return f.text
}

func (f *fakeExtractor) ExtractVision(_ context.Context, images []crawler.Image) *llm.Result {
	f.visionCalls++
	f.images = images
	return f.vision
}

func parsed(raw string) *llm.Result {
	r := llm.ParseResult(raw)
	return &r
}

type fakeCapturer struct {
	images []crawler.Image
	err    error
	urls   []string
}

func (c *fakeCapturer) Capture(_ context.Context, _ headless.Page, detailURL, _ string) ([]crawler.Image, error) {
	c.urls = append(c.urls, detailURL)
	return c.images, c.err
}

type fakePage struct {
	headless.Page
	closed bool
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeBrowser struct {
	pages  []*fakePage
	closed bool
}

func (b *fakeBrowser) NewPage(context.Context) (headless.Page, error) {
	p := &fakePage{}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakeLauncher struct {
	browser *fakeBrowser
	err     error
}

func (l *fakeLauncher) Launch(context.Context) (headless.Browser, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type recordingPacer struct {
	urls []string
	done []string
}

func (p *recordingPacer) Wait(_ context.Context, url string) error {
	p.urls = append(p.urls, url)
	return nil
}

func (p *recordingPacer) Done(url string) {
	p.done = append(p.done, url)
}
