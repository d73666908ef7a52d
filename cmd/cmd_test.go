package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/api"
	"github.com/JakeFAU/startup-programs-crawler/internal/config"
	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// MockApp is a mock implementation of the App interface.
type MockApp struct {
	mock.Mock
	cfg       config.Config
	crawl     *stubCrawler
	reextract *stubReextractor
}

func (m *MockApp) Close()                               { m.Called() }
func (m *MockApp) GetLogger() *zap.Logger               { return zap.NewNop() }
func (m *MockApp) GetConfig() config.Config             { return m.cfg }
func (m *MockApp) CrawlRunner() api.CrawlRunner         { return m.crawl }
func (m *MockApp) ReextractRunner() api.ReextractRunner { return m.reextract }
func (m *MockApp) Ready(context.Context) error          { return nil }

type stubCrawler struct {
	sources []crawler.Source
	opts    crawler.CrawlOptions
	fail    crawler.Source
}

func (s *stubCrawler) CrawlAll(_ context.Context, sources []crawler.Source, opts crawler.CrawlOptions) map[crawler.Source]crawler.Result {
	s.sources, s.opts = sources, opts
	out := make(map[crawler.Source]crawler.Result, len(sources))
	for _, source := range sources {
		out[source] = crawler.Result{Success: source != s.fail, Count: 2}
	}
	return out
}

type stubReextractor struct {
	opts   crawler.ReextractOptions
	result crawler.Result
}

func (s *stubReextractor) Run(_ context.Context, opts crawler.ReextractOptions) crawler.Result {
	s.opts = opts
	return s.result
}

func newMockApp(t *testing.T) *MockApp {
	t.Helper()
	m := &MockApp{
		cfg:       config.Config{Server: config.ServerConfig{Port: 8080}, Crawler: config.CrawlerConfig{MaxPages: 1}},
		crawl:     &stubCrawler{},
		reextract: &stubReextractor{result: crawler.Result{Success: true, Count: 1}},
	}
	m.On("Close").Return()

	original := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) { return m, nil }
	t.Cleanup(func() { newApp = original })
	return m
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlCommand_DefaultsFromConfig(t *testing.T) {
	m := newMockApp(t)

	out, err := execute(t, "crawl")
	require.NoError(t, err)
	assert.Equal(t, crawler.Sources(), m.crawl.sources)
	assert.Equal(t, crawler.CrawlOptions{MaxPages: 1, FetchDetails: true}, m.crawl.opts)

	var results map[crawler.Source]crawler.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, 2, results[crawler.SourceKStartup].Count)
	m.AssertCalled(t, "Close")
}

func TestCrawlCommand_FlagsOverride(t *testing.T) {
	m := newMockApp(t)

	_, err := execute(t, "crawl", "--source", "bizinfo", "--max-pages", "4", "--details=false", "--render", "--limit", "9")
	require.NoError(t, err)
	assert.Equal(t, []crawler.Source{crawler.SourceBizinfo}, m.crawl.sources)
	assert.Equal(t, crawler.CrawlOptions{MaxPages: 4, EnableRendering: true, Limit: 9}, m.crawl.opts)
}

func TestCrawlCommand_Validation(t *testing.T) {
	tests := map[string][]string{
		"unknown source":           {"crawl", "--source", "naver"},
		"target without source":    {"crawl", "--target-id", "174233"},
		"zero pages":               {"crawl", "--max-pages", "0"},
		"negative limit":           {"crawl", "--limit", "-1"},
		"negative reextract limit": {"reextract", "--limit", "-2"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			newMockApp(t)
			_, err := execute(t, args...)
			require.Error(t, err)
		})
	}
}

func TestCrawlCommand_TargetID(t *testing.T) {
	m := newMockApp(t)

	_, err := execute(t, "crawl", "--source", "kstartup", "--target-id", " 174233 ")
	require.NoError(t, err)
	assert.Equal(t, "174233", m.crawl.opts.TargetID)
}

func TestCrawlCommand_FailedSourceIsAnError(t *testing.T) {
	m := newMockApp(t)
	m.crawl.fail = crawler.SourceBizinfo

	_, err := execute(t, "crawl")
	require.EqualError(t, err, "crawl failed for bizinfo")
}

func TestReextractCommand(t *testing.T) {
	m := newMockApp(t)

	out, err := execute(t, "reextract", "--limit", "5", "--force")
	require.NoError(t, err)
	assert.Equal(t, crawler.ReextractOptions{Limit: 5, Force: true}, m.reextract.opts)
	assert.Contains(t, out, `"count": 1`)

	m.reextract.result = crawler.Result{Errors: []string{"llm provider is not configured"}}
	_, err = execute(t, "reextract")
	require.ErrorContains(t, err, "llm provider is not configured")
}

func TestRootCommand_AppInitFailure(t *testing.T) {
	original := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) {
		return nil, errors.New("db unreachable")
	}
	t.Cleanup(func() { newApp = original })

	_, err := execute(t, "crawl")
	require.ErrorContains(t, err, "db unreachable")
}

func TestRunServer_ServesUntilCanceled(t *testing.T) {
	m := newMockApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	original := listen
	listen = func(string) (net.Listener, error) { return ln, nil }
	t.Cleanup(func() { listen = original })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, m) }()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
