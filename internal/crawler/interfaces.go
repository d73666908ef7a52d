package crawler

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves static HTML.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error)
}

// Store is the persistence sink keyed by (source, sourceId).
type Store interface {
	// Upsert creates or updates the record. Absent optional fields never clobber stored values.
	Upsert(ctx context.Context, record ProgramRecord) (created bool, err error)
	Get(ctx context.Context, key Key) (ProgramRecord, error)
	// ListForReextract returns records not yet LLM-processed (all records when force is set).
	ListForReextract(ctx context.Context, limit int, force bool) ([]ProgramRecord, error)
	UpdateEnrichment(ctx context.Context, key Key, enrichment Enrichment) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes upsert notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Pacer enforces the fixed delay between requests against one host.
// Wait precedes a request; Done marks its completion, from which the next delay is measured.
type Pacer interface {
	Wait(ctx context.Context, url string) error
	Done(url string)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
