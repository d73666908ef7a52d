// Package llm extracts structured eligibility fields from announcement text or screenshots
// through a schema-constrained generation endpoint.
package llm

import (
	"context"
	"errors"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// ErrNoCredential is returned when no API key is configured.
var ErrNoCredential = errors.New("llm api key not configured")

// Request is one schema-constrained generation call.
type Request struct {
	Prompt string
	// Images switches the call to the vision model; they are sent in order.
	Images      []crawler.Image
	Schema      map[string]any
	Temperature float64
}

// Provider is the generation endpoint boundary. Implementations return the raw model text.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}
