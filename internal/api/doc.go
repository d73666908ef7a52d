// Package api hosts the HTTP trigger surface for crawl and re-extraction passes.
// Routes:
//   - GET /healthz and /readyz for container probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl runs a crawl pass over one or more sources and returns per-source results.
//   - POST /v1/reextract re-runs text extraction over stored records.
//
// Passes run synchronously and one at a time; a second request while one is running gets 409.
package api
