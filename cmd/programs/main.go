// Package main is the entry point for the programs executable.
//
// Architecture overview:
//   - CLI: cmd builds the application from config (internal/config) and runs one of crawl, reextract, or serve.
//   - Crawl pass: internal/pipeline walks listing pages per source (internal/extract strategies), fetches detail
//     pages through the Colly fetcher under a per-host pacer, and upserts one record per program.
//   - Enrichment: keyword inference, then LLM text extraction (internal/llm), then, when critical fields are still
//     missing, a chromedp capture of the detail page (internal/headless) sent to the vision model.
//   - Persistence: Postgres or in-memory program store, optional capture archive (local disk, GCS), optional
//     Pub/Sub upsert notifications.
//   - HTTP API: internal/api exposes the passes, probes, and Prometheus metrics.
package main

import "github.com/JakeFAU/startup-programs-crawler/cmd"

func main() {
	cmd.Execute()
}
