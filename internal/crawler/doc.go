// Package crawler holds the domain model shared by the crawl pipeline: program records and
// their fields, the merge rules between extraction tiers, retry policies, and the small
// interfaces (Fetcher, Store, BlobStore, Publisher, Pacer) the pipeline is composed from.
package crawler
