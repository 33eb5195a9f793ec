// Package service contains the application services that sit between the
// HTTP API and the stores: ingestion with content-addressed dedup and
// derived-task fan-out, task administration, and search over the shared
// vector index.
package service
