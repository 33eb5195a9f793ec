// Package events decouples the services that decide which background work is
// needed from the task machinery that performs it. Ingestion emits one
// TaskRequestEvent per derived-data job; a registered handler turns each
// event into a persisted task.
package events
