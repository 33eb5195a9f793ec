// Package task manages background job queuing, processing, and lifecycle.
// It provides the executor that claims persisted tasks from the store with
// bounded concurrency, dispatches them to registered handlers, and applies
// the retry/backoff/dead-letter state machine, ensuring long-running work
// like embedding and captioning never blocks HTTP request handling and can
// recover from application restarts.
package task
