// Package api contains the HTTP handlers for the keepsake service: operator
// login, media ingestion, task management (status, dead-letter listing,
// cancel, requeue), search and queue metrics. Handlers translate between
// HTTP and the service layer; domain errors are mapped to status codes and
// sanitized messages in errors.go so internal details never reach clients.
package api
