// Package postgres provides PostgreSQL implementations of the store
// interfaces. The task store's claim query is the concurrency linchpin of the
// whole system: FOR UPDATE SKIP LOCKED guarantees that two workers polling at
// the same instant never receive the same task.
package postgres
