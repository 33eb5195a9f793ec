package task

import "fmt"

// outcomeKind enumerates the ways a handler invocation can end.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetry
	outcomeFatal
	outcomeCanceled
)

// Outcome is what a handler reports back to the executor. The executor maps
// it onto exactly one state transition: done, retry-with-backoff, dead, or
// canceled. Handlers never mutate task state themselves.
type Outcome struct {
	kind outcomeKind
	err  error
}

// Success reports that the handler completed its work.
func Success() Outcome {
	return Outcome{kind: outcomeSuccess}
}

// Retry reports a transient failure. The executor schedules a delayed retry
// until the retry budget is exhausted, then dead-letters the task.
func Retry(err error) Outcome {
	return Outcome{kind: outcomeRetry, err: err}
}

// Retryf is Retry with a formatted message.
func Retryf(format string, args ...any) Outcome {
	return Retry(fmt.Errorf(format, args...))
}

// Fatal reports a non-retriable failure (e.g. a malformed payload). The
// executor dead-letters the task immediately, bypassing remaining retries.
func Fatal(err error) Outcome {
	return Outcome{kind: outcomeFatal, err: err}
}

// Fatalf is Fatal with a formatted message.
func Fatalf(format string, args ...any) Outcome {
	return Fatal(fmt.Errorf(format, args...))
}

// Canceled reports that the handler observed the cancellation request and
// stopped early. Cancellation is not an error.
func Canceled() Outcome {
	return Outcome{kind: outcomeCanceled}
}

// Err returns the error carried by a retry or fatal outcome, nil otherwise.
func (o Outcome) Err() error {
	return o.err
}

// errMessage renders the carried error for last_error bookkeeping.
func (o Outcome) errMessage() string {
	if o.err == nil {
		return ""
	}
	return o.err.Error()
}
