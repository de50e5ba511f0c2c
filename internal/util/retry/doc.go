// Package retry provides exponential backoff for operations that fail
// transiently.
//
// [Do] repeats an operation until it succeeds, the retry budget is spent,
// or the error is not retryable. The object storage client uses it to ride
// out throttling responses.
package retry
