// Package retry runs calls into external collaborators with bounded,
// jittered exponential backoff.
//
// Only errors classified as retryable Storage or Network failures are
// retried. Every attempt runs under its own timeout so one slow call
// cannot hold the caller indefinitely.
package retry
