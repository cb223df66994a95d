// Package retry provides the retry policy used by the store when saving or loading columns.
//
// Error codes are split into two ranges: codes below FatalError are transient (e.g. an
// I/O error or an exhausted memory limit) and may succeed when retried, codes at or above
// FatalError (e.g. corrupt files) never do. TransientErrorsPolicy retries transient codes
// with a delay of BaseDelay * attempt.
package retry
