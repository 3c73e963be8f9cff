package pgload

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Run completed and every batch was loaded
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration, schema or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitLoadIncomplete  = 13 // Run finished but some files or batches failed
)

const (
	// DefaultScanWorkers is the default size of the scanner worker pool.
	DefaultScanWorkers = 4

	// DefaultLoadWorkers is the default size of the dispatcher worker pool.
	DefaultLoadWorkers = 4

	// DefaultMaxAwaiting is the queue length above which scanner workers back off.
	DefaultMaxAwaiting = 10

	// DefaultBackoff is how long a scanner worker sleeps when the queue is over the threshold.
	DefaultBackoff = 5 * time.Second

	// DefaultPollInterval bounds how long an idle dispatcher worker waits for
	// the queue before re-checking the scanner's liveness.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultTimestampFormat renders timestamps in merge statement previews.
	DefaultTimestampFormat = "2006-01-02 15:04:05.000"

	// DefaultExtension is the file extension scanned when none is configured.
	DefaultExtension = ".xml"

	// DefaultRetryInitialDelay is the default initial delay before the first connect retry.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between connect retries.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of connect retries.
	DefaultRetryMaxAttempts = 3

	// MaxErrorPreviewLength is the maximum number of characters of a failed
	// statement shown in error logs.
	MaxErrorPreviewLength = 200
)
