package pgload

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	summary, err := service.Run(ctx, cfg)
//	if errors.Is(err, pgload.ErrLoadIncomplete) {
//	    // some files stayed on disk
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownKind indicates a field declares a value kind with no sink type mapping.
	ErrUnknownKind = errors.New("unknown value kind")

	// ErrUnknownRecordType indicates a record type name is not registered.
	ErrUnknownRecordType = errors.New("unknown record type")

	// ErrParse indicates a file could not be turned into records.
	ErrParse = errors.New("parse failed")

	// ErrWrite indicates a batch could not be written to the sink.
	ErrWrite = errors.New("write failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrLoadIncomplete indicates the run finished with failed files or batches.
	ErrLoadIncomplete = errors.New("load incomplete")
)

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrUnknownKind),
		errors.Is(err, ErrUnknownRecordType),
		errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrLoadIncomplete):
		return ExitLoadIncomplete
	}

	errStr := err.Error()
	if isUsageError(errStr) {
		return ExitUsageError
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}

// isUsageError recognizes cobra's argument and flag parsing messages.
func isUsageError(msg string) bool {
	for _, prefix := range []string{
		"unknown flag",
		"unknown shorthand flag",
		"unknown command",
		"accepts ",
		"requires at least",
		"required flag",
		"invalid argument",
		"flag needs an argument",
	} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
