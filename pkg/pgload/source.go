package pgload

import "context"

// RecordSource turns one file into records of a runtime-resolved type.
// Implementations must be safe for concurrent use by multiple goroutines.
type RecordSource interface {
	// Resolve maps a file to its record type.
	// Returns false if the file does not correspond to any known type.
	Resolve(path string) (*RecordType, bool)

	// Parse reads the file and returns its records in document order.
	// Errors should wrap ErrParse.
	Parse(ctx context.Context, path string, recordType *RecordType) ([]Record, error)
}

// TableNamer maps a record type name to the sink table name.
type TableNamer interface {
	TableName(recordTypeName string) string
}
