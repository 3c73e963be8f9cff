package pgload

import (
	"fmt"
	"strings"
)

// Kind is the declared value kind of a record field.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt32
	KindInt64
	KindTimestamp
	KindBoolean
	KindUUID
	KindText
)

// String returns the canonical name of the kind as used in schema files.
func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "integer32"
	case KindInt64:
		return "integer64"
	case KindTimestamp:
		return "timestamp"
	case KindBoolean:
		return "boolean"
	case KindUUID:
		return "uuid"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// IsValid returns true if the Kind is one of the defined kinds.
func (k Kind) IsValid() bool {
	return k >= KindInt32 && k <= KindText
}

// ParseKind converts a schema kind name into a Kind.
// Aliases are accepted case-insensitively (e.g. "int", "bigint", "guid", "string").
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "integer32", "int32", "integer", "int", "int4":
		return KindInt32, nil
	case "integer64", "int64", "bigint", "long", "int8":
		return KindInt64, nil
	case "timestamp", "datetime":
		return KindTimestamp, nil
	case "boolean", "bool":
		return KindBoolean, nil
	case "uuid", "identifier", "guid":
		return KindUUID, nil
	case "text", "string", "char", "varchar":
		return KindText, nil
	}
	return KindInvalid, fmt.Errorf("kind %q: %w", name, ErrUnknownKind)
}

// Field is one named, typed column of a record shape.
type Field struct {
	Name string
	Kind Kind
}

// Column returns the sink column identifier for the field (upper-cased name).
func (f Field) Column() string {
	return strings.ToUpper(f.Name)
}

// RecordType describes a record shape. It is registered once and shared by
// every record of that shape; the first field is the conflict key for merges.
type RecordType struct {
	Name   string
	Fields []Field
}

// Columns returns the upper-cased column identifiers in field order.
func (t *RecordType) Columns() []string {
	cols := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.Column()
	}
	return cols
}

// Key returns the conflict key field.
// Panics if the record type has no fields; Validate rejects such types.
func (t *RecordType) Key() Field {
	return t.Fields[0]
}

// Validate checks that the record type has a name, at least one field,
// unique column names and only known kinds.
func (t *RecordType) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("record type name is required: %w", ErrInvalidConfig)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("record type %s has no fields: %w", t.Name, ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("record type %s has a field without a name: %w", t.Name, ErrInvalidConfig)
		}
		if !f.Kind.IsValid() {
			return fmt.Errorf("record type %s field %s: %w", t.Name, f.Name, ErrUnknownKind)
		}
		col := f.Column()
		if seen[col] {
			return fmt.Errorf("record type %s declares column %s twice: %w", t.Name, col, ErrInvalidConfig)
		}
		seen[col] = true
	}
	return nil
}

// Record is one parsed row. Values are positional and aligned with
// Type.Fields; a nil value is a SQL NULL. Records are immutable once parsed.
type Record struct {
	Type   *RecordType
	Values []any
}

// Batch is the parsed content of one source file moving through the queue.
type Batch struct {
	// SourceID is the path of the originating file.
	SourceID string

	// Type is the record shape shared by all records of the batch.
	Type *RecordType

	// Records preserves parse order.
	Records []Record
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	return len(b.Records)
}

// Clear drops the records so their memory can be reclaimed once the batch
// has been written (or has failed).
func (b *Batch) Clear() {
	b.Records = nil
}
