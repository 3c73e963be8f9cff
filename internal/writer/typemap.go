package writer

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// encoders turn a record value of each kind into the pgtype value bound for
// COPY and for merge parameters.
var encoders = map[pgload.Kind]func(v any) (any, error){
	pgload.KindInt32:     encodeInt4,
	pgload.KindInt64:     encodeInt8,
	pgload.KindTimestamp: encodeTimestamp,
	pgload.KindBoolean:   encodeBool,
	pgload.KindUUID:      encodeUUID,
	pgload.KindText:      encodeText,
}

// encoder converts record values of one record type into pgtype values.
type encoder []func(any) (any, error)

func newEncoder(rt *pgload.RecordType) (encoder, error) {
	enc := make(encoder, len(rt.Fields))
	for i, f := range rt.Fields {
		encode, ok := encoders[f.Kind]
		if !ok {
			return nil, fmt.Errorf("record type %s field %s kind %v: %w", rt.Name, f.Name, f.Kind, pgload.ErrUnknownKind)
		}
		enc[i] = encode
	}
	return enc, nil
}

// row encodes one record. A nil value becomes an explicit typed NULL.
func (e encoder) row(rec pgload.Record) ([]any, error) {
	if len(rec.Values) != len(e) {
		return nil, fmt.Errorf("record has %d values, record type declares %d fields", len(rec.Values), len(e))
	}
	out := make([]any, len(e))
	for i, v := range rec.Values {
		ev, err := e[i](v)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = ev
	}
	return out, nil
}

func encodeInt4(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.Int4{}, nil
	case int32:
		return pgtype.Int4{Int32: x, Valid: true}, nil
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows integer", x)
		}
		return pgtype.Int4{Int32: int32(x), Valid: true}, nil
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows integer", x)
		}
		return pgtype.Int4{Int32: int32(x), Valid: true}, nil
	}
	return nil, unexpected("integer", v)
}

func encodeInt8(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.Int8{}, nil
	case int64:
		return pgtype.Int8{Int64: x, Valid: true}, nil
	case int32:
		return pgtype.Int8{Int64: int64(x), Valid: true}, nil
	case int:
		return pgtype.Int8{Int64: int64(x), Valid: true}, nil
	}
	return nil, unexpected("bigint", v)
}

func encodeTimestamp(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.Timestamp{}, nil
	case time.Time:
		return pgtype.Timestamp{Time: x, Valid: true}, nil
	}
	return nil, unexpected("timestamp", v)
}

func encodeBool(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.Bool{}, nil
	case bool:
		return pgtype.Bool{Bool: x, Valid: true}, nil
	}
	return nil, unexpected("boolean", v)
}

func encodeUUID(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.UUID{}, nil
	case uuid.UUID:
		return pgtype.UUID{Bytes: x, Valid: true}, nil
	case [16]byte:
		return pgtype.UUID{Bytes: x, Valid: true}, nil
	case string:
		u, err := uuid.Parse(x)
		if err != nil {
			return nil, err
		}
		return pgtype.UUID{Bytes: u, Valid: true}, nil
	}
	return nil, unexpected("uuid", v)
}

func encodeText(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.Text{}, nil
	case string:
		return pgtype.Text{String: x, Valid: true}, nil
	case fmt.Stringer:
		return pgtype.Text{String: x.String(), Valid: true}, nil
	}
	return nil, unexpected("text", v)
}

func unexpected(sink string, v any) error {
	return fmt.Errorf("cannot store %T as %s", v, sink)
}
