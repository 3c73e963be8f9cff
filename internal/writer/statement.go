package writer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// TableIdentifier splits "schema.table" into a pgx.Identifier.
func TableIdentifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// MergeSQL builds the upsert statement for a record type with one $n
// placeholder per field. The first field is the conflict key; a type with
// only a key field does nothing on conflict.
func MergeSQL(table string, rt *pgload.RecordType) string {
	cols := rt.Columns()
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return mergeStatement(TableIdentifier(table).Sanitize(), quoted, params)
}

func mergeStatement(table string, quotedCols, values []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		table, strings.Join(quotedCols, ", "), strings.Join(values, ", "), quotedCols[0])

	if len(quotedCols) == 1 {
		b.WriteString("DO NOTHING")
		return b.String()
	}

	b.WriteString("DO UPDATE SET ")
	for i, c := range quotedCols[1:] {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", c, c)
	}
	return b.String()
}

// PreviewSQL renders the merge statement for one record with literal values.
// It is used for log output only; statements sent to the server always bind
// parameters.
func PreviewSQL(table string, rec pgload.Record, timestampFormat string) string {
	rt := rec.Type
	cols := rt.Columns()
	quoted := make([]string, len(cols))
	values := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		var v any
		if i < len(rec.Values) {
			v = rec.Values[i]
		}
		values[i] = Literal(v, timestampFormat)
	}
	return mergeStatement(TableIdentifier(table).Sanitize(), quoted, values)
}

// Literal renders a value as a quoted SQL literal. Numbers and booleans use
// their text form, timestamps use timestampFormat, nil renders as NULL.
// Embedded single quotes are doubled.
func Literal(v any, timestampFormat string) string {
	var s string
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if timestampFormat == "" {
			timestampFormat = pgload.DefaultTimestampFormat
		}
		s = x.Format(timestampFormat)
	case bool:
		s = strconv.FormatBool(x)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int:
		s = strconv.Itoa(x)
	case uuid.UUID:
		s = x.String()
	case string:
		s = x
	default:
		s = fmt.Sprint(x)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// truncate shortens s to at most max characters for log output.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
