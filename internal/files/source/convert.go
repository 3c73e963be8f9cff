package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// DefaultTimestampLayouts are tried in order when parsing timestamp attributes.
var DefaultTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ConvertValue converts attribute text into the Go value for kind.
// Returns nil (NULL) for empty input on every kind except text.
func ConvertValue(kind pgload.Kind, raw string, layouts []string) (any, error) {
	if kind == pgload.KindText {
		return raw, nil
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	switch kind {
	case pgload.KindInt32:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case pgload.KindInt64:
		return strconv.ParseInt(s, 10, 64)
	case pgload.KindBoolean:
		return strconv.ParseBool(s)
	case pgload.KindUUID:
		return uuid.Parse(s)
	case pgload.KindTimestamp:
		return parseTimestamp(s, layouts)
	}
	return nil, fmt.Errorf("kind %v: %w", kind, pgload.ErrUnknownKind)
}

func parseTimestamp(s string, layouts []string) (time.Time, error) {
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q matches none of %d layouts", s, len(layouts))
}
