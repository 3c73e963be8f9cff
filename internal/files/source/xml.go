package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/vvka-141/pgload/internal/files/filesystem"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Resolver maps a file path to a record type.
// Implemented by schema.Registry.
type Resolver interface {
	ResolveFile(path string) (*pgload.RecordType, bool)
}

// ctxCheckInterval is how many elements are decoded between context checks.
const ctxCheckInterval = 1024

// XMLSource is the attribute-style XML RecordSource.
//
// Thread-Safety: safe for concurrent use; each Parse call owns its decoder.
type XMLSource struct {
	fsProvider filesystem.FileSystemProvider
	resolver   Resolver
	layouts    []string
}

// Option configures an XMLSource.
type Option func(*XMLSource)

// WithTimestampLayouts replaces the layouts tried for timestamp fields.
func WithTimestampLayouts(layouts ...string) Option {
	return func(s *XMLSource) {
		s.layouts = layouts
	}
}

// NewXMLSource creates an XML record source.
// Panics if fsProvider or resolver is nil.
func NewXMLSource(fsProvider filesystem.FileSystemProvider, resolver Resolver, opts ...Option) *XMLSource {
	if fsProvider == nil {
		panic("fsProvider cannot be nil")
	}
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	s := &XMLSource{
		fsProvider: fsProvider,
		resolver:   resolver,
		layouts:    DefaultTimestampLayouts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve implements pgload.RecordSource.
func (s *XMLSource) Resolve(path string) (*pgload.RecordType, bool) {
	return s.resolver.ResolveFile(path)
}

// Parse implements pgload.RecordSource.
func (s *XMLSource) Parse(ctx context.Context, path string, recordType *pgload.RecordType) ([]pgload.Record, error) {
	if recordType == nil {
		return nil, fmt.Errorf("%s: record type is nil: %w", path, pgload.ErrParse)
	}

	f, err := s.fsProvider.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v: %w", path, err, pgload.ErrParse)
	}
	defer f.Close()

	records, err := s.decode(ctx, f, recordType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func (s *XMLSource) decode(ctx context.Context, r io.Reader, rt *pgload.RecordType) ([]pgload.Record, error) {
	index := make(map[string]int, len(rt.Fields))
	for i, f := range rt.Fields {
		index[f.Column()] = i
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var (
		records  []pgload.Record
		elements int
		seenRoot bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %v: %w", err, pgload.ErrParse)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		// The document element wraps the records and is never one itself.
		if !seenRoot {
			seenRoot = true
			continue
		}

		elements++
		if elements%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if len(start.Attr) != len(rt.Fields) || !mapsAnyField(start, index) {
			continue
		}

		rec, err := s.record(start, rt, index)
		if err != nil {
			line, _ := dec.InputPos()
			return nil, fmt.Errorf("line %d element <%s>: %w", line, start.Name.Local, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *XMLSource) record(start xml.StartElement, rt *pgload.RecordType, index map[string]int) (pgload.Record, error) {
	values := make([]any, len(rt.Fields))
	for _, attr := range start.Attr {
		i, ok := index[strings.ToUpper(attr.Name.Local)]
		if !ok {
			continue
		}
		field := rt.Fields[i]
		v, err := ConvertValue(field.Kind, attr.Value, s.layouts)
		if err != nil {
			return pgload.Record{}, fmt.Errorf("attribute %s: %v: %w", attr.Name.Local, err, pgload.ErrParse)
		}
		values[i] = v
	}
	return pgload.Record{Type: rt, Values: values}, nil
}

// mapsAnyField reports whether at least one attribute names a field.
// Elements with only foreign attributes would otherwise become all-NULL rows.
func mapsAnyField(start xml.StartElement, index map[string]int) bool {
	for _, attr := range start.Attr {
		if _, ok := index[strings.ToUpper(attr.Name.Local)]; ok {
			return true
		}
	}
	return false
}

// charsetReader decodes non-UTF-8 documents (windows-1252, ISO-8859-x, ...).
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

var _ pgload.RecordSource = (*XMLSource)(nil)
