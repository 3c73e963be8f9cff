package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// TableCase controls how generated table names are cased.
type TableCase string

const (
	CasePreserve TableCase = "preserve"
	CaseUpper    TableCase = "upper"
	CaseLower    TableCase = "lower"
)

// Naming is the convention applied to record types without an explicit table.
type Naming struct {
	Prefix string    `yaml:"prefix"`
	Suffix string    `yaml:"suffix"`
	Case   TableCase `yaml:"case"`
}

// FieldDef is the YAML form of one field.
type FieldDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// TypeDef is the YAML form of one record type.
type TypeDef struct {
	Name        string     `yaml:"name"`
	Table       string     `yaml:"table,omitempty"`
	FilePattern string     `yaml:"file_pattern,omitempty"`
	Fields      []FieldDef `yaml:"fields"`
}

// File is the YAML document describing all record types of a run.
type File struct {
	Naming Naming    `yaml:"naming"`
	Types  []TypeDef `yaml:"types"`
}

type entry struct {
	recordType *pgload.RecordType
	table      string
	pattern    string
}

// Registry resolves files to record types and record types to table names.
//
// Thread-Safety: safe for concurrent use. Registration is expected to finish
// before the pipeline starts, but is guarded anyway.
type Registry struct {
	mu      sync.RWMutex
	naming  Naming
	entries map[string]*entry // lower-cased type name -> entry
	order   []string          // registration order, for pattern matching
}

// New creates an empty registry with the given naming convention.
func New(naming Naming) *Registry {
	if naming.Case == "" {
		naming.Case = CasePreserve
	}
	return &Registry{
		naming:  naming,
		entries: make(map[string]*entry),
	}
}

// Load reads and parses a schema file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w: %w", path, pgload.ErrInvalidConfig, err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML. All definition errors are collected.
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid schema YAML: %v: %w", err, pgload.ErrInvalidConfig)
	}
	return FromFile(f)
}

// FromFile builds a registry from an already decoded schema document.
func FromFile(f File) (*Registry, error) {
	switch f.Naming.Case {
	case "", CasePreserve, CaseUpper, CaseLower:
	default:
		return nil, fmt.Errorf("naming case %q (want preserve, upper or lower): %w", f.Naming.Case, pgload.ErrInvalidConfig)
	}

	r := New(f.Naming)
	var errs []error
	for _, def := range f.Types {
		rt, err := def.RecordType()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Register(rt, def.Table, def.FilePattern); err != nil {
			errs = append(errs, err)
		}
	}
	if len(f.Types) == 0 {
		errs = append(errs, fmt.Errorf("schema declares no record types: %w", pgload.ErrInvalidConfig))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordType converts the definition, resolving every kind name.
func (d TypeDef) RecordType() (*pgload.RecordType, error) {
	rt := &pgload.RecordType{Name: d.Name, Fields: make([]pgload.Field, 0, len(d.Fields))}
	for _, fd := range d.Fields {
		kind, err := pgload.ParseKind(fd.Kind)
		if err != nil {
			return nil, fmt.Errorf("record type %s field %s: %w", d.Name, fd.Name, err)
		}
		rt.Fields = append(rt.Fields, pgload.Field{Name: fd.Name, Kind: kind})
	}
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	return rt, nil
}

// Register adds a record type. table and pattern are optional overrides.
func (r *Registry) Register(rt *pgload.RecordType, table, pattern string) error {
	if rt == nil {
		return fmt.Errorf("record type cannot be nil: %w", pgload.ErrInvalidConfig)
	}
	if err := rt.Validate(); err != nil {
		return err
	}
	if pattern != "" {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("record type %s file_pattern %q: %v: %w", rt.Name, pattern, err, pgload.ErrInvalidConfig)
		}
	}

	key := strings.ToLower(rt.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("record type %s registered twice: %w", rt.Name, pgload.ErrInvalidConfig)
	}
	r.entries[key] = &entry{recordType: rt, table: table, pattern: strings.ToLower(pattern)}
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the record type registered under name (case-insensitive).
func (r *Registry) Lookup(name string) (*pgload.RecordType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("record type %q: %w", name, pgload.ErrUnknownRecordType)
	}
	return e.recordType, nil
}

// Names returns the registered record type names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.recordType.Name)
	}
	sort.Strings(names)
	return names
}

// ResolveFile maps a file path to a record type.
// Explicit file patterns are tried first in registration order; otherwise the
// file's base name, without extension and trailing digits, '_' or '-', must
// equal a type name.
func (r *Registry) ResolveFile(path string) (*pgload.RecordType, bool) {
	base := strings.ToLower(filepath.Base(path))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range r.order {
		e := r.entries[key]
		if e.pattern == "" {
			continue
		}
		if ok, _ := filepath.Match(e.pattern, base); ok {
			return e.recordType, true
		}
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimRight(stem, "0123456789_-")
	if e, ok := r.entries[stem]; ok {
		return e.recordType, true
	}
	return nil, false
}

// TableName implements pgload.TableNamer.
// An unregistered name still gets the naming convention applied.
func (r *Registry) TableName(recordTypeName string) string {
	r.mu.RLock()
	e, ok := r.entries[strings.ToLower(recordTypeName)]
	naming := r.naming
	r.mu.RUnlock()

	if ok && e.table != "" {
		return e.table
	}

	name := naming.Prefix + recordTypeName + naming.Suffix
	switch naming.Case {
	case CaseUpper:
		return strings.ToUpper(name)
	case CaseLower:
		return strings.ToLower(name)
	default:
		return name
	}
}

var _ pgload.TableNamer = (*Registry)(nil)
