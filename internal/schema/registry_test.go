package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgload/pkg/pgload"
)

const sampleSchema = `naming:
  prefix: stg_
  case: lower
types:
  - name: Person
    fields:
      - {name: Id, kind: integer32}
      - {name: Name, kind: text}
      - {name: Born, kind: timestamp}
  - name: Order
    table: orders_raw
    file_pattern: "ord-*.xml"
    fields:
      - {name: OrderId, kind: uuid}
      - {name: Total, kind: bigint}
      - {name: Paid, kind: bool}
`

func TestParse_Sample(t *testing.T) {
	r, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	assert.Equal(t, []string{"Order", "Person"}, r.Names())

	person, err := r.Lookup("person")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NAME", "BORN"}, person.Columns())
	assert.Equal(t, pgload.KindTimestamp, person.Fields[2].Kind)

	order, err := r.Lookup("ORDER")
	require.NoError(t, err)
	assert.Equal(t, pgload.KindUUID, order.Key().Kind)
	assert.Equal(t, pgload.KindInt64, order.Fields[1].Kind)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"invalid yaml", "{{nope", pgload.ErrInvalidConfig},
		{"no types", "naming: {case: lower}\n", pgload.ErrInvalidConfig},
		{"bad case", "naming: {case: camel}\ntypes: [{name: A, fields: [{name: x, kind: text}]}]\n", pgload.ErrInvalidConfig},
		{"unknown kind", "types: [{name: A, fields: [{name: x, kind: decimal}]}]\n", pgload.ErrUnknownKind},
		{"no fields", "types: [{name: A}]\n", pgload.ErrInvalidConfig},
		{"duplicate type", "types:\n  - {name: A, fields: [{name: x, kind: text}]}\n  - {name: a, fields: [{name: y, kind: text}]}\n", pgload.ErrInvalidConfig},
		{"bad pattern", "types: [{name: A, file_pattern: \"[\", fields: [{name: x, kind: text}]}]\n", pgload.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Nil(t, r)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSchema), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, r.Names(), 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, pgload.ErrInvalidConfig)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLookup_Unknown(t *testing.T) {
	r := New(Naming{})
	_, err := r.Lookup("Ghost")
	assert.True(t, errors.Is(err, pgload.ErrUnknownRecordType))
}

func TestResolveFile(t *testing.T) {
	r, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"/in/person.xml", "Person"},
		{"/in/Person.XML", "Person"},
		{"/in/sub/person_0001.xml", "Person"},
		{"/in/person-2024-01-01.xml", "Person"},
		{"/in/ord-17.xml", "Order"},
		{"/in/order.xml", "Order"},
		{"/in/unknown.xml", ""},
		{"/in/personal.xml", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rt, ok := r.ResolveFile(tt.path)
			if tt.want == "" {
				assert.False(t, ok)
				assert.Nil(t, rt)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, rt.Name)
		})
	}
}

func TestTableName(t *testing.T) {
	r, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	assert.Equal(t, "stg_person", r.TableName("Person"))
	assert.Equal(t, "orders_raw", r.TableName("Order"))
	assert.Equal(t, "stg_unregistered", r.TableName("Unregistered"))
}

func TestTableName_Cases(t *testing.T) {
	tests := []struct {
		naming Naming
		want   string
	}{
		{Naming{}, "Person"},
		{Naming{Case: CasePreserve, Suffix: "_v1"}, "Person_v1"},
		{Naming{Case: CaseUpper, Prefix: "t_"}, "T_PERSON"},
		{Naming{Case: CaseLower}, "person"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.naming).TableName("Person"))
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	r := New(Naming{})

	assert.Error(t, r.Register(nil, "", ""))
	assert.Error(t, r.Register(&pgload.RecordType{Name: "Empty"}, "", ""))

	rt := &pgload.RecordType{Name: "T", Fields: []pgload.Field{{Name: "k", Kind: pgload.KindInt64}}}
	require.NoError(t, r.Register(rt, "", ""))
	assert.Error(t, r.Register(rt, "", ""), "duplicate registration")
}
