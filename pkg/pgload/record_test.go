package pgload_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgload/pkg/pgload"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want pgload.Kind
	}{
		{"integer32", pgload.KindInt32},
		{"INT", pgload.KindInt32},
		{"integer64", pgload.KindInt64},
		{"bigint", pgload.KindInt64},
		{"timestamp", pgload.KindTimestamp},
		{"DateTime", pgload.KindTimestamp},
		{"bool", pgload.KindBoolean},
		{"guid", pgload.KindUUID},
		{"identifier", pgload.KindUUID},
		{" string ", pgload.KindText},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := pgload.ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKind_Unknown(t *testing.T) {
	_, err := pgload.ParseKind("decimal")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgload.ErrUnknownKind))
}

func TestKind_StringRoundTrip(t *testing.T) {
	for k := pgload.KindInt32; k <= pgload.KindText; k++ {
		parsed, err := pgload.ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	assert.False(t, pgload.KindInvalid.IsValid())
}

func TestRecordType_Columns(t *testing.T) {
	rt := &pgload.RecordType{
		Name: "Person",
		Fields: []pgload.Field{
			{Name: "Id", Kind: pgload.KindInt32},
			{Name: "fullName", Kind: pgload.KindText},
		},
	}

	assert.Equal(t, []string{"ID", "FULLNAME"}, rt.Columns())
	assert.Equal(t, "Id", rt.Key().Name)
	assert.NoError(t, rt.Validate())
}

func TestRecordType_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rt      pgload.RecordType
		wantErr error
	}{
		{"no name", pgload.RecordType{Fields: []pgload.Field{{Name: "a", Kind: pgload.KindText}}}, pgload.ErrInvalidConfig},
		{"no fields", pgload.RecordType{Name: "T"}, pgload.ErrInvalidConfig},
		{"unnamed field", pgload.RecordType{Name: "T", Fields: []pgload.Field{{Kind: pgload.KindText}}}, pgload.ErrInvalidConfig},
		{"invalid kind", pgload.RecordType{Name: "T", Fields: []pgload.Field{{Name: "a"}}}, pgload.ErrUnknownKind},
		{"duplicate column", pgload.RecordType{Name: "T", Fields: []pgload.Field{
			{Name: "a", Kind: pgload.KindText},
			{Name: "A", Kind: pgload.KindInt32},
		}}, pgload.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rt.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestBatch_Clear(t *testing.T) {
	b := &pgload.Batch{SourceID: "a.xml", Records: make([]pgload.Record, 3)}
	assert.Equal(t, 3, b.Len())
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "a.xml", b.SourceID)
}
