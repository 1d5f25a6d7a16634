package mql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseDocuments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bson.D
	}{
		{
			name:  "bare and quoted keys",
			input: `{find: "users", "filter": {name: "Ann"}}`,
			want: bson.D{
				{Key: "find", Value: "users"},
				{Key: "filter", Value: bson.D{{Key: "name", Value: "Ann"}}},
			},
		},
		{
			name:  "operator keys stay bare",
			input: `{find: "users", filter: {age: {$gt: 21}}}`,
			want: bson.D{
				{Key: "find", Value: "users"},
				{Key: "filter", Value: bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int32(21)}}}}},
			},
		},
		{
			name:  "placeholder becomes the undefined sentinel",
			input: `{find: "users", filter: {name: ?}}`,
			want: bson.D{
				{Key: "find", Value: "users"},
				{Key: "filter", Value: bson.D{{Key: "name", Value: primitive.Undefined{}}}},
			},
		},
		{
			name:  "arrays and nesting",
			input: `{aggregate: "users", pipeline: [{$match: {status: {$in: ["a", "b"]}}}, {$limit: 5}]}`,
			want: bson.D{
				{Key: "aggregate", Value: "users"},
				{Key: "pipeline", Value: bson.A{
					bson.D{{Key: "$match", Value: bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{"a", "b"}}}}}}},
					bson.D{{Key: "$limit", Value: int32(5)}},
				}},
			},
		},
		{
			name:  "keyword values",
			input: `{a: true, b: false, c: null}`,
			want: bson.D{
				{Key: "a", Value: true},
				{Key: "b", Value: false},
				{Key: "c", Value: primitive.Null{}},
			},
		},
		{
			name:  "empty document and array",
			input: `{filter: {}, pipeline: []}`,
			want: bson.D{
				{Key: "filter", Value: bson.D{}},
				{Key: "pipeline", Value: bson.A{}},
			},
		},
		{
			name:  "string escapes",
			input: `{name: "a\"b\\c\nd"}`,
			want:  bson.D{{Key: "name", Value: "a\"b\\c\nd"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc)
		})
	}
}

func TestParseNumericNarrowing(t *testing.T) {
	tests := []struct {
		input string
		want  any
	}{
		{`{n: 5}`, int32(5)},
		{`{n: -7}`, int32(-7)},
		{`{n: 2147483648}`, int64(2147483648)},
		{`{n: 1.5}`, 1.5},
		{`{n: 1e3}`, 1000.0},
		{`{n: 2.5e-2}`, 0.025},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			doc, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc[0].Value)
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		line    int
		column  int
		message string
	}{
		{
			name:    "missing colon",
			input:   `{find "users"}`,
			line:    1,
			column:  7,
			message: "expected ':'",
		},
		{
			name:    "missing value",
			input:   `{find: }`,
			line:    1,
			column:  8,
			message: "expected value",
		},
		{
			name:    "unterminated document",
			input:   `{find: "users"`,
			line:    1,
			message: "expected '}' or ','",
		},
		{
			name:    "trailing tokens",
			input:   `{find: "users"} extra`,
			line:    1,
			column:  17,
			message: "after command document",
		},
		{
			name: "position spans lines",
			input: `{
  find "users"
}`,
			line:    2,
			column:  8,
			message: "expected ':'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var serr *SyntaxError
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, serr.Message, tt.message)
			assert.Equal(t, tt.line, serr.Line)
			if tt.column != 0 {
				assert.Equal(t, tt.column, serr.Column)
			}
		})
	}
}

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		unknown string
		want    string
	}{
		{"agregate", "aggregate"},
		{"fnd", "find"},
		{"updte", "update"},
		{"DELETE", "delete"},
		{"xyzzy", ""},
	}

	for _, tt := range tests {
		t.Run(tt.unknown, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestCommand(tt.unknown))
		})
	}
}
