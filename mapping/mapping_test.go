package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionName(t *testing.T) {
	tests := []struct {
		table    string
		strategy NamingStrategy
		want     string
	}{
		{"Users", NamingExact, "Users"},
		{"Users", NamingLower, "users"},
		{"User", NamingPlural, "users"},
		{"Person", NamingPlural, "people"},
		{"Category", NamingPlural, "categories"},
	}

	for _, tt := range tests {
		t.Run(tt.table+"/"+string(tt.strategy), func(t *testing.T) {
			assert.Equal(t, tt.want, CollectionName(tt.table, tt.strategy))
		})
	}
}

func TestOperatorMapCoversNegations(t *testing.T) {
	// Every operator with a direct negation must map both ways.
	for op, neg := range NegatedOperator {
		back, ok := NegatedOperator[neg]
		assert.True(t, ok, "negation of %s is one-way", op)
		assert.Equal(t, op, back)
	}
}

func TestCommandKinds(t *testing.T) {
	assert.Equal(t, KindQuery, CommandKinds["aggregate"])
	assert.Equal(t, KindQuery, CommandKinds["find"])
	assert.True(t, IsWriteCommand("insert"))
	assert.True(t, IsWriteCommand("noop"))
	assert.False(t, IsWriteCommand("find"))
	assert.False(t, IsWriteCommand("explain"))
}

func TestNullRestrictedOperators(t *testing.T) {
	for _, op := range []string{"$ne", "$gt", "$gte", "$lt", "$lte", "$in", "$nin"} {
		assert.True(t, NullRestrictedOperators[op], op)
	}
	assert.False(t, NullRestrictedOperators["$eq"])
}
