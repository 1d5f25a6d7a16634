package translator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongosql-engine/mongosql/engine/ast"
	"github.com/mongosql-engine/mongosql/mapping"
)

func translate(t *testing.T, sql string) bson.D {
	t.Helper()
	cmd, err := New().TranslateSQL(sql)
	require.NoError(t, err)
	return cmd.Doc()
}

func pipeline(t *testing.T, sql string) bson.A {
	t.Helper()
	doc := translate(t, sql)
	require.Equal(t, "aggregate", doc[0].Key)
	return doc[1].Value.(bson.A)
}

func matchStage(t *testing.T, sql string) bson.D {
	t.Helper()
	for _, raw := range pipeline(t, sql) {
		stage := raw.(bson.D)
		if stage[0].Key == "$match" {
			return stage[0].Value.(bson.D)
		}
	}
	t.Fatalf("no $match stage in %q", sql)
	return nil
}

func TestTranslateSelectFilters(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bson.D
	}{
		{
			name: "equality",
			sql:  "SELECT * FROM users WHERE name = 'Ann'",
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$eq", Value: "Ann"}}}},
		},
		{
			name: "greater than",
			sql:  "SELECT * FROM users WHERE age > 21",
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(21)}}}},
		},
		{
			name: "mirrored comparison",
			sql:  "SELECT * FROM users WHERE 21 < age",
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(21)}}}},
		},
		{
			name: "not equal",
			sql:  "SELECT * FROM users WHERE age != 30",
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$ne", Value: int64(30)}}}},
		},
		{
			name: "negative literal",
			sql:  "SELECT * FROM accounts WHERE balance < -10",
			want: bson.D{{Key: "balance", Value: bson.D{{Key: "$lt", Value: int64(-10)}}}},
		},
		{
			name: "placeholder",
			sql:  "SELECT * FROM users WHERE name = ?",
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$eq", Value: ast.Placeholder{Ordinal: 1}}}}},
		},
		{
			name: "in list",
			sql:  "SELECT * FROM users WHERE status IN ('active', 'trial')",
			want: bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{"active", "trial"}}}}},
		},
		{
			name: "not in list",
			sql:  "SELECT * FROM users WHERE status NOT IN ('banned')",
			want: bson.D{{Key: "status", Value: bson.D{{Key: "$nin", Value: bson.A{"banned"}}}}},
		},
		{
			name: "like becomes anchored regex",
			sql:  "SELECT * FROM users WHERE name LIKE 'Jo%'",
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^Jo.*$"}}}},
		},
		{
			name: "like escapes regex metacharacters",
			sql:  "SELECT * FROM files WHERE path LIKE 'a.b_c%'",
			want: bson.D{{Key: "path", Value: bson.D{{Key: "$regex", Value: "^a\\.b.c.*$"}}}},
		},
		{
			name: "not like",
			sql:  "SELECT * FROM users WHERE name NOT LIKE 'Jo%'",
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$regex", Value: "^Jo.*$"}}}}}},
		},
		{
			name: "between",
			sql:  "SELECT * FROM users WHERE age BETWEEN 18 AND 30",
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: int64(18)}}}},
				bson.D{{Key: "age", Value: bson.D{{Key: "$lte", Value: int64(30)}}}},
			}}},
		},
		{
			name: "not between",
			sql:  "SELECT * FROM users WHERE age NOT BETWEEN 18 AND 30",
			want: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: int64(18)}}}},
				bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(30)}}}},
			}}},
		},
		{
			name: "is null",
			sql:  "SELECT * FROM users WHERE email IS NULL",
			want: bson.D{{Key: "email", Value: bson.D{{Key: "$eq", Value: primitive.Null{}}}}},
		},
		{
			name: "is not null avoids ne",
			sql:  "SELECT * FROM users WHERE email IS NOT NULL",
			want: bson.D{{Key: "email", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$eq", Value: primitive.Null{}}}}}}},
		},
		{
			name: "and chain flattens",
			sql:  "SELECT * FROM users WHERE a = 1 AND b = 2 AND c = 3",
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: int64(1)}}}},
				bson.D{{Key: "b", Value: bson.D{{Key: "$eq", Value: int64(2)}}}},
				bson.D{{Key: "c", Value: bson.D{{Key: "$eq", Value: int64(3)}}}},
			}}},
		},
		{
			name: "or chain flattens",
			sql:  "SELECT * FROM users WHERE a = 1 OR b = 2 OR c = 3",
			want: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: int64(1)}}}},
				bson.D{{Key: "b", Value: bson.D{{Key: "$eq", Value: int64(2)}}}},
				bson.D{{Key: "c", Value: bson.D{{Key: "$eq", Value: int64(3)}}}},
			}}},
		},
		{
			name: "not flips operator",
			sql:  "SELECT * FROM users WHERE NOT age > 21",
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$lte", Value: int64(21)}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchStage(t, tt.sql))
		})
	}
}

func TestTranslateSelectShape(t *testing.T) {
	t.Run("bare select has no match stage", func(t *testing.T) {
		doc := translate(t, "SELECT * FROM users")
		assert.Equal(t, bson.D{
			{Key: "aggregate", Value: "users"},
			{Key: "pipeline", Value: bson.A{}},
		}, doc)
	})

	t.Run("projection keeps column order", func(t *testing.T) {
		stages := pipeline(t, "SELECT title, author FROM books")
		require.Len(t, stages, 1)
		assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{
			{Key: "title", Value: int32(1)},
			{Key: "author", Value: int32(1)},
		}}}, stages[0].(bson.D))
	})

	t.Run("sort skip limit order", func(t *testing.T) {
		stages := pipeline(t, "SELECT * FROM users ORDER BY age DESC, name ASC LIMIT 10 OFFSET 5")
		require.Len(t, stages, 3)
		assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{
			{Key: "age", Value: int32(-1)},
			{Key: "name", Value: int32(1)},
		}}}, stages[0].(bson.D))
		assert.Equal(t, bson.D{{Key: "$skip", Value: int64(5)}}, stages[1].(bson.D))
		assert.Equal(t, bson.D{{Key: "$limit", Value: int64(10)}}, stages[2].(bson.D))
	})

	t.Run("projected command exposes result columns", func(t *testing.T) {
		cmd, err := New().TranslateSQL("SELECT title FROM books")
		require.NoError(t, err)
		agg := cmd.(ast.AggregateCommand)
		project := agg.Project()
		require.NotNil(t, project)
		assert.Equal(t, []string{"title", "_id"}, project.Columns())
	})
}

func TestTranslateJoins(t *testing.T) {
	t.Run("inner join", func(t *testing.T) {
		stages := pipeline(t, "SELECT * FROM orders o JOIN users u ON o.user_id = u._id")
		require.Len(t, stages, 2)
		assert.Equal(t, bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "user_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "u"},
		}}}, stages[0].(bson.D))
		assert.Equal(t, bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$u"},
			{Key: "preserveNullAndEmptyArrays", Value: false},
		}}}, stages[1].(bson.D))
	})

	t.Run("left join preserves unmatched", func(t *testing.T) {
		stages := pipeline(t, "SELECT * FROM orders o LEFT JOIN users u ON o.user_id = u._id")
		unwind := stages[1].(bson.D)[0].Value.(bson.D)
		assert.Equal(t, bson.E{Key: "preserveNullAndEmptyArrays", Value: true}, unwind[1])
	})

	t.Run("reversed condition reorients", func(t *testing.T) {
		stages := pipeline(t, "SELECT * FROM orders o JOIN users u ON u._id = o.user_id")
		lookup := stages[0].(bson.D)[0].Value.(bson.D)
		assert.Equal(t, "user_id", lookup[1].Value)
		assert.Equal(t, "_id", lookup[2].Value)
	})

	t.Run("joined field filters address the unwound path", func(t *testing.T) {
		match := matchStage(t, "SELECT * FROM orders o JOIN users u ON o.user_id = u._id WHERE u.name = 'Ann'")
		assert.Equal(t, bson.D{{Key: "u.name", Value: bson.D{{Key: "$eq", Value: "Ann"}}}}, match)
	})
}

func TestTranslateWrites(t *testing.T) {
	t.Run("multi row insert", func(t *testing.T) {
		doc := translate(t, "INSERT INTO users (name, age) VALUES ('Ann', 30), ('Bob', 25)")
		assert.Equal(t, bson.D{
			{Key: "insert", Value: "users"},
			{Key: "documents", Value: bson.A{
				bson.D{{Key: "name", Value: "Ann"}, {Key: "age", Value: int64(30)}},
				bson.D{{Key: "name", Value: "Bob"}, {Key: "age", Value: int64(25)}},
			}},
		}, doc)
	})

	t.Run("update is multi by default", func(t *testing.T) {
		doc := translate(t, "UPDATE users SET age = 31 WHERE name = 'Ann'")
		assert.Equal(t, bson.D{
			{Key: "update", Value: "users"},
			{Key: "updates", Value: bson.A{bson.D{
				{Key: "q", Value: bson.D{{Key: "name", Value: bson.D{{Key: "$eq", Value: "Ann"}}}}},
				{Key: "u", Value: bson.D{{Key: "$set", Value: bson.D{{Key: "age", Value: int64(31)}}}}},
				{Key: "multi", Value: true},
			}}},
		}, doc)
	})

	t.Run("update limit one is single", func(t *testing.T) {
		doc := translate(t, "UPDATE users SET age = 31 WHERE name = 'Ann' LIMIT 1")
		updates := doc[1].Value.(bson.A)
		op := updates[0].(bson.D)
		assert.Equal(t, bson.E{Key: "multi", Value: false}, op[2])
	})

	t.Run("delete without limit removes all matches", func(t *testing.T) {
		doc := translate(t, "DELETE FROM users WHERE age < 18")
		assert.Equal(t, bson.D{
			{Key: "delete", Value: "users"},
			{Key: "deletes", Value: bson.A{bson.D{
				{Key: "q", Value: bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: int64(18)}}}}},
				{Key: "limit", Value: int32(0)},
			}}},
		}, doc)
	})

	t.Run("delete limit one", func(t *testing.T) {
		doc := translate(t, "DELETE FROM users WHERE age < 18 LIMIT 1")
		deletes := doc[1].Value.(bson.A)
		op := deletes[0].(bson.D)
		assert.Equal(t, bson.E{Key: "limit", Value: int32(1)}, op[1])
	})

	t.Run("unfiltered write matches everything", func(t *testing.T) {
		doc := translate(t, "DELETE FROM sessions")
		deletes := doc[1].Value.(bson.A)
		op := deletes[0].(bson.D)
		assert.Equal(t, bson.D{}, op[0].Value)
	})

	t.Run("update placeholders number in clause order", func(t *testing.T) {
		// The rendered operation puts the filter before the assignments;
		// the ordinals still follow the statement text.
		doc := translate(t, "UPDATE users SET age = ? WHERE name = ?")
		op := doc[1].Value.(bson.A)[0].(bson.D)
		q := op[0].Value.(bson.D)
		set := op[1].Value.(bson.D)[0].Value.(bson.D)
		assert.Equal(t, ast.Placeholder{Ordinal: 1}, set[0].Value)
		assert.Equal(t, ast.Placeholder{Ordinal: 2}, q[0].Value.(bson.D)[0].Value)
	})
}

func TestTranslateDDLIsNoop(t *testing.T) {
	cmd, err := New().TranslateSQL("CREATE TABLE users (id bigint, name varchar(255))")
	require.NoError(t, err)
	noop, ok := cmd.(ast.NoopCommand)
	require.True(t, ok)
	assert.Equal(t, mapping.KindWrite, noop.Kind())
}

func TestTranslateArrayFunctions(t *testing.T) {
	t.Run("contains emits type guard and equality", func(t *testing.T) {
		match := matchStage(t, "SELECT * FROM posts WHERE array_contains(tags, 'go')")
		assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "tags", Value: bson.D{{Key: "$type", Value: bson.A{"array"}}}}},
			bson.D{{Key: "tags", Value: bson.D{{Key: "$eq", Value: "go"}}}},
		}}}, match)
	})

	t.Run("contains all with array constructor", func(t *testing.T) {
		match := matchStage(t, "SELECT * FROM posts WHERE array_contains_all(tags, json_array('go', 'db'))")
		assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "tags", Value: bson.D{{Key: "$type", Value: bson.A{"array"}}}}},
			bson.D{{Key: "tags", Value: bson.D{{Key: "$all", Value: bson.A{"go", "db"}}}}},
		}}}, match)
	})

	t.Run("contains all with single placeholder collection", func(t *testing.T) {
		match := matchStage(t, "SELECT * FROM posts WHERE array_contains_all(tags, ?)")
		assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "tags", Value: bson.D{{Key: "$type", Value: bson.A{"array"}}}}},
			bson.D{{Key: "tags", Value: bson.D{{Key: "$all", Value: ast.Placeholder{Ordinal: 1}}}}},
		}}}, match)
	})

	t.Run("contains rejects non-field first argument", func(t *testing.T) {
		_, err := New().TranslateSQL("SELECT * FROM posts WHERE array_contains('tags', 'go')")
		var argErr *FunctionArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "array_contains", argErr.Function)
		assert.Equal(t, 0, argErr.Index)
	})

	t.Run("contains rejects collection second argument", func(t *testing.T) {
		_, err := New().TranslateSQL("SELECT * FROM posts WHERE array_contains(tags, json_array('a', 'b'))")
		var argErr *FunctionArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, 1, argErr.Index)
	})

	t.Run("contains all rejects multi-placeholder tuple", func(t *testing.T) {
		_, err := New().TranslateSQL("SELECT * FROM posts WHERE array_contains_all(tags, (?, ?))")
		var argErr *FunctionArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, 1, argErr.Index)
	})

	t.Run("array constructor rejected as predicate", func(t *testing.T) {
		_, err := New().TranslateSQL("SELECT * FROM posts WHERE json_array('a')")
		var ue *UnsupportedError
		require.ErrorAs(t, err, &ue)
	})
}

func TestTranslateUnsupported(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"distinct", "SELECT DISTINCT name FROM users"},
		{"group by", "SELECT name FROM users GROUP BY name"},
		{"union", "SELECT a FROM t1 UNION SELECT a FROM t2"},
		{"column alias", "SELECT name AS n FROM users"},
		{"computed column", "SELECT age + 1 FROM users"},
		{"comma join", "SELECT * FROM t1, t2"},
		{"null safe equality", "SELECT * FROM users WHERE name <=> 'x'"},
		{"unknown function", "SELECT * FROM users WHERE soundex(name) = 'x'"},
		{"field to field comparison", "SELECT * FROM users WHERE a = b"},
		{"negated logical expression", "SELECT * FROM users WHERE NOT (a = 1 AND b = 2)"},
		{"insert without column list", "INSERT INTO users VALUES ('Ann')"},
		{"insert select", "INSERT INTO users (name) SELECT name FROM old_users"},
		{"update limit above one", "UPDATE users SET age = 1 LIMIT 2"},
		{"parameter in limit", "SELECT * FROM users LIMIT ?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().TranslateSQL(tt.sql)
			require.Error(t, err)
			var ue *UnsupportedError
			if !errors.As(err, &ue) {
				// Parser-level rejections are acceptable for malformed
				// statements; translation-level ones must carry the
				// unsupported type.
				t.Logf("rejected before translation: %v", err)
			}
		})
	}
}

func TestNamingStrategies(t *testing.T) {
	tests := []struct {
		strategy mapping.NamingStrategy
		table    string
		want     string
	}{
		{mapping.NamingExact, "UserAccount", "UserAccount"},
		{mapping.NamingLower, "UserAccount", "useraccount"},
		{mapping.NamingPlural, "person", "people"},
		{mapping.NamingPlural, "Box", "boxes"},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy)+"/"+tt.table, func(t *testing.T) {
			cmd, err := New(WithNaming(tt.strategy)).TranslateSQL("SELECT * FROM " + tt.table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Collection())
		})
	}
}
