package translator

import (
	"github.com/xwb1989/sqlparser"

	"github.com/mongosql-engine/mongosql/engine/ast"
	"github.com/mongosql-engine/mongosql/mapping"
)

// RenderContext tells a sub-expression how its call site wants it
// rendered. It is passed explicitly through every recursive
// translation call; an expression kind that cannot render into the
// requested form fails with an explicit unsupported error instead of
// guessing.
type RenderContext int

const (
	// AsFilter requests a matching condition.
	AsFilter RenderContext = iota
	// AsValue requests a concrete value expression.
	AsValue
	// AsFieldPath requests a document field reference.
	AsFieldPath
	// AsContainer requests an array of values.
	AsContainer
)

func (c RenderContext) String() string {
	switch c {
	case AsFilter:
		return "filter"
	case AsValue:
		return "value"
	case AsFieldPath:
		return "field path"
	case AsContainer:
		return "container"
	default:
		return "unknown"
	}
}

// Translator walks a relational statement AST and produces an
// equivalent document command. A Translator is stateless apart from
// configuration and safe to reuse across statements.
type Translator struct {
	naming mapping.NamingStrategy
}

// Option configures a Translator.
type Option func(*Translator)

// WithNaming sets the table-to-collection naming strategy.
func WithNaming(strategy mapping.NamingStrategy) Option {
	return func(t *Translator) { t.naming = strategy }
}

// New creates a Translator. The default naming strategy keeps table
// names as written.
func New(opts ...Option) *Translator {
	t := &Translator{naming: mapping.NamingExact}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TranslateSQL parses SQL text and translates the statement.
func (t *Translator) TranslateSQL(sql string) (ast.Command, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, err
	}
	return t.Translate(stmt)
}

// Translate converts one parsed relational statement into a document
// command. Dispatch is a closed match over statement kind: adding a
// new statement form means adding exactly one arm here.
func (t *Translator) Translate(stmt sqlparser.Statement) (ast.Command, error) {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return t.translateSelect(s)
	case *sqlparser.Insert:
		return t.translateInsert(s)
	case *sqlparser.Update:
		return t.translateUpdate(s)
	case *sqlparser.Delete:
		return t.translateDelete(s)
	case *sqlparser.Union:
		return nil, unsupported("UNION", "set operations have no single-collection equivalent")
	case *sqlparser.DDL:
		// Schema statements are meaningless against a schemaless
		// store; accept and ignore them so ORM schema export works.
		return ast.NoopCommand{Statement: s.Action}, nil
	default:
		return nil, unsupported(sqlparser.String(stmt), "statement kind has no translation rule")
	}
}

// collectionName maps the statement's table name to a collection name.
func (t *Translator) collectionName(name sqlparser.TableName) string {
	return mapping.CollectionName(name.Name.String(), t.naming)
}
