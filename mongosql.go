// Package mongosql executes SQL statements against MongoDB. Statements
// are translated into native command documents at prepare time; native
// extended JSON command text (anything starting with '{') passes
// through the same prepared-statement machinery untranslated.
//
// The package is usable two ways: through database/sql under the
// driver name "mongosql", or by wrapping an existing *mongo.Database
// in a Client.
package mongosql

import (
	"context"
	"database/sql/driver"
	"io"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mongosql-engine/mongosql/engine/ast"
	"github.com/mongosql-engine/mongosql/engine/translator"
)

// Translate renders a single SQL statement as its native command
// shape without executing it. Placeholders stay as unbound markers,
// serializing to the undefined sentinel in extended JSON.
func Translate(sql string, opts ...Option) (ast.Command, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return translator.New(translator.WithNaming(cfg.naming)).TranslateSQL(sql)
}

// Client runs statements against an existing database handle, for
// callers that already manage their own driver client and do not want
// to go through database/sql.
type Client struct {
	db         *mongo.Database
	translator *translator.Translator
	exec       executor
	cfg        config
}

// Wrap builds a Client around a connected database handle. The caller
// keeps ownership of the handle and its lifecycle.
func Wrap(db *mongo.Database, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		db:         db,
		translator: translator.New(translator.WithNaming(cfg.naming)),
		exec:       newExecutor(db, cfg.log),
		cfg:        cfg,
	}
}

// Prepare compiles statement text, SQL or native, into a reusable
// prepared statement.
func (c *Client) Prepare(text string) (*PreparedStatement, error) {
	return newStatement(text, c.translator, c.exec, c.cfg.log)
}

// Query prepares, binds and executes a query statement, draining the
// result into ordered column maps.
func (c *Client) Query(ctx context.Context, text string, args ...any) ([]map[string]any, error) {
	ps, err := c.Prepare(text)
	if err != nil {
		return nil, err
	}
	defer ps.Close()

	for i, arg := range args {
		if err := ps.Bind(i+1, arg); err != nil {
			return nil, err
		}
	}

	rows, err := ps.Query(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := rows.Columns()
	var out []map[string]any
	values := make([]driver.Value, len(columns))
	for {
		if err := rows.Next(values); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
}

// Exec prepares, binds and executes a write statement, returning the
// affected document count.
func (c *Client) Exec(ctx context.Context, text string, args ...any) (int64, error) {
	ps, err := c.Prepare(text)
	if err != nil {
		return 0, err
	}
	defer ps.Close()

	for i, arg := range args {
		if err := ps.Bind(i+1, arg); err != nil {
			return 0, err
		}
	}
	return ps.Exec(ctx)
}
