package mongosql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mongosql-engine/mongosql/engine/translator"
	"github.com/mongosql-engine/mongosql/mapping"
)

// DriverName is the name this driver registers under.
const DriverName = "mongosql"

func init() {
	sql.Register(DriverName, &Driver{})
}

// config is the shared knob set of connectors and wrapped clients.
type config struct {
	naming mapping.NamingStrategy
	log    *zap.Logger
}

func defaultConfig() config {
	return config{naming: mapping.NamingExact, log: zap.NewNop()}
}

// Option configures a connector or client. Programmatic options take
// precedence over anything the connection string implies.
type Option func(*config)

// WithLogger installs a logger for statement and execution debug
// events. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithNaming selects the table-to-collection naming strategy.
func WithNaming(strategy mapping.NamingStrategy) Option {
	return func(c *config) { c.naming = strategy }
}

// Driver opens connections from a connection string. The database name
// is taken from the connection string path and is required.
type Driver struct{}

func (d *Driver) Open(dsn string) (driver.Conn, error) {
	connector, err := NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	return NewConnector(dsn)
}

// Connector holds the parsed connection configuration and dials on
// demand.
type Connector struct {
	dsn    string
	dbName string
	cfg    config
}

// NewConnector validates the connection string and applies options.
func NewConnector(dsn string, opts ...Option) (*Connector, error) {
	dbName, err := databaseName(dsn)
	if err != nil {
		return nil, err
	}
	c := &Connector{dsn: dsn, dbName: dbName, cfg: defaultConfig()}
	for _, opt := range opts {
		opt(&c.cfg)
	}
	return c, nil
}

func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(c.dsn))
	if err != nil {
		return nil, wrapStoreError("connect", err)
	}
	db := client.Database(c.dbName)
	return &Conn{
		client:     client,
		db:         db,
		translator: translator.New(translator.WithNaming(c.cfg.naming)),
		exec:       newExecutor(db, c.cfg.log),
		log:        c.cfg.log,
	}, nil
}

func (c *Connector) Driver() driver.Driver { return &Driver{} }

// databaseName extracts the required database name from the connection
// string path.
func databaseName(dsn string) (string, error) {
	rest := dsn
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = ""
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", fmt.Errorf("connection string must name a database, e.g. mongodb://host:27017/mydb")
	}
	return rest, nil
}

// Conn is one logical connection. The underlying client pools sockets,
// so closing a Conn disconnects the client it owns.
type Conn struct {
	client     *mongo.Client
	db         *mongo.Database
	translator *translator.Translator
	exec       executor
	log        *zap.Logger
	txCtx      func(context.Context) context.Context
}

// execCtx routes execution through the open transaction's session.
// The sql package serializes use of a Conn inside a transaction, so
// every statement between BeginTx and Commit/Rollback runs here.
func (c *Conn) execCtx(ctx context.Context) context.Context {
	if c.txCtx != nil {
		return c.txCtx(ctx)
	}
	return ctx
}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	ps, err := newStatement(query, c.translator, c.exec, c.log)
	if err != nil {
		return nil, err
	}
	return &stmt{ps: ps, conn: c}, nil
}

// PrepareStatement prepares a statement with the full native API,
// including batching. Reach it through sql.Conn.Raw.
func (c *Conn) PrepareStatement(query string) (*PreparedStatement, error) {
	return newStatement(query, c.translator, c.exec, c.log)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	ctx = c.execCtx(ctx)
	ps, err := newStatement(query, c.translator, c.exec, c.log)
	if err != nil {
		return nil, err
	}
	if err := bindNamed(ps, args); err != nil {
		ps.Close()
		return nil, err
	}
	rows, err := ps.Query(ctx)
	if err != nil {
		ps.Close()
		return nil, err
	}
	return rows, nil
}

func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ctx = c.execCtx(ctx)
	ps, err := newStatement(query, c.translator, c.exec, c.log)
	if err != nil {
		return nil, err
	}
	defer ps.Close()
	if err := bindNamed(ps, args); err != nil {
		return nil, err
	}
	affected, err := ps.Exec(ctx)
	if err != nil {
		return nil, err
	}
	return execResult{affected: affected}, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return wrapStoreError("ping", err)
	}
	return nil
}

// CheckNamedValue admits any value; parameters are serialized into
// command documents, not a fixed SQL type system.
func (c *Conn) CheckNamedValue(*driver.NamedValue) error { return nil }

func (c *Conn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("transactions require BeginTx with a context")
}

func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	session, err := c.client.StartSession()
	if err != nil {
		return nil, wrapStoreError("start session", err)
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, wrapStoreError("start transaction", err)
	}
	c.txCtx = func(ctx context.Context) context.Context {
		return mongo.NewSessionContext(ctx, session)
	}
	return &Tx{conn: c, session: session, ctx: ctx}, nil
}

func (c *Conn) Close() error {
	return c.client.Disconnect(context.Background())
}

// Tx brackets commands in a server-side transaction. Transactions
// require a replica set or sharded deployment.
type Tx struct {
	conn    *Conn
	session mongo.Session
	ctx     context.Context
}

func (t *Tx) Commit() error {
	defer t.end()
	return t.session.CommitTransaction(t.ctx)
}

func (t *Tx) Rollback() error {
	defer t.end()
	return t.session.AbortTransaction(t.ctx)
}

func (t *Tx) end() {
	t.conn.txCtx = nil
	t.session.EndSession(t.ctx)
}

// stmt adapts a PreparedStatement to the narrow driver interface. It
// keeps its Conn so execution joins the transaction open on it, if any.
type stmt struct {
	ps   *PreparedStatement
	conn *Conn
}

func (s *stmt) Close() error { return s.ps.Close() }

func (s *stmt) NumInput() int { return s.ps.NumParams() }

func (s *stmt) CheckNamedValue(*driver.NamedValue) error { return nil }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := bindNamed(s.ps, args); err != nil {
		return nil, err
	}
	affected, err := s.ps.Exec(s.conn.execCtx(ctx))
	if err != nil {
		return nil, err
	}
	return execResult{affected: affected}, nil
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := bindNamed(s.ps, args); err != nil {
		return nil, err
	}
	return s.ps.Query(s.conn.execCtx(ctx))
}

func bindNamed(ps *PreparedStatement, args []driver.NamedValue) error {
	for _, arg := range args {
		if err := ps.Bind(arg.Ordinal, arg.Value); err != nil {
			return err
		}
	}
	return nil
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return named
}
