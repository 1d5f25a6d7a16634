package mongosql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mongosql-engine/mongosql/engine/ast"
	"github.com/mongosql-engine/mongosql/engine/mql"
	"github.com/mongosql-engine/mongosql/engine/translator"
	"github.com/mongosql-engine/mongosql/mapping"
)

// AffectedUnknown is the per-command affected count reported for batch
// entries. The batch executes as one bulk operation, so individual
// counts cannot be attributed back to entries.
const AffectedUnknown int64 = -2

var errStatementClosed = errors.New("statement is closed")

// paramCell is one mutable parameter slot in a prepared command tree.
// The tree references cells by identity, so binding a cell updates the
// command in place without re-walking it.
type paramCell struct {
	index int
	value any
	bound bool
}

// PreparedStatement is a command prepared once and executed many times
// with different parameter values. The command tree is held as a live
// document whose placeholder leaves are parameter cells; Bind fills
// cells, execution materializes an immutable snapshot.
//
// A statement is not safe for concurrent use.
type PreparedStatement struct {
	text       string
	doc        bson.D
	name       string
	kind       mapping.CommandKind
	collection string
	columns    []string
	cells      []*paramCell
	batch      []bson.D
	exec       executor
	log        *zap.Logger
	rows       *Rows
	closed     bool
}

// newStatement parses command text, classifies it, and discovers its
// parameter cells. Text starting with '{' is native command text;
// anything else is translated from SQL.
func newStatement(text string, tr *translator.Translator, exec executor, log *zap.Logger) (*PreparedStatement, error) {
	var doc bson.D
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		parsed, err := mql.Parse(trimmed)
		if err != nil {
			return nil, err
		}
		doc = parsed
	} else {
		cmd, err := tr.TranslateSQL(trimmed)
		if err != nil {
			return nil, err
		}
		doc = cmd.Doc()
	}

	s := &PreparedStatement{text: text, doc: doc, exec: exec, log: log}
	if err := s.classify(); err != nil {
		return nil, err
	}
	if err := s.resolveColumns(); err != nil {
		return nil, err
	}
	s.discoverCells()

	log.Debug("prepared statement",
		zap.String("command", s.name),
		zap.String("collection", s.collection),
		zap.Int("parameters", len(s.cells)))
	return s, nil
}

// classify reads the command word and target collection off the first
// key of the document.
func (s *PreparedStatement) classify() error {
	if len(s.doc) == 0 {
		return &mql.SyntaxError{Message: "empty command document"}
	}
	first := s.doc[0]
	kind, ok := mapping.CommandKinds[first.Key]
	if !ok {
		detail := "unknown command"
		if hint := mql.SuggestCommand(first.Key); hint != "" {
			detail = fmt.Sprintf("unknown command, did you mean '%s'", hint)
		}
		return &translator.UnsupportedError{Construct: fmt.Sprintf("command '%s'", first.Key), Detail: detail}
	}
	s.name = first.Key
	s.kind = kind
	if coll, isString := first.Value.(string); isString {
		s.collection = coll
	} else if first.Key != "noop" {
		return &mql.SyntaxError{Message: fmt.Sprintf("command '%s' requires a collection name", first.Key)}
	}
	return nil
}

// resolveColumns derives the ordered result column names from the
// command's projection, when it has one. Commands without a projection
// discover columns from the first result document instead.
func (s *PreparedStatement) resolveColumns() error {
	if s.kind != mapping.KindQuery {
		return nil
	}

	var spec bson.D
	switch s.name {
	case "aggregate":
		pipeline, _ := lookupKey(s.doc, "pipeline").(bson.A)
		for _, raw := range pipeline {
			stage, ok := raw.(bson.D)
			if !ok || len(stage) == 0 {
				continue
			}
			if stage[0].Key == "$project" {
				spec, _ = stage[0].Value.(bson.D)
			}
		}
	case "find":
		spec, _ = lookupKey(s.doc, "projection").(bson.D)
	}
	if spec == nil {
		return nil
	}

	project, err := ast.ParseProjection(spec)
	if err != nil {
		return err
	}
	s.columns = project.Columns()
	return nil
}

func lookupKey(doc bson.D, key string) any {
	for _, e := range doc {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// discoverCells replaces every placeholder leaf in the command tree
// with a fresh parameter cell and numbers the cells 1-based in
// statement-text order. Translated placeholders carry an explicit text
// ordinal; the command document's key order does not follow the SQL
// clause order (an update renders its filter before its assignments),
// so document order alone would misnumber them. Parsed command text
// discovers placeholders in document order, which is text order there.
func (s *PreparedStatement) discoverCells() {
	s.doc = replacePlaceholders(s.doc, &s.cells).(bson.D)
	sort.SliceStable(s.cells, func(i, j int) bool { return s.cells[i].index < s.cells[j].index })
	for i, cell := range s.cells {
		cell.index = i + 1
	}
}

func replacePlaceholders(v any, cells *[]*paramCell) any {
	switch t := v.(type) {
	case bson.D:
		for i := range t {
			t[i].Value = replacePlaceholders(t[i].Value, cells)
		}
		return t
	case bson.A:
		for i := range t {
			t[i] = replacePlaceholders(t[i], cells)
		}
		return t
	case ast.Placeholder:
		cell := &paramCell{index: t.Ordinal}
		if cell.index == 0 {
			cell.index = len(*cells) + 1
		}
		*cells = append(*cells, cell)
		return cell
	case primitive.Undefined:
		cell := &paramCell{index: len(*cells) + 1}
		*cells = append(*cells, cell)
		return cell
	default:
		return v
	}
}

// materialize deep-copies the command tree, substituting each cell's
// bound value. The snapshot shares no mutable structure with the live
// tree, so later binds and resets cannot disturb it.
func materialize(v any) any {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: materialize(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = materialize(item)
		}
		return out
	case *paramCell:
		return t.value
	default:
		return v
	}
}

// NumParams reports the number of parameter markers in the command.
func (s *PreparedStatement) NumParams() int { return len(s.cells) }

// Columns reports the ordered result column names, or nil when the
// command has no projection and columns come from the first document.
func (s *PreparedStatement) Columns() []string { return s.columns }

// Collection reports the command's target collection.
func (s *PreparedStatement) Collection() string { return s.collection }

// Bind assigns a value to the 1-based parameter index. Rebinding an
// index overwrites the previous value.
func (s *PreparedStatement) Bind(index int, value any) error {
	if s.closed {
		return errStatementClosed
	}
	if index < 1 || index > len(s.cells) {
		return &ParameterError{
			Index:  index,
			Reason: fmt.Sprintf("index out of range, statement has %d parameters", len(s.cells)),
		}
	}
	cell := s.cells[index-1]
	cell.value = normalizeParam(value)
	cell.bound = true
	return nil
}

// ClearParameters resets every cell to unbound.
func (s *PreparedStatement) ClearParameters() {
	for _, cell := range s.cells {
		cell.value = nil
		cell.bound = false
	}
}

// normalizeParam maps caller-side values onto their document
// representations. Integers widen to int64, and slices become arrays
// so one parameter can carry a whole element collection.
func normalizeParam(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case []any:
		return bson.A(t)
	case []string:
		out := make(bson.A, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make(bson.A, len(t))
		for i, n := range t {
			out[i] = int64(n)
		}
		return out
	case []int64:
		out := make(bson.A, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case []float64:
		out := make(bson.A, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out
	default:
		return v
	}
}

// CheckAllBound fails on the first unbound parameter in index order.
func (s *PreparedStatement) CheckAllBound() error {
	for _, cell := range s.cells {
		if !cell.bound {
			return &ParameterError{Index: cell.index, Reason: "parameter is not bound"}
		}
	}
	return nil
}

// snapshot validates completeness and materializes the bound command.
func (s *PreparedStatement) snapshot() (bson.D, error) {
	if err := s.CheckAllBound(); err != nil {
		return nil, err
	}
	doc := materialize(s.doc).(bson.D)
	if err := validateNullComparisons(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// validateNullComparisons rejects ordered and membership comparison
// operators applied to null anywhere in the command tree. The store's
// null matching also covers missing fields, which does not line up
// with three-valued comparison semantics.
// TODO: translate null comparisons through $exists/$type guards and
// lift this restriction.
func validateNullComparisons(v any) error {
	switch t := v.(type) {
	case bson.D:
		for _, e := range t {
			if mapping.NullRestrictedOperators[e.Key] && containsNull(e.Value) {
				return &translator.UnsupportedError{
					Construct: fmt.Sprintf("%s against null", e.Key),
					Detail:    "null comparisons beyond equality are not translated",
				}
			}
			if err := validateNullComparisons(e.Value); err != nil {
				return err
			}
		}
	case bson.A:
		for _, item := range t {
			if err := validateNullComparisons(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func containsNull(v any) bool {
	switch t := v.(type) {
	case nil, primitive.Null:
		return true
	case bson.A:
		for _, item := range t {
			if isNull(item) {
				return true
			}
		}
	}
	return false
}

func isNull(v any) bool {
	switch v.(type) {
	case nil, primitive.Null:
		return true
	}
	return false
}

// Query executes a query-kind command and returns its result rows.
// Querying again closes the cursor of the previous result set.
func (s *PreparedStatement) Query(ctx context.Context) (*Rows, error) {
	if s.closed {
		return nil, errStatementClosed
	}
	if s.kind != mapping.KindQuery {
		return nil, &translator.UnsupportedError{
			Construct: fmt.Sprintf("command '%s'", s.name),
			Detail:    "write commands do not produce rows, execute them instead",
		}
	}
	doc, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	cursor, err := s.exec.Query(ctx, s.collection, doc)
	if err != nil {
		return nil, err
	}
	rows, err := newRows(ctx, cursor, s.columns)
	if err != nil {
		return nil, err
	}
	if s.rows != nil {
		_ = s.rows.Close()
	}
	s.rows = rows
	return rows, nil
}

// Exec executes a write-kind command and returns the affected count.
func (s *PreparedStatement) Exec(ctx context.Context) (int64, error) {
	if s.closed {
		return 0, errStatementClosed
	}
	if s.kind != mapping.KindWrite {
		return 0, &translator.UnsupportedError{
			Construct: fmt.Sprintf("command '%s'", s.name),
			Detail:    "query commands produce rows, query them instead",
		}
	}
	doc, err := s.snapshot()
	if err != nil {
		return 0, err
	}
	return s.exec.Write(ctx, s.collection, doc)
}

// AddBatch snapshots the currently bound command onto the batch and
// resets the parameters for the next entry. All parameters must be
// bound at the time of the call.
func (s *PreparedStatement) AddBatch() error {
	if s.closed {
		return errStatementClosed
	}
	doc, err := s.snapshot()
	if err != nil {
		return err
	}
	s.batch = append(s.batch, doc)
	s.ClearParameters()
	return nil
}

// ClearBatch discards all accumulated batch entries.
func (s *PreparedStatement) ClearBatch() {
	s.batch = nil
}

// ExecuteBatch executes the accumulated entries in insertion order as
// one ordered bulk operation and clears the batch. Only write-kind
// commands batch; the per-entry counts are AffectedUnknown.
func (s *PreparedStatement) ExecuteBatch(ctx context.Context) ([]int64, error) {
	if s.closed {
		return nil, errStatementClosed
	}
	if !mapping.IsWriteCommand(s.name) {
		return nil, &translator.UnsupportedError{
			Construct: fmt.Sprintf("batched command '%s'", s.name),
			Detail:    "only write commands batch",
		}
	}
	if len(s.batch) == 0 {
		return nil, &ParameterError{Reason: "batch is empty"}
	}

	docs := s.batch
	s.batch = nil
	if _, err := s.exec.WriteBatch(ctx, s.collection, docs); err != nil {
		return nil, err
	}
	counts := make([]int64, len(docs))
	for i := range counts {
		counts[i] = AffectedUnknown
	}
	return counts, nil
}

// Cancel is not supported: commands execute synchronously on the
// calling goroutine, and interruption happens through the context
// passed to the execute methods.
func (s *PreparedStatement) Cancel() error {
	return &translator.UnsupportedError{Construct: "statement cancellation", Detail: "cancel via the execution context"}
}

// Close releases the statement and any cursor left open by the last
// query. Closing twice is a no-op.
func (s *PreparedStatement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cells = nil
	s.batch = nil
	if s.rows != nil {
		rows := s.rows
		s.rows = nil
		return rows.Close()
	}
	return nil
}
