package ast

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongosql-engine/mongosql/mapping"
)

// Command is a top-level command shape ready for literal execution.
// Doc serializes to the native command document with no further
// lookups; placeholders still render as the undefined sentinel.
type Command interface {
	Node
	Collection() string
	Kind() mapping.CommandKind
	Doc() bson.D
}

// ExtJSON renders a command as canonical extended JSON command text,
// the form the driver facade accepts at prepare time. Placeholders
// appear as {"$undefined": true}.
func ExtJSON(c Command) (string, error) {
	raw, err := bson.MarshalExtJSON(wireValue(c.Doc()), true, false)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// wireValue rewrites placeholder markers to the undefined sentinel so
// the document marshals as plain extended JSON.
func wireValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: wireValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = wireValue(item)
		}
		return out
	case Placeholder:
		return primitive.Undefined{}
	default:
		return v
	}
}

// ============================================================================
// AGGREGATE
// ============================================================================

// Stage is one aggregation pipeline stage document.
type Stage interface {
	Node
	Doc() bson.D
}

// MatchStage filters the pipeline input ($match).
type MatchStage struct {
	Filters []Filter
}

func (s MatchStage) node() {}
func (s MatchStage) Doc() bson.D {
	return bson.D{{Key: "$match", Value: MergeFilters(s.Filters)}}
}

// SortField is one key of a $sort stage; Descending flips the order.
type SortField struct {
	Path       string
	Descending bool
}

// SortStage orders the pipeline output ($sort). Key order matters on
// the wire, which is why this is a slice and not a map.
type SortStage struct {
	Fields []SortField
}

func (s SortStage) node() {}
func (s SortStage) Doc() bson.D {
	keys := make(bson.D, len(s.Fields))
	for i, f := range s.Fields {
		dir := int32(1)
		if f.Descending {
			dir = -1
		}
		keys[i] = bson.E{Key: f.Path, Value: dir}
	}
	return bson.D{{Key: "$sort", Value: keys}}
}

// LookupStage joins documents from another collection ($lookup) by a
// single-field equality condition.
type LookupStage struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
}

func (s LookupStage) node() {}
func (s LookupStage) Doc() bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: s.From},
		{Key: "localField", Value: s.LocalField},
		{Key: "foreignField", Value: s.ForeignField},
		{Key: "as", Value: s.As},
	}}}
}

// UnwindStage flattens a lookup result array to one document per
// element ($unwind). PreserveEmpty keeps documents with no match,
// giving left-join instead of inner-join semantics.
type UnwindStage struct {
	Path          string
	PreserveEmpty bool
}

func (s UnwindStage) node() {}
func (s UnwindStage) Doc() bson.D {
	return bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$" + s.Path},
		{Key: "preserveNullAndEmptyArrays", Value: s.PreserveEmpty},
	}}}
}

// LimitStage caps the number of output documents ($limit).
type LimitStage struct {
	N int64
}

func (s LimitStage) node()       {}
func (s LimitStage) Doc() bson.D { return bson.D{{Key: "$limit", Value: s.N}} }

// SkipStage drops leading documents ($skip).
type SkipStage struct {
	N int64
}

func (s SkipStage) node()       {}
func (s SkipStage) Doc() bson.D { return bson.D{{Key: "$skip", Value: s.N}} }

// AggregateCommand is an ordered aggregation pipeline against one
// collection: {aggregate: <collection>, pipeline: [...]}.
type AggregateCommand struct {
	Coll   string
	Stages []Stage
}

func (c AggregateCommand) node() {}
func (c AggregateCommand) Collection() string { return c.Coll }
func (c AggregateCommand) Kind() mapping.CommandKind { return mapping.KindQuery }

func (c AggregateCommand) Doc() bson.D {
	pipeline := make(bson.A, len(c.Stages))
	for i, stage := range c.Stages {
		pipeline[i] = stage.Doc()
	}
	return bson.D{
		{Key: "aggregate", Value: c.Coll},
		{Key: "pipeline", Value: pipeline},
	}
}

// Project returns the command's $project stage, or nil.
func (c AggregateCommand) Project() *ProjectStage {
	for _, stage := range c.Stages {
		if p, ok := stage.(ProjectStage); ok {
			return &p
		}
	}
	return nil
}

// ============================================================================
// FIND
// ============================================================================

// FindCommand is the point-query command form:
// {find: <collection>, filter, sort, projection, limit, skip}.
// Optional parts are omitted from the document when unset; the filter
// is always present, empty matching everything.
type FindCommand struct {
	Coll       string
	Filters    []Filter
	Sort       []SortField
	Projection *ProjectStage
	Limit      int64
	Skip       int64
}

func (c FindCommand) node() {}
func (c FindCommand) Collection() string { return c.Coll }
func (c FindCommand) Kind() mapping.CommandKind { return mapping.KindQuery }

func (c FindCommand) Doc() bson.D {
	doc := bson.D{
		{Key: "find", Value: c.Coll},
		{Key: "filter", Value: MergeFilters(c.Filters)},
	}
	if len(c.Sort) > 0 {
		keys := make(bson.D, len(c.Sort))
		for i, f := range c.Sort {
			dir := int32(1)
			if f.Descending {
				dir = -1
			}
			keys[i] = bson.E{Key: f.Path, Value: dir}
		}
		doc = append(doc, bson.E{Key: "sort", Value: keys})
	}
	if c.Projection != nil {
		doc = append(doc, bson.E{Key: "projection", Value: c.Projection.Spec()})
	}
	if c.Limit > 0 {
		doc = append(doc, bson.E{Key: "limit", Value: c.Limit})
	}
	if c.Skip > 0 {
		doc = append(doc, bson.E{Key: "skip", Value: c.Skip})
	}
	return doc
}

// Project returns the command's projection, or nil.
func (c FindCommand) Project() *ProjectStage { return c.Projection }

// ============================================================================
// WRITES
// ============================================================================

// Field is one name/value pair of a document to write.
type Field struct {
	Name  string
	Value Value
}

// Document is an ordered document to insert.
type Document struct {
	Fields []Field
}

func (d Document) doc() bson.D {
	out := make(bson.D, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = bson.E{Key: f.Name, Value: f.Value.BSON()}
	}
	return out
}

// InsertCommand inserts documents:
// {insert: <collection>, documents: [...]}.
type InsertCommand struct {
	Coll      string
	Documents []Document
}

func (c InsertCommand) node() {}
func (c InsertCommand) Collection() string { return c.Coll }
func (c InsertCommand) Kind() mapping.CommandKind { return mapping.KindWrite }

func (c InsertCommand) Doc() bson.D {
	docs := make(bson.A, len(c.Documents))
	for i, d := range c.Documents {
		docs[i] = d.doc()
	}
	return bson.D{
		{Key: "insert", Value: c.Coll},
		{Key: "documents", Value: docs},
	}
}

// UpdateOp is one update operation: filter, $set body, multiplicity.
// Multi selects between single-match and all-matches semantics.
type UpdateOp struct {
	Filters []Filter
	Set     []Field
	Multi   bool
}

func (o UpdateOp) doc() bson.D {
	set := make(bson.D, len(o.Set))
	for i, f := range o.Set {
		set[i] = bson.E{Key: f.Name, Value: f.Value.BSON()}
	}
	return bson.D{
		{Key: "q", Value: MergeFilters(o.Filters)},
		{Key: "u", Value: bson.D{{Key: "$set", Value: set}}},
		{Key: "multi", Value: o.Multi},
	}
}

// UpdateCommand applies update operations:
// {update: <collection>, updates: [{q, u, multi}, ...]}.
type UpdateCommand struct {
	Coll    string
	Updates []UpdateOp
}

func (c UpdateCommand) node() {}
func (c UpdateCommand) Collection() string { return c.Coll }
func (c UpdateCommand) Kind() mapping.CommandKind { return mapping.KindWrite }

func (c UpdateCommand) Doc() bson.D {
	updates := make(bson.A, len(c.Updates))
	for i, u := range c.Updates {
		updates[i] = u.doc()
	}
	return bson.D{
		{Key: "update", Value: c.Coll},
		{Key: "updates", Value: updates},
	}
}

// DeleteOp is one delete operation. Limit 1 deletes the first match,
// limit 0 deletes every match.
type DeleteOp struct {
	Filters []Filter
	Limit   int32
}

func (o DeleteOp) doc() bson.D {
	return bson.D{
		{Key: "q", Value: MergeFilters(o.Filters)},
		{Key: "limit", Value: o.Limit},
	}
}

// DeleteCommand applies delete operations:
// {delete: <collection>, deletes: [{q, limit}, ...]}.
type DeleteCommand struct {
	Coll    string
	Deletes []DeleteOp
}

func (c DeleteCommand) node() {}
func (c DeleteCommand) Collection() string { return c.Coll }
func (c DeleteCommand) Kind() mapping.CommandKind { return mapping.KindWrite }

func (c DeleteCommand) Doc() bson.D {
	deletes := make(bson.A, len(c.Deletes))
	for i, d := range c.Deletes {
		deletes[i] = d.doc()
	}
	return bson.D{
		{Key: "delete", Value: c.Coll},
		{Key: "deletes", Value: deletes},
	}
}

// NoopCommand is the translation of trivially ignorable DDL (schema
// statements have no meaning against a schemaless store). Executing it
// touches nothing and reports zero affected documents.
type NoopCommand struct {
	Statement string
}

func (c NoopCommand) node() {}
func (c NoopCommand) Collection() string { return "" }
func (c NoopCommand) Kind() mapping.CommandKind { return mapping.KindWrite }

func (c NoopCommand) Doc() bson.D {
	return bson.D{{Key: "noop", Value: int32(1)}}
}
