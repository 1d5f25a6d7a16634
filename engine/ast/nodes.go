package ast

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongosql-engine/mongosql/mapping"
)

// Node is the interface all document-AST nodes implement.
type Node interface {
	node()
}

// ============================================================================
// VALUES
// ============================================================================

// Value is a node that renders to a BSON value: a literal scalar, an
// array, a field-path reference, or a still-unbound placeholder.
type Value interface {
	Node
	// BSON returns the wire representation of the value. Placeholders
	// render as the BSON undefined sentinel until they are bound.
	BSON() any
}

// Literal is a concrete scalar value.
type Literal struct {
	V any
}

func (l Literal) node()     {}
func (l Literal) BSON() any { return l.V }

// Placeholder marks a bound-parameter position. Ordinal is the 1-based
// position of the marker in the statement text; zero means the position
// follows document order instead. The document tree carries the marker
// itself so the ordinal survives rendering; it appears as the undefined
// sentinel ({"$undefined": true}) in extended JSON, and the statement
// layer replaces it with a concrete value before execution.
type Placeholder struct {
	Ordinal int
}

func (p Placeholder) node()     {}
func (p Placeholder) BSON() any { return p }

// Array is an ordered list of values.
type Array struct {
	Items []Value
}

func (a Array) node() {}
func (a Array) BSON() any {
	out := make(bson.A, len(a.Items))
	for i, item := range a.Items {
		out[i] = item.BSON()
	}
	return out
}

// FieldPath references a document field by dotted path. In aggregation
// expression position it renders with the "$" prefix.
type FieldPath struct {
	Path string
}

func (f FieldPath) node()     {}
func (f FieldPath) BSON() any { return "$" + f.Path }

// ============================================================================
// FILTERS
// ============================================================================

// Filter is a node expressing a matching condition against stored
// documents. Doc returns the condition as a query document fragment
// suitable for a $match stage or a write operation's "q" field.
type Filter interface {
	Node
	Doc() bson.D
}

// FieldFilter matches a single field against one comparison operator.
type FieldFilter struct {
	Path  string
	Op    string // $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin, $regex
	Value Value
}

func (f FieldFilter) node() {}
func (f FieldFilter) Doc() bson.D {
	return bson.D{{Key: f.Path, Value: bson.D{{Key: f.Op, Value: f.Value.BSON()}}}}
}

// LogicalFilter combines two or more child filters with $and, $or or
// $nor. Construction collapses same-operator children so a chain of
// ANDs becomes one flat list instead of nested pairs.
type LogicalFilter struct {
	Op      string // $and, $or, $nor
	Filters []Filter
}

func (f LogicalFilter) node() {}
func (f LogicalFilter) Doc() bson.D {
	children := make(bson.A, len(f.Filters))
	for i, child := range f.Filters {
		children[i] = child.Doc()
	}
	return bson.D{{Key: f.Op, Value: children}}
}

// NewLogicalFilter builds a logical filter, flattening any child that
// uses the same operator into the parent's list.
func NewLogicalFilter(op string, filters ...Filter) LogicalFilter {
	flat := make([]Filter, 0, len(filters))
	for _, child := range filters {
		if lf, ok := child.(LogicalFilter); ok && lf.Op == op {
			flat = append(flat, lf.Filters...)
			continue
		}
		flat = append(flat, child)
	}
	return LogicalFilter{Op: op, Filters: flat}
}

// NotFilter negates a single field comparison. MongoDB's $not is a
// field-level operator, so the negated condition must name one field.
type NotFilter struct {
	Path  string
	Op    string
	Value Value
}

func (f NotFilter) node() {}
func (f NotFilter) Doc() bson.D {
	inner := bson.D{{Key: f.Op, Value: f.Value.BSON()}}
	return bson.D{{Key: f.Path, Value: bson.D{{Key: "$not", Value: inner}}}}
}

// TypeFilter matches documents whose field is one of the given BSON
// types, by alias. Used as the type guard in array-containment
// translations, where plain equality would also match scalars.
type TypeFilter struct {
	Path    string
	Aliases []string
}

// NewTypeFilter validates the aliases against the $type operand table.
func NewTypeFilter(path string, aliases ...string) (TypeFilter, error) {
	for _, alias := range aliases {
		if !mapping.IsBSONTypeAlias(alias) {
			return TypeFilter{}, fmt.Errorf("unknown type alias '%s'", alias)
		}
	}
	return TypeFilter{Path: path, Aliases: aliases}, nil
}

func (f TypeFilter) node() {}
func (f TypeFilter) Doc() bson.D {
	aliases := make(bson.A, len(f.Aliases))
	for i, a := range f.Aliases {
		aliases[i] = a
	}
	return bson.D{{Key: f.Path, Value: bson.D{{Key: "$type", Value: aliases}}}}
}

// AllFilter matches array fields containing every listed value ($all).
type AllFilter struct {
	Path   string
	Values []Value
}

func (f AllFilter) node() {}
func (f AllFilter) Doc() bson.D {
	values := make(bson.A, len(f.Values))
	for i, v := range f.Values {
		values[i] = v.BSON()
	}
	return bson.D{{Key: f.Path, Value: bson.D{{Key: "$all", Value: values}}}}
}

// ElemMatchFilter matches array fields with at least one element
// satisfying the inner condition.
type ElemMatchFilter struct {
	Path   string
	Filter Filter
}

func (f ElemMatchFilter) node() {}
func (f ElemMatchFilter) Doc() bson.D {
	return bson.D{{Key: f.Path, Value: bson.D{{Key: "$elemMatch", Value: elemMatchBody(f.Filter)}}}}
}

// elemMatchBody strips the field path from a filter applied to the
// array element itself, e.g. {"": {"$gt": 5}} becomes {"$gt": 5}.
func elemMatchBody(f Filter) bson.D {
	doc := f.Doc()
	if len(doc) == 1 && doc[0].Key == "" {
		if inner, ok := doc[0].Value.(bson.D); ok {
			return inner
		}
	}
	return doc
}

// MergeFilters renders a conjunction of filters as a single query
// document. One filter renders as itself; several render under $and so
// repeated conditions on the same field cannot clobber each other.
func MergeFilters(filters []Filter) bson.D {
	switch len(filters) {
	case 0:
		return bson.D{}
	case 1:
		return filters[0].Doc()
	default:
		return NewLogicalFilter("$and", filters...).Doc()
	}
}
