package translator

import (
	"fmt"

	"github.com/xwb1989/sqlparser"

	"github.com/mongosql-engine/mongosql/engine/ast"
)

// FunctionCall is what a function renderer receives: the already
// parsed invocation plus accessors that translate individual arguments
// in a chosen render context.
type FunctionCall struct {
	Name    string
	Args    []sqlparser.Expr
	Context RenderContext

	st *stmtTranslator
}

// Value translates argument i as a value expression.
func (c *FunctionCall) Value(i int) (ast.Value, error) {
	return c.st.renderValue(c.Args[i], AsValue)
}

// FieldPath resolves argument i as a document field path; anything
// that is not a plain column reference is an argument-shape error.
func (c *FunctionCall) FieldPath(i int) (string, error) {
	col, ok := c.Args[i].(*sqlparser.ColName)
	if !ok {
		return "", c.ArgumentError(i, "must be a field path, not a literal or computed value")
	}
	return c.st.fieldPath(col)
}

// ArgumentError builds the standard argument-shape failure for
// parameter index i.
func (c *FunctionCall) ArgumentError(i int, reason string) error {
	return &FunctionArgumentError{Function: c.Name, Index: i, Reason: reason}
}

// FunctionRenderer translates one function invocation into a filter or
// value fragment. Renderers validate their arguments' shapes before
// translating; shape violations are permanent failures.
type FunctionRenderer func(c *FunctionCall) (ast.Node, error)

var functions = map[string]FunctionRenderer{}

// RegisterFunction installs a renderer for the (lowercased) function
// name, replacing any previous one.
func RegisterFunction(name string, r FunctionRenderer) {
	functions[name] = r
}

func init() {
	RegisterFunction("array", renderArrayConstructor)
	RegisterFunction("json_array", renderArrayConstructor)
	RegisterFunction("array_contains", renderArrayContains)
	RegisterFunction("array_contains_all", renderArrayContainsAll)
	RegisterFunction("array_includes", renderArrayContainsAll)
}

func (st *stmtTranslator) renderFunction(fn *sqlparser.FuncExpr, ctx RenderContext) (ast.Node, error) {
	name := fn.Name.Lowered()
	renderer, ok := functions[name]
	if !ok {
		return nil, unsupported(fmt.Sprintf("function %s", name), "no translation rule")
	}

	args, err := functionArgs(fn)
	if err != nil {
		return nil, err
	}

	return renderer(&FunctionCall{Name: name, Args: args, Context: ctx, st: st})
}

// functionArgs unwraps the parser's select-expression wrappers around
// function arguments.
func functionArgs(fn *sqlparser.FuncExpr) ([]sqlparser.Expr, error) {
	args := make([]sqlparser.Expr, 0, len(fn.Exprs))
	for _, se := range fn.Exprs {
		aliased, ok := se.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, unsupported(
				fmt.Sprintf("function %s", fn.Name.Lowered()),
				"star argument has no translation rule")
		}
		args = append(args, aliased.Expr)
	}
	return args, nil
}

// isArrayConstructor reports whether the function name builds an array
// value, i.e. renders as a plural-typed expression.
func isArrayConstructor(name string) bool {
	return name == "array" || name == "json_array"
}

// renderArrayConstructor translates each argument as a value and wraps
// them in an array. Purely structural.
func renderArrayConstructor(c *FunctionCall) (ast.Node, error) {
	if c.Context == AsFilter {
		return nil, unsupported(fmt.Sprintf("function %s", c.Name), "array construction is not a predicate")
	}
	items := make([]ast.Value, len(c.Args))
	for i := range c.Args {
		v, err := c.Value(i)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return ast.Array{Items: items}, nil
}

// renderArrayContains translates "array field contains a single
// value". The target language has no dedicated operator for this: a
// plain equality also matches scalar fields, so the translation is a
// conjunction of an array type guard and the equality itself.
func renderArrayContains(c *FunctionCall) (ast.Node, error) {
	if c.Context != AsFilter {
		return nil, unsupported(
			fmt.Sprintf("function %s", c.Name),
			fmt.Sprintf("only valid in filter position, not as a %s", c.Context))
	}
	if len(c.Args) != 2 {
		return nil, unsupported(fmt.Sprintf("function %s", c.Name), "expects exactly 2 arguments")
	}

	path, err := c.FieldPath(0)
	if err != nil {
		return nil, err
	}

	switch arg := c.Args[1].(type) {
	case sqlparser.ValTuple, sqlparser.ListArg:
		return nil, c.ArgumentError(1, "must be a single value, not a collection")
	case *sqlparser.FuncExpr:
		if isArrayConstructor(arg.Name.Lowered()) {
			return nil, c.ArgumentError(1, "must be a single value, not a plural-typed expression")
		}
	}

	value, err := c.Value(1)
	if err != nil {
		return nil, err
	}

	guard, err := ast.NewTypeFilter(path, "array")
	if err != nil {
		return nil, err
	}
	return ast.NewLogicalFilter("$and",
		guard,
		ast.FieldFilter{Path: path, Op: "$eq", Value: value},
	), nil
}

// renderArrayContainsAll translates "array field contains all of the
// given elements" into a type-guarded $all filter.
func renderArrayContainsAll(c *FunctionCall) (ast.Node, error) {
	if c.Context != AsFilter {
		return nil, unsupported(
			fmt.Sprintf("function %s", c.Name),
			fmt.Sprintf("only valid in filter position, not as a %s", c.Context))
	}
	if len(c.Args) != 2 {
		return nil, unsupported(fmt.Sprintf("function %s", c.Name), "expects exactly 2 arguments")
	}

	path, err := c.FieldPath(0)
	if err != nil {
		return nil, err
	}

	var elements ast.Filter
	switch arg := c.Args[1].(type) {
	case sqlparser.ValTuple:
		// A tuple of parameter markers is ambiguous: it may be one
		// bound collection expanded by the caller or independent
		// scalar parameters, and the two cannot be told apart here.
		if len(arg) > 1 && allPlaceholders(arg) {
			return nil, c.ArgumentError(1, "must not be a multi-parameter tuple expansion")
		}
		items := make([]ast.Value, len(arg))
		for i, item := range arg {
			v, verr := c.st.renderValue(item, AsValue)
			if verr != nil {
				return nil, verr
			}
			items[i] = v
		}
		elements = ast.AllFilter{Path: path, Values: items}
	case sqlparser.ListArg:
		// One parameter bound to a whole collection: the array is
		// supplied at bind time.
		elements = ast.FieldFilter{Path: path, Op: "$all", Value: ast.Placeholder{}}
	case *sqlparser.FuncExpr:
		node, ferr := c.st.renderFunction(arg, AsContainer)
		if ferr != nil {
			return nil, ferr
		}
		arr, ok := node.(ast.Array)
		if !ok {
			return nil, c.ArgumentError(1, "must be an array of elements")
		}
		elements = ast.AllFilter{Path: path, Values: arr.Items}
	default:
		value, verr := c.Value(1)
		if verr != nil {
			return nil, verr
		}
		elements = ast.FieldFilter{Path: path, Op: "$all", Value: value}
	}

	guard, err := ast.NewTypeFilter(path, "array")
	if err != nil {
		return nil, err
	}
	return ast.NewLogicalFilter("$and", guard, elements), nil
}

func allPlaceholders(tuple sqlparser.ValTuple) bool {
	for _, item := range tuple {
		val, ok := item.(*sqlparser.SQLVal)
		if !ok || val.Type != sqlparser.ValArg {
			return false
		}
	}
	return true
}
