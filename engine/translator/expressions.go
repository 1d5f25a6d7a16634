package translator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongosql-engine/mongosql/engine/ast"
	"github.com/mongosql-engine/mongosql/mapping"
)

// stmtTranslator carries per-statement rendering state: the table
// aliases in scope, against which column qualifiers are resolved.
type stmtTranslator struct {
	t         *Translator
	mainAlias string
	joinAlias string
}

// fieldPath resolves a column reference to a document field path.
// Columns qualified with the joined table's alias address fields of
// the unwound lookup result.
func (st *stmtTranslator) fieldPath(col *sqlparser.ColName) (string, error) {
	qualifier := col.Qualifier.Name.String()
	name := col.Name.String()

	switch {
	case qualifier == "" || qualifier == st.mainAlias:
		return name, nil
	case st.joinAlias != "" && qualifier == st.joinAlias:
		return st.joinAlias + "." + name, nil
	default:
		return "", unsupported(
			fmt.Sprintf("column %s.%s", qualifier, name),
			"qualifier does not name a table in scope")
	}
}

// ============================================================================
// FILTER RENDERING
// ============================================================================

// renderFilter renders a boolean expression as a Filter. One case per
// relational node kind; anything else is an explicit failure.
func (st *stmtTranslator) renderFilter(expr sqlparser.Expr) (ast.Filter, error) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		return st.renderLogical(mapping.LogicalOperators["AND"], e.Left, e.Right)
	case *sqlparser.OrExpr:
		return st.renderLogical(mapping.LogicalOperators["OR"], e.Left, e.Right)
	case *sqlparser.ParenExpr:
		return st.renderFilter(e.Expr)
	case *sqlparser.NotExpr:
		return st.renderNegated(e.Expr)
	case *sqlparser.ComparisonExpr:
		return st.renderComparison(e)
	case *sqlparser.RangeCond:
		return st.renderRange(e)
	case *sqlparser.IsExpr:
		return st.renderIs(e)
	case *sqlparser.FuncExpr:
		node, err := st.renderFunction(e, AsFilter)
		if err != nil {
			return nil, err
		}
		filter, ok := node.(ast.Filter)
		if !ok {
			return nil, unsupported(
				fmt.Sprintf("function %s", e.Name.Lowered()),
				"does not render as a filter")
		}
		return filter, nil
	default:
		return nil, unsupported(sqlparser.String(expr), "cannot render in filter position")
	}
}

// renderLogical renders both children and collapses same-operator
// chains into one flat logical filter.
func (st *stmtTranslator) renderLogical(op string, left, right sqlparser.Expr) (ast.Filter, error) {
	l, err := st.renderFilter(left)
	if err != nil {
		return nil, err
	}
	r, err := st.renderFilter(right)
	if err != nil {
		return nil, err
	}
	return ast.NewLogicalFilter(op, l, r), nil
}

// renderNegated renders NOT <expr>. Plain comparisons flip to their
// negated operator; non-negatable ones wrap in $not. Negating a
// logical expression is not translated.
func (st *stmtTranslator) renderNegated(expr sqlparser.Expr) (ast.Filter, error) {
	switch e := expr.(type) {
	case *sqlparser.ParenExpr:
		return st.renderNegated(e.Expr)
	case *sqlparser.NotExpr:
		return st.renderFilter(e.Expr)
	case *sqlparser.IsExpr:
		return st.renderIs(&sqlparser.IsExpr{Operator: flipIsOperator(e.Operator), Expr: e.Expr})
	case *sqlparser.ComparisonExpr:
		inner, err := st.renderComparison(e)
		if err != nil {
			return nil, err
		}
		switch f := inner.(type) {
		case ast.FieldFilter:
			if neg, ok := mapping.NegatedOperator[f.Op]; ok {
				return ast.FieldFilter{Path: f.Path, Op: neg, Value: f.Value}, nil
			}
			return ast.NotFilter{Path: f.Path, Op: f.Op, Value: f.Value}, nil
		case ast.NotFilter:
			return ast.FieldFilter{Path: f.Path, Op: f.Op, Value: f.Value}, nil
		default:
			return nil, unsupported("NOT", "negated comparison does not reduce to a field condition")
		}
	default:
		return nil, unsupported("NOT "+sqlparser.String(expr), "only comparisons can be negated")
	}
}

func flipIsOperator(op string) string {
	switch op {
	case sqlparser.IsNullStr:
		return sqlparser.IsNotNullStr
	case sqlparser.IsNotNullStr:
		return sqlparser.IsNullStr
	case sqlparser.IsTrueStr:
		return sqlparser.IsNotTrueStr
	case sqlparser.IsNotTrueStr:
		return sqlparser.IsTrueStr
	case sqlparser.IsFalseStr:
		return sqlparser.IsNotFalseStr
	case sqlparser.IsNotFalseStr:
		return sqlparser.IsFalseStr
	default:
		return op
	}
}

// renderComparison renders a binary comparison. The field reference
// may appear on either side; a value-to-value or field-to-field
// comparison has no translation.
func (st *stmtTranslator) renderComparison(e *sqlparser.ComparisonExpr) (ast.Filter, error) {
	switch e.Operator {
	case sqlparser.LikeStr, sqlparser.NotLikeStr:
		return st.renderLike(e)
	case sqlparser.RegexpStr, sqlparser.NotRegexpStr:
		return st.renderRegexp(e)
	case sqlparser.InStr, sqlparser.NotInStr:
		return st.renderIn(e)
	case sqlparser.NullSafeEqualStr:
		return nil, unsupported("<=>", "null-safe equality has no translation rule")
	}

	op, ok := mapping.OperatorMap[e.Operator]
	if !ok {
		return nil, unsupported(fmt.Sprintf("operator %s", e.Operator), "no translation rule")
	}

	var path string
	var valueExpr sqlparser.Expr
	var err error

	if col, isCol := e.Left.(*sqlparser.ColName); isCol {
		path, err = st.fieldPath(col)
		valueExpr = e.Right
	} else if col, isCol := e.Right.(*sqlparser.ColName); isCol {
		path, err = st.fieldPath(col)
		valueExpr = e.Left
		op = mirrorOperator(op)
	} else {
		return nil, unsupported(sqlparser.String(e), "comparison does not reference a field")
	}
	if err != nil {
		return nil, err
	}

	value, err := st.renderValue(valueExpr, AsValue)
	if err != nil {
		return nil, err
	}

	return ast.FieldFilter{Path: path, Op: op, Value: value}, nil
}

// mirrorOperator swaps the sides of an asymmetric comparison, for
// inputs like `5 < age`.
func mirrorOperator(op string) string {
	switch op {
	case "$gt":
		return "$lt"
	case "$gte":
		return "$lte"
	case "$lt":
		return "$gt"
	case "$lte":
		return "$gte"
	default:
		return op
	}
}

func (st *stmtTranslator) renderLike(e *sqlparser.ComparisonExpr) (ast.Filter, error) {
	col, ok := e.Left.(*sqlparser.ColName)
	if !ok {
		return nil, unsupported(sqlparser.String(e), "LIKE requires a field on the left side")
	}
	path, err := st.fieldPath(col)
	if err != nil {
		return nil, err
	}

	value, err := st.renderValue(e.Right, AsValue)
	if err != nil {
		return nil, err
	}
	// A literal pattern is rewritten to an anchored regex now; a
	// placeholder pattern is bound verbatim and used as a raw regex.
	if lit, isLit := value.(ast.Literal); isLit {
		pattern, isStr := lit.V.(string)
		if !isStr {
			return nil, unsupported(sqlparser.String(e), "LIKE pattern must be a string")
		}
		value = ast.Literal{V: likeToRegex(pattern)}
	}

	if e.Operator == sqlparser.NotLikeStr {
		return ast.NotFilter{Path: path, Op: "$regex", Value: value}, nil
	}
	return ast.FieldFilter{Path: path, Op: "$regex", Value: value}, nil
}

func (st *stmtTranslator) renderRegexp(e *sqlparser.ComparisonExpr) (ast.Filter, error) {
	col, ok := e.Left.(*sqlparser.ColName)
	if !ok {
		return nil, unsupported(sqlparser.String(e), "REGEXP requires a field on the left side")
	}
	path, err := st.fieldPath(col)
	if err != nil {
		return nil, err
	}
	value, err := st.renderValue(e.Right, AsValue)
	if err != nil {
		return nil, err
	}
	if e.Operator == sqlparser.NotRegexpStr {
		return ast.NotFilter{Path: path, Op: "$regex", Value: value}, nil
	}
	return ast.FieldFilter{Path: path, Op: "$regex", Value: value}, nil
}

func (st *stmtTranslator) renderIn(e *sqlparser.ComparisonExpr) (ast.Filter, error) {
	col, ok := e.Left.(*sqlparser.ColName)
	if !ok {
		return nil, unsupported(sqlparser.String(e), "IN requires a field on the left side")
	}
	path, err := st.fieldPath(col)
	if err != nil {
		return nil, err
	}

	values, err := st.renderValue(e.Right, AsContainer)
	if err != nil {
		return nil, err
	}

	op := "$in"
	if e.Operator == sqlparser.NotInStr {
		op = "$nin"
	}
	return ast.FieldFilter{Path: path, Op: op, Value: values}, nil
}

func (st *stmtTranslator) renderRange(e *sqlparser.RangeCond) (ast.Filter, error) {
	col, ok := e.Left.(*sqlparser.ColName)
	if !ok {
		return nil, unsupported(sqlparser.String(e), "BETWEEN requires a field on the left side")
	}
	path, err := st.fieldPath(col)
	if err != nil {
		return nil, err
	}

	from, err := st.renderValue(e.From, AsValue)
	if err != nil {
		return nil, err
	}
	to, err := st.renderValue(e.To, AsValue)
	if err != nil {
		return nil, err
	}

	if e.Operator == sqlparser.NotBetweenStr {
		return ast.NewLogicalFilter("$or",
			ast.FieldFilter{Path: path, Op: "$lt", Value: from},
			ast.FieldFilter{Path: path, Op: "$gt", Value: to},
		), nil
	}
	return ast.NewLogicalFilter("$and",
		ast.FieldFilter{Path: path, Op: "$gte", Value: from},
		ast.FieldFilter{Path: path, Op: "$lte", Value: to},
	), nil
}

// renderIs translates IS [NOT] NULL / TRUE / FALSE. IS NOT NULL wraps
// equality in $not rather than using $ne, which keeps it outside the
// null-comparison restriction.
func (st *stmtTranslator) renderIs(e *sqlparser.IsExpr) (ast.Filter, error) {
	col, ok := e.Expr.(*sqlparser.ColName)
	if !ok {
		return nil, unsupported(sqlparser.String(e), "IS requires a field operand")
	}
	path, err := st.fieldPath(col)
	if err != nil {
		return nil, err
	}

	null := ast.Literal{V: primitive.Null{}}
	switch e.Operator {
	case sqlparser.IsNullStr:
		return ast.FieldFilter{Path: path, Op: "$eq", Value: null}, nil
	case sqlparser.IsNotNullStr:
		return ast.NotFilter{Path: path, Op: "$eq", Value: null}, nil
	case sqlparser.IsTrueStr:
		return ast.FieldFilter{Path: path, Op: "$eq", Value: ast.Literal{V: true}}, nil
	case sqlparser.IsNotTrueStr:
		return ast.NotFilter{Path: path, Op: "$eq", Value: ast.Literal{V: true}}, nil
	case sqlparser.IsFalseStr:
		return ast.FieldFilter{Path: path, Op: "$eq", Value: ast.Literal{V: false}}, nil
	case sqlparser.IsNotFalseStr:
		return ast.NotFilter{Path: path, Op: "$eq", Value: ast.Literal{V: false}}, nil
	default:
		return nil, unsupported(fmt.Sprintf("IS %s", e.Operator), "no translation rule")
	}
}

// ============================================================================
// VALUE RENDERING
// ============================================================================

// renderValue renders an expression as a Value. The context descriptor
// decides whether container shapes (row values, bound collections) are
// acceptable.
func (st *stmtTranslator) renderValue(expr sqlparser.Expr, ctx RenderContext) (ast.Value, error) {
	switch e := expr.(type) {
	case *sqlparser.SQLVal:
		return renderSQLVal(e)
	case *sqlparser.NullVal:
		return ast.Literal{V: primitive.Null{}}, nil
	case sqlparser.BoolVal:
		return ast.Literal{V: bool(e)}, nil
	case sqlparser.ValTuple:
		if ctx != AsContainer {
			return nil, unsupported(sqlparser.String(e), "row value in scalar position")
		}
		items := make([]ast.Value, len(e))
		for i, item := range e {
			v, err := st.renderValue(item, AsValue)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return ast.Array{Items: items}, nil
	case sqlparser.ListArg:
		// A single parameter bound to a whole collection.
		return ast.Placeholder{}, nil
	case *sqlparser.UnaryExpr:
		return st.renderUnary(e, ctx)
	case *sqlparser.FuncExpr:
		node, err := st.renderFunction(e, ctx)
		if err != nil {
			return nil, err
		}
		value, ok := node.(ast.Value)
		if !ok {
			return nil, unsupported(
				fmt.Sprintf("function %s", e.Name.Lowered()),
				fmt.Sprintf("does not render as a %s", ctx))
		}
		return value, nil
	case *sqlparser.ColName:
		return nil, unsupported(sqlparser.String(e), "column reference cannot render in value position")
	default:
		return nil, unsupported(sqlparser.String(expr), fmt.Sprintf("cannot render as a %s", ctx))
	}
}

func renderSQLVal(v *sqlparser.SQLVal) (ast.Value, error) {
	switch v.Type {
	case sqlparser.StrVal:
		return ast.Literal{V: string(v.Val)}, nil
	case sqlparser.IntVal:
		n, err := strconv.ParseInt(string(v.Val), 10, 64)
		if err != nil {
			return nil, unsupported(string(v.Val), "integer literal out of range")
		}
		return ast.Literal{V: n}, nil
	case sqlparser.FloatVal:
		f, err := strconv.ParseFloat(string(v.Val), 64)
		if err != nil {
			return nil, unsupported(string(v.Val), "invalid numeric literal")
		}
		return ast.Literal{V: f}, nil
	case sqlparser.ValArg:
		return ast.Placeholder{Ordinal: valArgOrdinal(v.Val)}, nil
	default:
		return nil, unsupported(string(v.Val), "literal kind has no translation rule")
	}
}

// valArgOrdinal recovers the 1-based statement-text position of a
// parameter marker. The parser rewrites each `?` to :v1, :v2, ... in
// text order; named arguments carry no position and fall back to
// document order.
func valArgOrdinal(name []byte) int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(name), ":v"))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func (st *stmtTranslator) renderUnary(e *sqlparser.UnaryExpr, ctx RenderContext) (ast.Value, error) {
	if e.Operator != sqlparser.UMinusStr {
		return nil, unsupported(sqlparser.String(e), "unary operator has no translation rule")
	}
	inner, err := st.renderValue(e.Expr, ctx)
	if err != nil {
		return nil, err
	}
	lit, ok := inner.(ast.Literal)
	if !ok {
		return nil, unsupported(sqlparser.String(e), "unary minus requires a numeric literal")
	}
	switch n := lit.V.(type) {
	case int64:
		return ast.Literal{V: -n}, nil
	case float64:
		return ast.Literal{V: -n}, nil
	default:
		return nil, unsupported(sqlparser.String(e), "unary minus requires a numeric literal")
	}
}

// likeToRegex rewrites a SQL LIKE pattern into an anchored regular
// expression: % matches any run, _ matches one character, everything
// else is escaped literally.
func likeToRegex(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteByte('.')
		case '.', '^', '$', '*', '+', '?', '(', ')', '[', ']', '{', '}', '\\', '|':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('$')
	return b.String()
}
