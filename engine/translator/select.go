package translator

import (
	"fmt"
	"strconv"

	"github.com/xwb1989/sqlparser"

	"github.com/mongosql-engine/mongosql/engine/ast"
)

// translateSelect renders a SELECT as an aggregation pipeline. Stage
// order is fixed: $lookup/$unwind (joins), $match, $sort, $skip,
// $limit, $project.
func (t *Translator) translateSelect(s *sqlparser.Select) (ast.Command, error) {
	if s.Distinct != "" {
		return nil, unsupported("SELECT DISTINCT", "no translation rule")
	}
	if len(s.GroupBy) > 0 {
		return nil, unsupported("GROUP BY", "no translation rule")
	}
	if s.Having != nil {
		return nil, unsupported("HAVING", "no translation rule")
	}
	if s.Lock != "" {
		return nil, unsupported("row locking", "no translation rule")
	}

	from, err := t.resolveFrom(s.From)
	if err != nil {
		return nil, err
	}
	st := &stmtTranslator{t: t, mainAlias: from.mainAlias, joinAlias: from.joinAlias}

	stages := append([]ast.Stage{}, from.stages...)

	if s.Where != nil {
		filter, err := st.renderFilter(s.Where.Expr)
		if err != nil {
			return nil, err
		}
		stages = append(stages, ast.MatchStage{Filters: []ast.Filter{filter}})
	}

	if len(s.OrderBy) > 0 {
		sort, err := st.renderOrderBy(s.OrderBy)
		if err != nil {
			return nil, err
		}
		stages = append(stages, sort)
	}

	if s.Limit != nil {
		if s.Limit.Offset != nil {
			n, err := limitValue(s.Limit.Offset, "OFFSET")
			if err != nil {
				return nil, err
			}
			stages = append(stages, ast.SkipStage{N: n})
		}
		n, err := limitValue(s.Limit.Rowcount, "LIMIT")
		if err != nil {
			return nil, err
		}
		stages = append(stages, ast.LimitStage{N: n})
	}

	project, err := st.renderProjection(s.SelectExprs)
	if err != nil {
		return nil, err
	}
	if project != nil {
		stages = append(stages, *project)
	}

	return ast.AggregateCommand{Coll: from.coll, Stages: stages}, nil
}

// fromClause is the resolved FROM: the driving collection, the aliases
// in scope, and any join stages to prepend to the pipeline.
type fromClause struct {
	coll      string
	mainAlias string
	joinAlias string
	stages    []ast.Stage
}

func (t *Translator) resolveFrom(from sqlparser.TableExprs) (*fromClause, error) {
	if len(from) != 1 {
		return nil, unsupported("comma join", "use an explicit JOIN with an ON condition")
	}

	switch e := from[0].(type) {
	case *sqlparser.AliasedTableExpr:
		name, alias, err := tableRef(e)
		if err != nil {
			return nil, err
		}
		return &fromClause{coll: t.collectionName(name), mainAlias: alias}, nil
	case *sqlparser.JoinTableExpr:
		return t.resolveJoin(e)
	case *sqlparser.ParenTableExpr:
		return t.resolveFrom(e.Exprs)
	default:
		return nil, unsupported(sqlparser.String(e), "table expression has no translation rule")
	}
}

// resolveJoin translates a single equality join into a $lookup
// followed by an $unwind. INNER JOIN drops unmatched documents; LEFT
// JOIN keeps them.
func (t *Translator) resolveJoin(j *sqlparser.JoinTableExpr) (*fromClause, error) {
	var preserveEmpty bool
	switch j.Join {
	case sqlparser.JoinStr:
		preserveEmpty = false
	case sqlparser.LeftJoinStr:
		preserveEmpty = true
	default:
		return nil, unsupported(fmt.Sprintf("%s join", j.Join), "only INNER and LEFT equality joins translate")
	}

	left, ok := j.LeftExpr.(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, unsupported(sqlparser.String(j.LeftExpr), "nested joins have no translation rule")
	}
	right, ok := j.RightExpr.(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, unsupported(sqlparser.String(j.RightExpr), "nested joins have no translation rule")
	}

	leftName, leftAlias, err := tableRef(left)
	if err != nil {
		return nil, err
	}
	rightName, rightAlias, err := tableRef(right)
	if err != nil {
		return nil, err
	}

	if len(j.Condition.Using) > 0 {
		return nil, unsupported("JOIN ... USING", "spell out the ON condition")
	}
	cmp, ok := j.Condition.On.(*sqlparser.ComparisonExpr)
	if !ok || cmp.Operator != sqlparser.EqualStr {
		return nil, unsupported(sqlparser.String(j.Condition.On), "only single-equality join conditions translate")
	}
	lcol, lok := cmp.Left.(*sqlparser.ColName)
	rcol, rok := cmp.Right.(*sqlparser.ColName)
	if !lok || !rok {
		return nil, unsupported(sqlparser.String(j.Condition.On), "join condition must compare two columns")
	}

	// Orient the condition: localField belongs to the driving table.
	local, foreign := lcol, rcol
	if lcol.Qualifier.Name.String() == rightAlias {
		local, foreign = rcol, lcol
	}
	if local.Qualifier.Name.String() != leftAlias || foreign.Qualifier.Name.String() != rightAlias {
		return nil, unsupported(sqlparser.String(j.Condition.On), "join condition must reference both joined tables")
	}

	return &fromClause{
		coll:      t.collectionName(leftName),
		mainAlias: leftAlias,
		joinAlias: rightAlias,
		stages: []ast.Stage{
			ast.LookupStage{
				From:         t.collectionName(rightName),
				LocalField:   local.Name.String(),
				ForeignField: foreign.Name.String(),
				As:           rightAlias,
			},
			ast.UnwindStage{Path: rightAlias, PreserveEmpty: preserveEmpty},
		},
	}, nil
}

func tableRef(e *sqlparser.AliasedTableExpr) (sqlparser.TableName, string, error) {
	name, ok := e.Expr.(sqlparser.TableName)
	if !ok {
		return sqlparser.TableName{}, "", unsupported(sqlparser.String(e.Expr), "derived tables have no translation rule")
	}
	alias := e.As.String()
	if alias == "" {
		alias = name.Name.String()
	}
	return name, alias, nil
}

// renderProjection builds the $project stage from the select list.
// SELECT * yields no stage; otherwise the list is include-only plain
// columns, and the identity-field default of the projection model
// applies when columns are mapped back to result fields.
func (st *stmtTranslator) renderProjection(exprs sqlparser.SelectExprs) (*ast.ProjectStage, error) {
	if len(exprs) == 1 {
		if _, isStar := exprs[0].(*sqlparser.StarExpr); isStar {
			return nil, nil
		}
	}

	fields := make([]ast.ProjectField, 0, len(exprs))
	for _, se := range exprs {
		aliased, ok := se.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, unsupported(sqlparser.String(se), "select list mixes * with columns")
		}
		if !aliased.As.IsEmpty() {
			return nil, unsupported(sqlparser.String(se), "column aliases have no translation rule")
		}
		col, ok := aliased.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, unsupported(sqlparser.String(se), "computed select expressions have no translation rule")
		}
		path, err := st.fieldPath(col)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.ProjectField{Path: path, Include: true})
	}

	stage, err := ast.NewProjectStage(fields)
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (st *stmtTranslator) renderOrderBy(orderBy sqlparser.OrderBy) (ast.SortStage, error) {
	fields := make([]ast.SortField, len(orderBy))
	for i, o := range orderBy {
		col, ok := o.Expr.(*sqlparser.ColName)
		if !ok {
			return ast.SortStage{}, unsupported(sqlparser.String(o.Expr), "ORDER BY requires plain columns")
		}
		path, err := st.fieldPath(col)
		if err != nil {
			return ast.SortStage{}, err
		}
		fields[i] = ast.SortField{Path: path, Descending: o.Direction == sqlparser.DescScr}
	}
	return ast.SortStage{Fields: fields}, nil
}

// limitValue extracts a literal row count. Parameter markers are not
// accepted in LIMIT/OFFSET position.
func limitValue(expr sqlparser.Expr, clause string) (int64, error) {
	val, ok := expr.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return 0, unsupported(clause, "requires an integer literal")
	}
	n, err := strconv.ParseInt(string(val.Val), 10, 64)
	if err != nil || n < 0 {
		return 0, unsupported(clause, "requires a non-negative integer literal")
	}
	return n, nil
}
