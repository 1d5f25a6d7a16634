package translator

import (
	"fmt"

	"github.com/xwb1989/sqlparser"

	"github.com/mongosql-engine/mongosql/engine/ast"
)

// translateInsert renders INSERT ... VALUES as an insert command; a
// multi-row VALUES list becomes one command carrying several
// documents.
func (t *Translator) translateInsert(s *sqlparser.Insert) (ast.Command, error) {
	if s.Action != sqlparser.InsertStr {
		return nil, unsupported(s.Action, "only INSERT translates")
	}
	if s.Ignore != "" {
		return nil, unsupported("INSERT IGNORE", "no translation rule")
	}
	if len(s.OnDup) > 0 {
		return nil, unsupported("ON DUPLICATE KEY UPDATE", "no translation rule")
	}
	if len(s.Columns) == 0 {
		return nil, unsupported("INSERT without a column list", "field names cannot be inferred")
	}

	rows, ok := s.Rows.(sqlparser.Values)
	if !ok {
		return nil, unsupported("INSERT ... SELECT", "no translation rule")
	}

	st := &stmtTranslator{t: t, mainAlias: s.Table.Name.String()}

	documents := make([]ast.Document, len(rows))
	for r, tuple := range rows {
		if len(tuple) != len(s.Columns) {
			return nil, unsupported(
				fmt.Sprintf("row %d", r+1),
				fmt.Sprintf("%d values for %d columns", len(tuple), len(s.Columns)))
		}
		fields := make([]ast.Field, len(tuple))
		for i, expr := range tuple {
			value, err := st.renderValue(expr, AsValue)
			if err != nil {
				return nil, err
			}
			fields[i] = ast.Field{Name: s.Columns[i].String(), Value: value}
		}
		documents[r] = ast.Document{Fields: fields}
	}

	return ast.InsertCommand{Coll: t.collectionName(s.Table), Documents: documents}, nil
}

// translateUpdate renders UPDATE as a single update operation. The
// multiplicity flag follows the statement's LIMIT: no limit updates
// every match, LIMIT 1 updates the first.
func (t *Translator) translateUpdate(s *sqlparser.Update) (ast.Command, error) {
	if len(s.OrderBy) > 0 {
		return nil, unsupported("UPDATE ... ORDER BY", "no translation rule")
	}

	name, alias, err := singleTable(s.TableExprs)
	if err != nil {
		return nil, err
	}
	st := &stmtTranslator{t: t, mainAlias: alias}

	multi := true
	if s.Limit != nil {
		n, err := limitValue(s.Limit.Rowcount, "LIMIT")
		if err != nil {
			return nil, err
		}
		if n != 1 {
			return nil, unsupported("UPDATE ... LIMIT", "only LIMIT 1 translates")
		}
		multi = false
	}

	set := make([]ast.Field, len(s.Exprs))
	for i, u := range s.Exprs {
		path, err := st.fieldPath(u.Name)
		if err != nil {
			return nil, err
		}
		value, err := st.renderValue(u.Expr, AsValue)
		if err != nil {
			return nil, err
		}
		set[i] = ast.Field{Name: path, Value: value}
	}

	filters, err := st.renderWhere(s.Where)
	if err != nil {
		return nil, err
	}

	return ast.UpdateCommand{
		Coll:    t.collectionName(name),
		Updates: []ast.UpdateOp{{Filters: filters, Set: set, Multi: multi}},
	}, nil
}

// translateDelete renders DELETE as a single delete operation. LIMIT 1
// deletes one match (limit 1), no limit deletes every match (limit 0).
func (t *Translator) translateDelete(s *sqlparser.Delete) (ast.Command, error) {
	if len(s.Targets) > 0 {
		return nil, unsupported("multi-table DELETE", "no translation rule")
	}
	if len(s.OrderBy) > 0 {
		return nil, unsupported("DELETE ... ORDER BY", "no translation rule")
	}

	name, alias, err := singleTable(s.TableExprs)
	if err != nil {
		return nil, err
	}
	st := &stmtTranslator{t: t, mainAlias: alias}

	limit := int32(0)
	if s.Limit != nil {
		n, err := limitValue(s.Limit.Rowcount, "LIMIT")
		if err != nil {
			return nil, err
		}
		if n != 1 {
			return nil, unsupported("DELETE ... LIMIT", "only LIMIT 1 translates")
		}
		limit = 1
	}

	filters, err := st.renderWhere(s.Where)
	if err != nil {
		return nil, err
	}

	return ast.DeleteCommand{
		Coll:    t.collectionName(name),
		Deletes: []ast.DeleteOp{{Filters: filters, Limit: limit}},
	}, nil
}

func (st *stmtTranslator) renderWhere(where *sqlparser.Where) ([]ast.Filter, error) {
	if where == nil {
		return nil, nil
	}
	filter, err := st.renderFilter(where.Expr)
	if err != nil {
		return nil, err
	}
	return []ast.Filter{filter}, nil
}

func singleTable(exprs sqlparser.TableExprs) (sqlparser.TableName, string, error) {
	if len(exprs) != 1 {
		return sqlparser.TableName{}, "", unsupported("multi-table statement", "no translation rule")
	}
	aliased, ok := exprs[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return sqlparser.TableName{}, "", unsupported(sqlparser.String(exprs[0]), "no translation rule")
	}
	return tableRef(aliased)
}
