package actions

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"keyrunner/internal/registry"
	"keyrunner/pkg/logging"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func databasePack(env *Environment) []registry.Descriptor {
	dbParam := param("db", false, "configured connection name, default \"default\"")
	tableParam := param("table", true, "table name")
	return []registry.Descriptor{
		{
			Keyword:     "db_exec",
			Category:    CategoryDatabase,
			Description: "Execute a statement and return the number of affected rows",
			Params:      []registry.ParamSpec{dbParam, param("sql", true, "statement"), param("args", false, "positional arguments")},
			Handler:     env.dbExec,
		},
		{
			Keyword:     "db_query",
			Category:    CategoryDatabase,
			Description: "Run a query and return its rows as a list of mappings",
			Params:      []registry.ParamSpec{dbParam, param("sql", true, "query"), param("args", false, "positional arguments")},
			Handler:     env.dbQuery,
		},
		{
			Keyword:      "db_insert",
			Category:     CategoryDatabase,
			Description:  "Insert one row",
			Params:       []registry.ParamSpec{dbParam, tableParam, param("values", true, "column values"), param("id_column", false, "column matching the driver's last insert id, default rowid")},
			Compensation: "db_delete",
			Handler:      env.dbInsert,
		},
		{
			Keyword:     "db_delete",
			Category:    CategoryDatabase,
			Description: "Delete rows matching where (or values) and return the count",
			Params:      []registry.ParamSpec{dbParam, tableParam, param("where", false, "column equality filter"), param("values", false, "filter used when where is absent")},
			Handler:     env.dbDelete,
		},
		{
			Keyword:     "db_count",
			Category:    CategoryDatabase,
			Description: "Count rows matching an optional filter",
			Params:      []registry.ParamSpec{dbParam, tableParam, param("where", false, "column equality filter")},
			Handler:     env.dbCount,
		},
		{
			Keyword:     "clear_table",
			Category:    CategoryDatabase,
			Description: "Delete every row of a table",
			Params:      []registry.ParamSpec{dbParam, tableParam},
			Handler:     env.clearTable,
		},
	}
}

func (e *Environment) dbFor(params map[string]any) (*sql.DB, error) {
	name, err := stringParam(params, "db", false)
	if err != nil {
		return nil, err
	}
	return e.DB(name)
}

func (e *Environment) dbExec(ctx context.Context, params map[string]any) (any, error) {
	db, err := e.dbFor(params)
	if err != nil {
		return nil, err
	}
	stmt, err := requiredString(params, "sql")
	if err != nil {
		return nil, err
	}
	args, err := listParam(params, "args")
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("exec failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return affected, nil
}

func (e *Environment) dbQuery(ctx context.Context, params map[string]any) (any, error) {
	db, err := e.dbFor(params)
	if err != nil {
		return nil, err
	}
	query, err := requiredString(params, "sql")
	if err != nil {
		return nil, err
	}
	args, err := listParam(params, "args")
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, db, query, args...)
}

func (e *Environment) dbInsert(ctx context.Context, params map[string]any) (any, error) {
	db, err := e.dbFor(params)
	if err != nil {
		return nil, err
	}
	table, err := tableName(params)
	if err != nil {
		return nil, err
	}
	values, err := mapParam(params, "values")
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf(`parameter "values" must not be empty`)
	}

	columns, args, err := columnsAndArgs(values)
	if err != nil {
		return nil, err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s failed: %w", table, err)
	}
	result := map[string]any{"table": table}
	id, err := res.LastInsertId()
	if err != nil {
		// Without an id the compensation falls back to the inserted values.
		logging.Warn("Actions", "db_insert into %s returned no row id: %v", table, err)
		return result, nil
	}
	result["id"] = id

	idColumn, err := stringParam(params, "id_column", false)
	if err != nil {
		return nil, err
	}
	if idColumn == "" {
		idColumn = "rowid"
	}
	if !identifierPattern.MatchString(idColumn) {
		return nil, fmt.Errorf("invalid id column %q", idColumn)
	}
	return registry.Result{
		Value:  result,
		Params: map[string]any{"where": map[string]any{idColumn: id}},
	}, nil
}

func (e *Environment) dbDelete(ctx context.Context, params map[string]any) (any, error) {
	db, err := e.dbFor(params)
	if err != nil {
		return nil, err
	}
	table, err := tableName(params)
	if err != nil {
		return nil, err
	}
	filter, err := mapParam(params, "where")
	if err != nil {
		return nil, err
	}
	if filter == nil {
		if filter, err = mapParam(params, "values"); err != nil {
			return nil, err
		}
	}
	if len(filter) == 0 {
		return nil, fmt.Errorf("db_delete needs a where or values filter; use clear_table to empty %s", table)
	}

	clause, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("delete from %s failed: %w", table, err)
	}
	return res.RowsAffected()
}

func (e *Environment) dbCount(ctx context.Context, params map[string]any) (any, error) {
	db, err := e.dbFor(params)
	if err != nil {
		return nil, err
	}
	table, err := tableName(params)
	if err != nil {
		return nil, err
	}
	filter, err := mapParam(params, "where")
	if err != nil {
		return nil, err
	}
	clause, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+clause, args...).Scan(&count); err != nil {
		return nil, fmt.Errorf("count on %s failed: %w", table, err)
	}
	return count, nil
}

func (e *Environment) clearTable(ctx context.Context, params map[string]any) (any, error) {
	db, err := e.dbFor(params)
	if err != nil {
		return nil, err
	}
	table, err := tableName(params)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("clear %s failed: %w", table, err)
	}
	return res.RowsAffected()
}

func tableName(params map[string]any) (string, error) {
	table, err := requiredString(params, "table")
	if err != nil {
		return "", err
	}
	if !identifierPattern.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// columnsAndArgs returns column names in sorted order with matching values.
func columnsAndArgs(values map[string]any) ([]string, []any, error) {
	columns := make([]string, 0, len(values))
	for col := range values {
		if !identifierPattern.MatchString(col) {
			return nil, nil, fmt.Errorf("invalid column name %q", col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)
	args := make([]any, len(columns))
	for i, col := range columns {
		args[i] = values[col]
	}
	return columns, args, nil
}

func whereClause(filter map[string]any) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	columns, args, err := columnsAndArgs(filter)
	if err != nil {
		return "", nil, err
	}
	conds := make([]string, len(columns))
	for i, col := range columns {
		conds[i] = col + " = ?"
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func queryRows(ctx context.Context, db *sql.DB, query string, args ...any) ([]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
