package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/query"

	// Database drivers registered for the supported providers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQL executes query plans against a relational database through
// database/sql. Supported providers are postgres and sqlite.
type SQL struct {
	db       *sql.DB
	registry *model.Registry
	provider string
}

// NewSQL creates a SQL adapter over an open connection
func NewSQL(db *sql.DB, registry *model.Registry, provider string) *SQL {
	return &SQL{db: db, registry: registry, provider: provider}
}

// OpenSQL opens a database connection for the provider and wraps it
func OpenSQL(registry *model.Registry, provider, url string) (*SQL, error) {
	driver := provider
	if provider == "sqlite" {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", provider, err)
	}
	return NewSQL(db, registry, provider), nil
}

// placeholder renders the n-th query parameter for the provider
func (s *SQL) placeholder(n int) string {
	if s.provider == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// tableName converts a model name to its snake_case plural table.
// Names ending in a vowel followed by y take a plain s suffix, so
// ApiKey maps to api_keys rather than api_keies.
func tableName(modelName string) string {
	snake := toSnakeCase(modelName)
	if n := len(snake); n >= 2 && snake[n-1] == 'y' && strings.ContainsRune("aeiou", rune(snake[n-2])) {
		return snake + "s"
	}
	return model.Pluralize(snake)
}

// toSnakeCase converts a camelCase or PascalCase name to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// columnName maps a field name to its column
func columnName(field string) string {
	return toSnakeCase(field)
}

// fieldName maps a column back to its record key using the definition
func fieldName(def *model.Definition, column string) string {
	for i := range def.Fields {
		if columnName(def.Fields[i].Name) == column {
			return def.Fields[i].Name
		}
	}
	switch column {
	case "created_at":
		return "createdAt"
	case "updated_at":
		return "updatedAt"
	case "deleted_at":
		return "deletedAt"
	case "created_by":
		return "createdBy"
	case "updated_by":
		return "updatedBy"
	case "deleted_by":
		return "deletedBy"
	case "published_at":
		return "publishedAt"
	}
	return column
}

// Create inserts a record, generating its uuid, and returns the stored row
func (s *SQL) Create(ctx context.Context, modelName string, data model.Record) (model.Record, error) {
	if !s.registry.Exists(modelName) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	record := make(model.Record, len(data)+1)
	for k, v := range data {
		record[k] = v
	}
	record["uuid"] = uuid.NewString()

	var columns []string
	var placeholders []string
	var values []interface{}
	n := 1
	for field, value := range record {
		columns = append(columns, columnName(field))
		placeholders = append(placeholders, s.placeholder(n))
		values = append(values, value)
		n++
	}

	table := tableName(modelName)
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if s.provider == "postgres" {
		stmt += " RETURNING id"
		var id int64
		if err := s.db.QueryRowContext(ctx, stmt, values...).Scan(&id); err != nil {
			return nil, ConvertDBError(err)
		}
		return s.FindUnique(ctx, modelName, id)
	}

	result, err := s.db.ExecContext(ctx, stmt, values...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.FindUnique(ctx, modelName, id)
}

// FindUnique fetches one record by id
func (s *SQL) FindUnique(ctx context.Context, modelName string, id int64) (model.Record, error) {
	def, ok := s.registry.Get(modelName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	stmt := fmt.Sprintf("SELECT * FROM %s WHERE id = %s", tableName(modelName), s.placeholder(1))
	rows, err := s.db.QueryContext(ctx, stmt, id)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	records, err := scanRows(def, rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// FindMany executes a plan as a SELECT. A cursor position is translated
// into keyset pagination on id.
func (s *SQL) FindMany(ctx context.Context, modelName string, plan *query.Plan) ([]model.Record, error) {
	def, ok := s.registry.Get(modelName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	table := tableName(modelName)
	var stmt strings.Builder
	stmt.WriteString("SELECT * FROM " + table)

	where, args, n, err := s.whereClause(plan.Where, 1)
	if err != nil {
		return nil, err
	}

	// Cursor listings need a total order for the keyset condition to
	// resume at the right row; id breaks ties in the sort direction.
	orderBy := plan.OrderBy
	if plan.Mode == query.CursorMode && len(orderBy) == 0 {
		orderBy = []query.Order{{Field: "id"}}
	}
	primary := query.Order{Field: "id"}
	if len(orderBy) > 0 {
		primary = orderBy[0]
	}

	if plan.CursorID != nil {
		cmp := ">"
		if primary.Desc {
			cmp = "<"
		}
		var cond string
		if primary.Field == "id" {
			cond = fmt.Sprintf("id %s %s", cmp, s.placeholder(n))
		} else {
			// Row-value comparison against the cursor row, valid on
			// both postgres and sqlite.
			col := columnName(primary.Field)
			cond = fmt.Sprintf("(%s, id) %s (SELECT %s, id FROM %s WHERE id = %s)",
				col, cmp, col, table, s.placeholder(n))
		}
		n++
		args = append(args, *plan.CursorID)
		if where == "" {
			where = cond
		} else {
			where += " AND " + cond
		}
	}
	if where != "" {
		stmt.WriteString(" WHERE " + where)
	}

	if len(orderBy) > 0 {
		var parts []string
		for _, order := range orderBy {
			dir := "ASC"
			if order.Desc {
				dir = "DESC"
			}
			parts = append(parts, columnName(order.Field)+" "+dir)
		}
		if plan.Mode == query.CursorMode && primary.Field != "id" {
			dir := "ASC"
			if primary.Desc {
				dir = "DESC"
			}
			parts = append(parts, "id "+dir)
		}
		stmt.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	if plan.Take > 0 {
		stmt.WriteString(fmt.Sprintf(" LIMIT %s", s.placeholder(n)))
		n++
		args = append(args, plan.Take)
	}
	// Cursor positioning is handled by the keyset condition above; only
	// offset mode translates Skip into OFFSET.
	if plan.Mode == query.OffsetMode && plan.Skip > 0 {
		stmt.WriteString(fmt.Sprintf(" OFFSET %s", s.placeholder(n)))
		args = append(args, plan.Skip)
	}

	rows, err := s.db.QueryContext(ctx, stmt.String(), args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	return scanRows(def, rows)
}

// Count returns the number of rows matching the conditions
func (s *SQL) Count(ctx context.Context, modelName string, where []query.Condition) (int64, error) {
	if !s.registry.Exists(modelName) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	clause, args, _, err := s.whereClause(where, 1)
	if err != nil {
		return 0, err
	}
	stmt := "SELECT COUNT(*) FROM " + tableName(modelName)
	if clause != "" {
		stmt += " WHERE " + clause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, ConvertDBError(err)
	}
	return count, nil
}

// Update applies data to one row and returns the stored result
func (s *SQL) Update(ctx context.Context, modelName string, id int64, data model.Record) (model.Record, error) {
	if !s.registry.Exists(modelName) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	var sets []string
	var args []interface{}
	n := 1
	for field, value := range data {
		sets = append(sets, fmt.Sprintf("%s = %s", columnName(field), s.placeholder(n)))
		args = append(args, value)
		n++
	}
	if len(sets) == 0 {
		return s.FindUnique(ctx, modelName, id)
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
		tableName(modelName), strings.Join(sets, ", "), s.placeholder(n))
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.FindUnique(ctx, modelName, id)
}

// UpdateMany applies data to every row matching the conditions
func (s *SQL) UpdateMany(ctx context.Context, modelName string, where []query.Condition, data model.Record) (int64, error) {
	if !s.registry.Exists(modelName) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	var sets []string
	var args []interface{}
	n := 1
	for field, value := range data {
		sets = append(sets, fmt.Sprintf("%s = %s", columnName(field), s.placeholder(n)))
		args = append(args, value)
		n++
	}
	if len(sets) == 0 {
		return 0, nil
	}

	clause, whereArgs, _, err := s.whereClause(where, n)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	stmt := fmt.Sprintf("UPDATE %s SET %s", tableName(modelName), strings.Join(sets, ", "))
	if clause != "" {
		stmt += " WHERE " + clause
	}

	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, ConvertDBError(err)
	}
	return result.RowsAffected()
}

// Delete removes one row by id
func (s *SQL) Delete(ctx context.Context, modelName string, id int64) error {
	if !s.registry.Exists(modelName) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = %s", tableName(modelName), s.placeholder(1))
	result, err := s.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return ConvertDBError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// whereClause renders the conjunctive condition list, returning the
// clause, its arguments, and the next placeholder index
func (s *SQL) whereClause(where []query.Condition, start int) (string, []interface{}, int, error) {
	var parts []string
	var args []interface{}
	n := start

	for i := range where {
		cond := &where[i]
		col := columnName(cond.Field)
		if len(cond.Path) > 0 {
			col = s.jsonPath(col, cond.Path)
		}

		switch cond.Op {
		case query.OpEq:
			if cond.Value.Kind == model.KindNull {
				parts = append(parts, col+" IS NULL")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s = %s", col, s.placeholder(n)))
			args = append(args, cond.Value.Native())
			n++
		case query.OpNe:
			if cond.Value.Kind == model.KindNull {
				parts = append(parts, col+" IS NOT NULL")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s <> %s", col, s.placeholder(n)))
			args = append(args, cond.Value.Native())
			n++
		case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
			op := map[query.Operator]string{
				query.OpGt: ">", query.OpGte: ">=", query.OpLt: "<", query.OpLte: "<=",
			}[cond.Op]
			parts = append(parts, fmt.Sprintf("%s %s %s", col, op, s.placeholder(n)))
			args = append(args, cond.Value.Native())
			n++
		case query.OpContains:
			parts = append(parts, fmt.Sprintf("%s LIKE %s", col, s.placeholder(n)))
			args = append(args, "%"+cond.Value.Str+"%")
			n++
		case query.OpStartsWith:
			parts = append(parts, fmt.Sprintf("%s LIKE %s", col, s.placeholder(n)))
			args = append(args, cond.Value.Str+"%")
			n++
		case query.OpEndsWith:
			parts = append(parts, fmt.Sprintf("%s LIKE %s", col, s.placeholder(n)))
			args = append(args, "%"+cond.Value.Str)
			n++
		case query.OpIn, query.OpNotIn:
			var holes []string
			for _, v := range cond.Values {
				holes = append(holes, s.placeholder(n))
				args = append(args, v.Native())
				n++
			}
			keyword := "IN"
			if cond.Op == query.OpNotIn {
				keyword = "NOT IN"
			}
			parts = append(parts, fmt.Sprintf("%s %s (%s)", col, keyword, strings.Join(holes, ", ")))
		default:
			return "", nil, n, fmt.Errorf("unsupported operator %v", cond.Op)
		}
	}

	return strings.Join(parts, " AND "), args, n, nil
}

// jsonPath renders a nested JSON access for the provider
func (s *SQL) jsonPath(col string, path []string) string {
	if s.provider == "postgres" {
		expr := col
		for i, key := range path {
			op := "->"
			if i == len(path)-1 {
				op = "->>"
			}
			expr += fmt.Sprintf("%s'%s'", op, key)
		}
		return expr
	}
	return fmt.Sprintf("json_extract(%s, '$.%s')", col, strings.Join(path, "."))
}

// scanRows scans result rows into records keyed by field name
func scanRows(def *model.Definition, rows *sql.Rows) ([]model.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []model.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(model.Record, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[fieldName(def, col)] = v
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
