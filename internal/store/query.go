package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cooperativa/registro/internal/schema"
)

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func sqlType(c schema.Column) string {
	switch c.Kind {
	case schema.KindInt, schema.KindBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// createStatements generates the DDL of one table from its descriptor.
func createStatements(d *schema.Descriptor) []string {
	var cols []string
	for _, c := range d.Columns {
		if c.Name == "id" {
			cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
			continue
		}
		def := c.Name + " " + sqlType(c)
		if c.Required || c.Managed {
			def += " NOT NULL"
		}
		if c.Default != "" {
			def += " DEFAULT " + c.Default
		}
		cols = append(cols, def)
	}
	if len(d.Unique) > 0 {
		cols = append(cols, "UNIQUE ("+strings.Join(d.Unique, ", ")+")")
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.Table, strings.Join(cols, ",\n\t")),
	}
	for _, fk := range d.ForeignKeys() {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", d.Table, fk.Name, d.Table, fk.Name))
	}
	if _, ok := d.Column("created_at"); ok {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s(created_at)", d.Table, d.Table))
	}
	return stmts
}

func columnList(d *schema.Descriptor) string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// buildWhere renders conditions. empty is true when a condition has no
// values, so nothing can match.
func buildWhere(d *schema.Descriptor, conds []Cond) (clause string, args []any, empty bool, err error) {
	if len(conds) == 0 {
		return "", nil, false, nil
	}
	parts := make([]string, 0, len(conds))
	for _, cond := range conds {
		col, ok := d.Column(cond.Column)
		if !ok {
			return "", nil, false, fmt.Errorf("unknown column %q", cond.Column)
		}
		if len(cond.Values) == 0 {
			return "", nil, true, nil
		}
		placeholders := make([]string, len(cond.Values))
		for i, v := range cond.Values {
			sv, err := toSQL(col, v)
			if err != nil {
				return "", nil, false, err
			}
			placeholders[i] = "?"
			args = append(args, sv)
		}
		switch {
		case cond.Op != OpEq:
			if len(cond.Values) != 1 || (cond.Op != OpGt && cond.Op != OpGte && cond.Op != OpLt) {
				return "", nil, false, fmt.Errorf("bad comparison on %q", cond.Column)
			}
			parts = append(parts, col.Name+" "+string(cond.Op)+" ?")
		case len(placeholders) == 1:
			parts = append(parts, col.Name+" = ?")
		default:
			parts = append(parts, col.Name+" IN ("+strings.Join(placeholders, ", ")+")")
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, false, nil
}

func buildSelect(d *schema.Descriptor, q Query) (query string, args []any, empty bool, err error) {
	where, args, empty, err := buildWhere(d, q.Where)
	if err != nil || empty {
		return "", nil, empty, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", columnList(d), d.Table, where)

	orders := q.OrderBy
	if len(orders) == 0 {
		orders = []Order{{Column: "id"}}
	}
	terms := make([]string, 0, len(orders))
	for _, o := range orders {
		if _, ok := d.Column(o.Column); !ok {
			return "", nil, false, fmt.Errorf("unknown order column %q", o.Column)
		}
		term := o.Column
		if o.Desc {
			term += " DESC"
		}
		if o.NullsLast {
			term += " NULLS LAST"
		}
		terms = append(terms, term)
	}
	b.WriteString(" ORDER BY " + strings.Join(terms, ", "))

	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return b.String(), args, false, nil
}

// rowColumns validates row against the descriptor and returns the columns
// it sets, in descriptor order.
func rowColumns(d *schema.Descriptor, row schema.Row) ([]schema.Column, error) {
	for name := range row {
		col, ok := d.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		if col.Managed {
			return nil, fmt.Errorf("column %q is managed by the store", name)
		}
	}
	var cols []schema.Column
	for _, c := range d.Columns {
		if _, ok := row[c.Name]; ok {
			cols = append(cols, c)
		}
	}
	return cols, nil
}

// buildInsert renders an INSERT, or an upsert when conflictKey is set and
// the row carries every key column.
func buildInsert(d *schema.Descriptor, row schema.Row, conflictKey []string, now time.Time) (string, []any, error) {
	cols, err := rowColumns(d, row)
	if err != nil {
		return "", nil, err
	}

	var names []string
	var args []any
	for _, c := range cols {
		if c.Name == "id" && row.ID() <= 0 {
			continue
		}
		v, err := toSQL(c, row[c.Name])
		if err != nil {
			return "", nil, err
		}
		names = append(names, c.Name)
		args = append(args, v)
	}
	for _, c := range d.Columns {
		if c.Managed {
			names = append(names, c.Name)
			args = append(args, now.Format(timeLayout))
		}
	}
	if len(names) == 0 {
		return "", nil, fmt.Errorf("empty row")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Table, strings.Join(names, ", "), placeholders)

	if len(conflictKey) == 0 || !hasKey(row, conflictKey) {
		return query, args, nil
	}

	var sets []string
	for _, name := range names {
		if contains(conflictKey, name) || name == "created_at" {
			continue
		}
		sets = append(sets, name+" = excluded."+name)
	}
	target := strings.Join(conflictKey, ", ")
	if len(sets) == 0 {
		return query + " ON CONFLICT (" + target + ") DO NOTHING", args, nil
	}
	return query + " ON CONFLICT (" + target + ") DO UPDATE SET " + strings.Join(sets, ", "), args, nil
}

// buildUpdate renders an UPDATE by id. It returns an empty query when the
// patch sets nothing.
func buildUpdate(d *schema.Descriptor, id int64, patch schema.Row, now time.Time) (string, []any, error) {
	cols, err := rowColumns(d, patch)
	if err != nil {
		return "", nil, err
	}

	var sets []string
	var args []any
	for _, c := range cols {
		if c.Name == "id" {
			continue
		}
		v, err := toSQL(c, patch[c.Name])
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, c.Name+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return "", nil, nil
	}
	if _, ok := d.Column("updated_at"); ok {
		sets = append(sets, "updated_at = ?")
		args = append(args, now.Format(timeLayout))
	}
	args = append(args, id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", d.Table, strings.Join(sets, ", ")), args, nil
}

func validConflictKey(d *schema.Descriptor, key []string) bool {
	if len(key) == 1 && key[0] == "id" {
		return true
	}
	if len(key) != len(d.Unique) {
		return false
	}
	for _, k := range key {
		if !contains(d.Unique, k) {
			return false
		}
	}
	return true
}

func hasKey(row schema.Row, key []string) bool {
	for _, k := range key {
		v, ok := row[k]
		if !ok || v == nil {
			return false
		}
		if k == "id" && row.ID() <= 0 {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func scanRows(rows *sql.Rows, d *schema.Descriptor) ([]schema.Row, error) {
	result := []schema.Row{}
	vals := make([]any, len(d.Columns))
	ptrs := make([]any, len(d.Columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(schema.Row, len(d.Columns))
		for i, c := range d.Columns {
			row[c.Name] = fromSQL(c, vals[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return result, nil
}

// toSQL converts a row value to its driver representation.
func toSQL(c schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Kind {
	case schema.KindInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("column %s: %v is not an integer", c.Name, x)
			}
			return int64(x), nil
		}
	case schema.KindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.KindBool:
		switch x := v.(type) {
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case int64:
			if x != 0 {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case schema.KindJSON:
		switch x := v.(type) {
		case json.RawMessage:
			if !json.Valid(x) {
				return nil, fmt.Errorf("column %s: invalid JSON", c.Name)
			}
			return string(x), nil
		case []byte:
			if !json.Valid(x) {
				return nil, fmt.Errorf("column %s: invalid JSON", c.Name)
			}
			return string(x), nil
		case string:
			if !json.Valid([]byte(x)) {
				return nil, fmt.Errorf("column %s: invalid JSON", c.Name)
			}
			return x, nil
		default:
			data, err := json.Marshal(x)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return string(data), nil
		}
	case schema.KindTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Format(timeLayout), nil
		case string:
			return x, nil
		}
	}
	return nil, fmt.Errorf("column %s: unsupported %s value %T", c.Name, c.Kind, v)
}

// fromSQL converts a scanned driver value to the schema.Row convention.
func fromSQL(c schema.Column, v any) any {
	if v == nil {
		return nil
	}
	switch c.Kind {
	case schema.KindInt:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			return int64(x)
		case string:
			n, _ := strconv.ParseInt(x, 10, 64)
			return n
		case []byte:
			n, _ := strconv.ParseInt(string(x), 10, 64)
			return n
		}
	case schema.KindBool:
		switch x := v.(type) {
		case int64:
			return x != 0
		case bool:
			return x
		case float64:
			return x != 0
		}
	case schema.KindText:
		switch x := v.(type) {
		case string:
			return x
		case []byte:
			return string(x)
		case int64:
			return strconv.FormatInt(x, 10)
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
	case schema.KindJSON:
		switch x := v.(type) {
		case string:
			return json.RawMessage(x)
		case []byte:
			return json.RawMessage(append([]byte(nil), x...))
		}
	case schema.KindTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC()
		case string:
			if t, err := time.Parse(timeLayout, x); err == nil {
				return t
			}
			if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
				return t.UTC()
			}
			return x
		}
	}
	return v
}
