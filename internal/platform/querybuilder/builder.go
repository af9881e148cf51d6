package querybuilder

import (
	"fmt"
	"strconv"
	"strings"
)

// sqlWriter accumulates the statement text and its bound arguments.
// bind registers a value and returns its $N placeholder.
type sqlWriter struct {
	sb   strings.Builder
	args []any
}

func (w *sqlWriter) bind(value any) string {
	w.args = append(w.args, value)
	return "$" + strconv.Itoa(len(w.args))
}

// rebind replaces each ? in expr with the next bound placeholder.
// Question marks beyond the supplied args stay literal.
func (w *sqlWriter) rebind(expr string, exprArgs []any) string {
	if len(exprArgs) == 0 {
		return expr
	}

	var out strings.Builder
	next := 0
	for i := 0; i < len(expr); i++ {
		if expr[i] == '?' && next < len(exprArgs) {
			out.WriteString(w.bind(exprArgs[next]))
			next++
			continue
		}
		out.WriteByte(expr[i])
	}
	return out.String()
}

// Condition renders one WHERE predicate against the writer.
type Condition func(w *sqlWriter) string

func Eq(column string, value any) Condition {
	return func(w *sqlWriter) string {
		return column + " = " + w.bind(value)
	}
}

// In renders col IN ($1, ...). An empty value set renders a predicate
// that matches nothing, so callers need no special casing.
func In(column string, values []any) Condition {
	return func(w *sqlWriter) string {
		if len(values) == 0 {
			return "1=0"
		}
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = w.bind(v)
		}
		return column + " IN (" + strings.Join(marks, ", ") + ")"
	}
}

func IsNull(column string) Condition {
	return func(*sqlWriter) string {
		return column + " IS NULL"
	}
}

// Expr embeds a raw predicate with ? placeholders for its args.
func Expr(expr string, args ...any) Condition {
	return func(w *sqlWriter) string {
		return w.rebind(expr, args)
	}
}

type SelectBuilder struct {
	columns []string
	table   string
	conds   []Condition
	order   []string
	limit   int
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: append([]string(nil), columns...)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

func (b *SelectBuilder) Where(conditions ...Condition) *SelectBuilder {
	b.conds = append(b.conds, conditions...)
	return b
}

func (b *SelectBuilder) OrderBy(parts ...string) *SelectBuilder {
	b.order = append(b.order, parts...)
	return b
}

func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

func (b *SelectBuilder) ToSQL() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("select columns are required")
	}
	if strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("select table is required")
	}

	w := &sqlWriter{}
	w.sb.WriteString("SELECT ")
	w.sb.WriteString(strings.Join(b.columns, ", "))
	w.sb.WriteString(" FROM ")
	w.sb.WriteString(b.table)
	writeWhere(w, b.conds)
	if len(b.order) > 0 {
		w.sb.WriteString(" ORDER BY ")
		w.sb.WriteString(strings.Join(b.order, ", "))
	}
	if b.limit > 0 {
		w.sb.WriteString(" LIMIT ")
		w.sb.WriteString(strconv.Itoa(b.limit))
	}

	return w.sb.String(), w.args, nil
}

type InsertBuilder struct {
	table   string
	columns []string
	rows    [][]any
	suffix  string
}

func InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

// Values appends one row. Call it once per row for batch inserts.
func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.rows = append(b.rows, append([]any(nil), values...))
	return b
}

// Suffix appends trailing SQL such as ON CONFLICT or RETURNING clauses.
func (b *InsertBuilder) Suffix(sql string) *InsertBuilder {
	b.suffix = strings.TrimSpace(sql)
	return b
}

func (b *InsertBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("insert table is required")
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("insert columns are required")
	}
	if len(b.rows) == 0 {
		return "", nil, fmt.Errorf("insert values are required")
	}

	w := &sqlWriter{args: make([]any, 0, len(b.rows)*len(b.columns))}
	w.sb.WriteString("INSERT INTO ")
	w.sb.WriteString(b.table)
	w.sb.WriteString(" (")
	w.sb.WriteString(strings.Join(b.columns, ", "))
	w.sb.WriteString(") VALUES ")

	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("insert row %d has %d values, expected %d", i, len(row), len(b.columns))
		}
		marks := make([]string, len(row))
		for j, value := range row {
			marks[j] = w.bind(value)
		}
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.sb.WriteString("(")
		w.sb.WriteString(strings.Join(marks, ", "))
		w.sb.WriteString(")")
	}

	if b.suffix != "" {
		w.sb.WriteString(" ")
		w.sb.WriteString(b.suffix)
	}

	return w.sb.String(), w.args, nil
}

func writeWhere(w *sqlWriter, conds []Condition) {
	if len(conds) == 0 {
		return
	}
	parts := make([]string, len(conds))
	for i, cond := range conds {
		parts[i] = cond(w)
	}
	w.sb.WriteString(" WHERE ")
	w.sb.WriteString(strings.Join(parts, " AND "))
}
