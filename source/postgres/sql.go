package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/deevus/clinic-tui/source"
	"github.com/lib/pq"
)

// buildSelect renders q as a parameterised SELECT. Identifiers are quoted;
// filter values become $n arguments.
func buildSelect(q source.Query) (string, []any, error) {
	if q.Resource == "" {
		return "", nil, fmt.Errorf("query has no resource")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range q.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pq.QuoteIdentifier(c))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteQualified(q.Resource))

	var args []any
	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s = $%d", pq.QuoteIdentifier(f.Column), len(args))
	}

	if q.Order != nil {
		fmt.Fprintf(&b, " ORDER BY %s", pq.QuoteIdentifier(q.Order.Column))
		if q.Order.Descending {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

// quoteQualified quotes a possibly schema-qualified name ("public.x").
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// naiveLayout renders a timestamp without its zone. Such values carry
// no zone in the database and are read in the clinic's zone later.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// scanRows reads every row into a source.Row keyed by column name.
func scanRows(rows *sql.Rows) ([]source.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types: %w", err)
	}
	dbTypes := make([]string, len(types))
	for i, ct := range types {
		dbTypes[i] = ct.DatabaseTypeName()
	}

	var out []source.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r := make(source.Row, len(cols))
		for i, c := range cols {
			r[c] = columnValue(vals[i], dbTypes[i])
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// columnValue converts a scanned value for use outside the driver: byte
// slices become strings and zone-less timestamps lose the UTC zone pq
// attaches to them.
func columnValue(v any, dbType string) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case time.Time:
		if dbType == "TIMESTAMP" {
			return v.Format(naiveLayout)
		}
	}
	return v
}
