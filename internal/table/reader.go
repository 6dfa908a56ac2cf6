// Package table reads tabular data out of simulation artifacts. Only
// SQLite-backed artifacts are queryable in this build; HDF5 outputs are
// recognized but reported as unsupported.
package table

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// Orientation selects the JSON shape of a rendered table.
type Orientation string

const (
	OrientSplit   Orientation = "split"
	OrientRecords Orientation = "records"
	OrientIndex   Orientation = "index"
	OrientColumns Orientation = "columns"
	OrientValues  Orientation = "values"
)

// ParseOrientation maps a wire string onto an Orientation. An empty string
// defaults to split.
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrientSplit:
		return OrientSplit, nil
	case OrientRecords:
		return OrientRecords, nil
	case OrientIndex:
		return OrientIndex, nil
	case OrientColumns:
		return OrientColumns, nil
	case OrientValues:
		return OrientValues, nil
	}
	return "", fmt.Errorf("unknown table orientation %q", s)
}

// Condition is a single row filter: Column Op Value.
type Condition struct {
	Column string `json:"col"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
}

// Table holds query results in column order.
type Table struct {
	Columns []string
	Rows    [][]any
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var allowedOps = map[string]string{
	"=":  "=",
	"==": "=",
	"!=": "!=",
	"<>": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// Read loads the named table from an artifact file, applying the given row
// filters. The artifact format is dispatched on file extension.
func Read(ctx context.Context, file, table string, conds []Condition) (*Table, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".sqlite", ".db", ".sqlite3":
		return readSQLite(ctx, file, table, conds)
	case ".h5", ".hdf5":
		return nil, fmt.Errorf("HDF5 artifact %s: format not supported by this server", filepath.Base(file))
	default:
		return nil, fmt.Errorf("artifact %s: no table reader for this format", filepath.Base(file))
	}
}

func readSQLite(ctx context.Context, file, table string, conds []Condition) (*Table, error) {
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	// Artifacts are immutable outputs, so the database is opened read-only
	// and never locked.
	db, err := sql.Open("sqlite", "file:"+file+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", filepath.Base(file), err)
	}
	defer db.Close()

	query, args, err := buildQuery(table, conds)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query table %q: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of table %q: %w", table, err)
	}

	out := &Table{Columns: cols}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan table %q: %w", table, err)
		}
		for i, c := range cells {
			if b, ok := c.([]byte); ok {
				cells[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table %q: %w", table, err)
	}
	return out, nil
}

// buildQuery assembles a SELECT with identifier-validated column names,
// whitelisted operators, and placeholder-bound values.
func buildQuery(table string, conds []Condition) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT * FROM "` + table + `"`)

	var args []any
	for i, c := range conds {
		if !identifierRe.MatchString(c.Column) {
			return "", nil, fmt.Errorf("invalid condition column %q", c.Column)
		}
		op, ok := allowedOps[strings.TrimSpace(c.Op)]
		if !ok {
			return "", nil, fmt.Errorf("unsupported condition operator %q", c.Op)
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(`"` + c.Column + `" ` + op + ` ?`)
		args = append(args, c.Value)
	}
	return sb.String(), args, nil
}

// Render shapes the table for JSON encoding in the requested orientation.
func (t *Table) Render(orient Orientation) any {
	switch orient {
	case OrientRecords:
		records := make([]map[string]any, 0, len(t.Rows))
		for _, row := range t.Rows {
			rec := make(map[string]any, len(t.Columns))
			for i, col := range t.Columns {
				rec[col] = row[i]
			}
			records = append(records, rec)
		}
		return records
	case OrientIndex:
		indexed := make(map[string]map[string]any, len(t.Rows))
		for n, row := range t.Rows {
			rec := make(map[string]any, len(t.Columns))
			for i, col := range t.Columns {
				rec[col] = row[i]
			}
			indexed[strconv.Itoa(n)] = rec
		}
		return indexed
	case OrientColumns:
		byCol := make(map[string]map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			vals := make(map[string]any, len(t.Rows))
			for n, row := range t.Rows {
				vals[strconv.Itoa(n)] = row[i]
			}
			byCol[col] = vals
		}
		return byCol
	case OrientValues:
		return t.Rows
	default: // split
		index := make([]int, len(t.Rows))
		for i := range index {
			index[i] = i
		}
		return map[string]any{
			"columns": t.Columns,
			"index":   index,
			"data":    t.Rows,
		}
	}
}
