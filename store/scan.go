package store

import (
	"database/sql"

	"github.com/goliatone/go-record-cache/entity"
)

func collect(rows *sql.Rows, maxRows int) (entity.List, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out entity.List
	for rows.Next() {
		if maxRows > 0 && len(out) >= maxRows {
			break
		}
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanRow(rows *sql.Rows, columns []string) (entity.Entity, error) {
	values := make([]any, len(columns))
	targets := make([]any, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	row := make(entity.Entity, len(columns))
	for i, col := range columns {
		row[col] = normalize(values[i])
	}
	return row, nil
}

// normalize maps driver values onto the small set of types entities carry:
// int64, float64, string, bool, time.Time and nil.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
