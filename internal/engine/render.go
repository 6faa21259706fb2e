package engine

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// readRows drains a result set into a Tabular statement result
func readRows(rows *sql.Rows) (model.StatementResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return model.StatementResult{}, fmt.Errorf("read columns: %w", err)
	}

	var data [][]string
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return model.StatementResult{}, fmt.Errorf("scan row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = renderValue(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return model.StatementResult{}, err
	}
	return model.NewTabular(cols, data), nil
}

// renderValue converts a scanned driver value to its display string
func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
