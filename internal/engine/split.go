package engine

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// SplitScript splits a SQL script into individual statements using the
// Postgres scanner, so semicolons inside string literals, dollar quotes and
// comments do not break statements apart. Blank statements are dropped.
func SplitScript(script string) ([]string, error) {
	stmts, err := pg_query.SplitWithScanner(script, true)
	if err != nil {
		return nil, fmt.Errorf("split script: %w", err)
	}
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
