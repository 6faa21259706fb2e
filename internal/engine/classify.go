package engine

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// returnsRows reports whether a statement should be executed as a query.
// Classification walks the Postgres parse tree, which catches the cases a
// prefix check misses (WITH ... SELECT, INSERT ... RETURNING). Statements
// that fail to parse fall back to a keyword heuristic and let the server
// produce the real error.
func returnsRows(stmt string) bool {
	tree, err := pg_query.Parse(stmt)
	if err == nil && len(tree.Stmts) > 0 && tree.Stmts[0].Stmt != nil {
		switch node := tree.Stmts[0].Stmt.Node.(type) {
		case *pg_query.Node_SelectStmt:
			return true
		case *pg_query.Node_ExplainStmt:
			return true
		case *pg_query.Node_VariableShowStmt:
			return true
		case *pg_query.Node_InsertStmt:
			return len(node.InsertStmt.ReturningList) > 0
		case *pg_query.Node_UpdateStmt:
			return len(node.UpdateStmt.ReturningList) > 0
		case *pg_query.Node_DeleteStmt:
			return len(node.DeleteStmt.ReturningList) > 0
		}
		return false
	}

	switch firstKeyword(stmt) {
	case "SELECT", "VALUES", "TABLE", "SHOW", "EXPLAIN", "WITH":
		return true
	}
	return false
}

func firstKeyword(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
