package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WarPigBRZ/BelugaDB/internal/engine"
)

// listDatabasesQuery skips templates and the postgres maintenance database,
// matching what the run targets can usefully be.
const listDatabasesQuery = `SELECT datname FROM pg_database
WHERE datistemplate = false AND datname <> 'postgres'
ORDER BY datname`

func newDatabasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List the databases on the selected connection",
		Long: `List the databases on the selected connection's server.

Databases in the saved selection are marked with *. The query runs against
the maintenance database (maintenance_db from config, default postgres).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatabases()
		},
	}
}

func runDatabases() error {
	cfg, err := getConfig()
	if err != nil {
		return exitWithCode(err, ExitInternalError)
	}
	connName, err := connectionName(cfg)
	if err != nil {
		return exitWithCode(err, ExitValidation)
	}
	reg := getRegistry(cfg)
	conn, err := reg.Get(connName)
	if err != nil {
		return exitWithCode(err, ExitConnNotFound)
	}

	names, err := serverDatabases(conn.DSN(cfg.MaintenanceDB, cfg.SSLMode))
	if err != nil {
		return exitWithCode(fmt.Errorf("list databases: %w", err), ExitInternalError)
	}

	selection, _, err := reg.Selection(connName)
	if err != nil {
		return exitWithCode(err, ExitStoreError)
	}
	selected := make(map[string]bool, len(selection))
	for _, name := range selection {
		selected[name] = true
	}

	if globalOpts.JSON {
		type db struct {
			Name     string `json:"name"`
			Selected bool   `json:"selected"`
		}
		out := make([]db, 0, len(names))
		for _, name := range names {
			out = append(out, db{Name: name, Selected: selected[name]})
		}
		return printJSON(out)
	}

	for _, name := range names {
		marker := " "
		if selected[name] {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, name)
	}
	return nil
}

func serverDatabases(dsn string) ([]string, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), engine.DefaultConnectTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, listDatabasesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
