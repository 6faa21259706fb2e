package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/WarPigBRZ/BelugaDB/internal/config"
	"github.com/WarPigBRZ/BelugaDB/internal/connections"
	"github.com/WarPigBRZ/BelugaDB/internal/store"
	"github.com/WarPigBRZ/BelugaDB/internal/store/sqlite"
)

// Exit codes
const (
	ExitOK            = 0
	ExitValidation    = 2
	ExitConnNotFound  = 3
	ExitScriptError   = 4
	ExitRunErrors     = 5
	ExitStoreError    = 6
	ExitInternalError = 10
)

// GlobalOptions holds options shared across all commands
type GlobalOptions struct {
	Connection string
	JSON       bool
	Quiet      bool
}

var globalOpts = &GlobalOptions{}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "beluga",
	Short: "Run one SQL script against many Postgres databases",
	Long: `beluga dispatches a single SQL script to any number of databases reachable
through a registered connection and tracks each database independently:
waiting, success, or error, with per-statement results.

Targets always run concurrently; one slow or broken database never holds
back the others.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A project-local .env may carry PGPASSWORD for the Postgres driver.
		if err := config.LoadDotEnv(); err != nil {
			log.Printf("beluga: .env not loaded: %v", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.Connection, "conn", "", "Connection name (or set BELUGA_CONNECTION)")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Quiet, "quiet", false, "Suppress human-readable output")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDatabasesCmd())
	rootCmd.AddCommand(newConnCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newSnippetCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitInternalError)
	}
}

// getConfig loads the layered configuration
func getConfig() (*config.Config, error) {
	return config.Load()
}

// getStore opens the history/snippet database under the data directory
func getStore(cfg *config.Config) (store.Store, error) {
	return sqlite.New(cfg.StorePath())
}

// getRegistry returns the connection registry rooted at the data directory
func getRegistry(cfg *config.Config) *connections.Registry {
	return connections.NewRegistry(cfg.DataDir)
}

// connectionName resolves the connection to use: --conn flag first, then the
// configured default (config file or BELUGA_CONNECTION).
func connectionName(cfg *config.Config) (string, error) {
	if globalOpts.Connection != "" {
		return globalOpts.Connection, nil
	}
	if cfg.Connection != "" {
		return cfg.Connection, nil
	}
	return "", fmt.Errorf("no connection selected (use --conn, set BELUGA_CONNECTION, or set connection in .beluga/config.yaml)")
}

// exitWithCode prints the error and terminates with the given exit code
func exitWithCode(err error, code int) error {
	if globalOpts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}{OK: false, Error: err.Error()})
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
	return err
}

// printJSON writes v to stdout as indented JSON
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
