package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs, newest first",
		Long: `Show past runs, newest first.

Every dispatched run is recorded with its script and connection. --limit
overrides history_limit from config; a negative value lists everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(limit, cmd.Flags().Changed("limit"))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to show (negative: all)")
	cmd.AddCommand(newHistoryClearCmd())

	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryClear()
		},
	}
}

func runHistory(limit int, limitSet bool) error {
	cfg, err := getConfig()
	if err != nil {
		return exitWithCode(err, ExitInternalError)
	}
	if !limitSet {
		limit = cfg.HistoryLimit
	}

	st, err := getStore(cfg)
	if err != nil {
		return exitWithCode(err, ExitStoreError)
	}
	defer st.Close()

	entries, err := st.History(limit)
	if err != nil {
		return exitWithCode(err, ExitStoreError)
	}

	if globalOpts.JSON {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("no history")
		return nil
	}
	for _, e := range entries {
		fmt.Println(formatHistoryEntry(e))
	}
	return nil
}

func runHistoryClear() error {
	cfg, err := getConfig()
	if err != nil {
		return exitWithCode(err, ExitInternalError)
	}
	st, err := getStore(cfg)
	if err != nil {
		return exitWithCode(err, ExitStoreError)
	}
	defer st.Close()

	if err := st.ClearHistory(); err != nil {
		return exitWithCode(err, ExitStoreError)
	}
	if !globalOpts.Quiet && !globalOpts.JSON {
		fmt.Println("history cleared")
	}
	return nil
}

// formatHistoryEntry renders one line: id, timestamp, connection, first
// script line.
func formatHistoryEntry(e model.HistoryEntry) string {
	return fmt.Sprintf("%4d  %s  %-12s  %s",
		e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.Origin, firstLine(e.Script))
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
