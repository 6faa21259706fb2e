package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

func newConnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conn",
		Short: "Manage server connections",
	}
	cmd.AddCommand(newConnListCmd())
	cmd.AddCommand(newConnAddCmd())
	cmd.AddCommand(newConnRmCmd())
	return cmd
}

func newConnListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnList()
		},
	}
}

func newConnAddCmd() *cobra.Command {
	conn := model.Connection{}

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a connection",
		Long: `Register a new server connection under a unique name.

The password is kept on disk only with --save-pass; otherwise set PGPASSWORD
(for example through a project .env file) when running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn.Name = args[0]
			return runConnAdd(conn)
		},
	}

	cmd.Flags().StringVar(&conn.Host, "host", "localhost", "Server host")
	cmd.Flags().StringVar(&conn.Port, "port", "5432", "Server port")
	cmd.Flags().StringVar(&conn.User, "user", "postgres", "User name")
	cmd.Flags().StringVar(&conn.Pass, "pass", "", "Password")
	cmd.Flags().BoolVar(&conn.SavePass, "save-pass", false, "Keep the password in connections.json")

	return cmd
}

func newConnRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnRm(args[0])
		},
	}
}

func runConnList() error {
	cfg, err := getConfig()
	if err != nil {
		return exitWithCode(err, ExitInternalError)
	}
	conns, err := getRegistry(cfg).List()
	if err != nil {
		return exitWithCode(err, ExitStoreError)
	}

	if globalOpts.JSON {
		return printJSON(conns)
	}
	if len(conns) == 0 {
		fmt.Println("no connections (add one with `beluga conn add`)")
		return nil
	}
	for _, c := range conns {
		fmt.Println(formatConnection(c))
	}
	return nil
}

func runConnAdd(conn model.Connection) error {
	cfg, err := getConfig()
	if err != nil {
		return exitWithCode(err, ExitInternalError)
	}
	added, err := getRegistry(cfg).Add(conn)
	if err != nil {
		return exitWithCode(err, ExitValidation)
	}

	if globalOpts.JSON {
		return printJSON(added)
	}
	if !globalOpts.Quiet {
		fmt.Printf("added %s\n", formatConnection(*added))
		if conn.Pass != "" && !conn.SavePass {
			fmt.Println("password not saved; set PGPASSWORD or pass --save-pass")
		}
	}
	return nil
}

func runConnRm(name string) error {
	cfg, err := getConfig()
	if err != nil {
		return exitWithCode(err, ExitInternalError)
	}
	if err := getRegistry(cfg).Remove(name); err != nil {
		return exitWithCode(err, ExitConnNotFound)
	}
	if !globalOpts.Quiet && !globalOpts.JSON {
		fmt.Printf("removed %s\n", name)
	}
	return nil
}

func formatConnection(c model.Connection) string {
	return fmt.Sprintf("%s  %s@%s:%s", c.Name, c.User, c.Host, c.Port)
}
