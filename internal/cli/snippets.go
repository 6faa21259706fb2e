package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
	"github.com/WarPigBRZ/BelugaDB/internal/store"
)

func newSnippetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippet",
		Short: "Manage reusable SQL snippets",
	}
	cmd.AddCommand(newSnippetListCmd())
	cmd.AddCommand(newSnippetShowCmd())
	cmd.AddCommand(newSnippetAddCmd())
	cmd.AddCommand(newSnippetRmCmd())
	return cmd
}

func newSnippetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved snippets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnippetList()
		},
	}
}

func newSnippetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a snippet's SQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnippetShow(args[0])
		},
	}
}

func newSnippetAddCmd() *cobra.Command {
	var description, content, file string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Save a snippet",
		Long: `Save a SQL snippet under a unique name.

The content comes from --content, --file, or stdin. Run it later with
beluga run --snippet NAME.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnippetAdd(args[0], description, content, file)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Short description")
	cmd.Flags().StringVar(&content, "content", "", "Snippet SQL, inline")
	cmd.Flags().StringVar(&file, "file", "", "Read the snippet SQL from a file")

	return cmd
}

func newSnippetRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME",
		Short: "Delete a snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnippetRm(args[0])
		},
	}
}

func runSnippetList() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snippets, err := st.Snippets()
	if err != nil {
		return exitWithCode(err, ExitStoreError)
	}

	if globalOpts.JSON {
		return printJSON(snippets)
	}
	if len(snippets) == 0 {
		fmt.Println("no snippets (add one with `beluga snippet add`)")
		return nil
	}
	for _, s := range snippets {
		fmt.Println(formatSnippet(s))
	}
	return nil
}

func runSnippetShow(name string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snip, err := st.Snippet(name)
	if err != nil {
		return snippetError(name, err)
	}

	if globalOpts.JSON {
		return printJSON(snip)
	}
	fmt.Println(snip.Content)
	return nil
}

func runSnippetAdd(name, description, content, file string) error {
	sql, err := snippetContent(content, file)
	if err != nil {
		return exitWithCode(err, ExitScriptError)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snip := model.Snippet{Name: name, Description: description, Content: sql}
	if err := st.AddSnippet(snip); err != nil {
		return exitWithCode(err, ExitStoreError)
	}
	if !globalOpts.Quiet && !globalOpts.JSON {
		fmt.Printf("saved snippet %s\n", name)
	}
	return nil
}

func runSnippetRm(name string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteSnippet(name); err != nil {
		return snippetError(name, err)
	}
	if !globalOpts.Quiet && !globalOpts.JSON {
		fmt.Printf("removed snippet %s\n", name)
	}
	return nil
}

func openStore() (store.Store, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, exitWithCode(err, ExitInternalError)
	}
	st, err := getStore(cfg)
	if err != nil {
		return nil, exitWithCode(fmt.Errorf("open store: %w", err), ExitStoreError)
	}
	return st, nil
}

func snippetError(name string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return exitWithCode(fmt.Errorf("snippet %q not found", name), ExitValidation)
	}
	return exitWithCode(err, ExitStoreError)
}

// snippetContent resolves the snippet SQL from --content, --file, or stdin
func snippetContent(content, file string) (string, error) {
	if content != "" && file != "" {
		return "", fmt.Errorf("choose one content source: --content or --file")
	}
	if content != "" {
		return content, nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read snippet: %w", err)
		}
		return string(data), nil
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("no content given (pass --content, --file, or pipe SQL on stdin)")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func formatSnippet(s model.Snippet) string {
	if s.Description == "" {
		return s.Name
	}
	return fmt.Sprintf("%-20s  %s", s.Name, s.Description)
}
