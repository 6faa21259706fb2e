package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/WarPigBRZ/BelugaDB/internal/config"
	"github.com/WarPigBRZ/BelugaDB/internal/connections"
	"github.com/WarPigBRZ/BelugaDB/internal/engine"
	"github.com/WarPigBRZ/BelugaDB/internal/export"
	"github.com/WarPigBRZ/BelugaDB/internal/model"
	"github.com/WarPigBRZ/BelugaDB/internal/monitor"
	"github.com/WarPigBRZ/BelugaDB/internal/runner"
)

type runOptions struct {
	Exec        string
	Snippet     string
	Databases   []string
	StopOnError bool
	Save        string
	Out         string
	OnReturn    string
	Plain       bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [script.sql]",
		Short: "Run a SQL script against the selected databases",
		Long: `Run one SQL script against every selected database of a connection.

The script comes from a file argument, --exec, --snippet, or stdin. Targets
come from --databases or the selection saved for the connection. Each target
runs concurrently and finishes as waiting -> success or waiting -> error.

Examples:
  beluga run migrate.sql --databases shop_eu,shop_us
  beluga run --exec "SELECT count(*) FROM orders" --save single --out ./results
  cat cleanup.sql | beluga run --plain --stop-on-error`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileArg := ""
			if len(args) == 1 {
				fileArg = args[0]
			}
			return runRun(fileArg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Exec, "exec", "e", "", "SQL to run, inline")
	cmd.Flags().StringVar(&opts.Snippet, "snippet", "", "Run a saved snippet by name")
	cmd.Flags().StringSliceVarP(&opts.Databases, "databases", "d", nil, "Target databases (default: the saved selection)")
	cmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", false, "Skip a target's remaining statements after its first failure")
	cmd.Flags().StringVar(&opts.Save, "save", "", "Persist tabular results as CSV (separate|single)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Directory for saved results (default: save_dir from config, else .)")
	cmd.Flags().StringVar(&opts.OnReturn, "on-return", "", "Selection to keep after the run (previous|errors)")
	cmd.Flags().BoolVar(&opts.Plain, "plain", false, "Line-per-target output instead of the live dashboard")

	return cmd
}

func runRun(fileArg string, opts *runOptions) error {
	cfg, err := getConfig()
	if err != nil {
		return exitWithCode(err, ExitInternalError)
	}

	persist, err := export.ParseMode(opts.Save)
	if err != nil {
		return exitWithCode(err, ExitValidation)
	}
	var onReturn model.ReturnChoice
	if opts.OnReturn != "" {
		onReturn, err = model.ParseReturnChoice(opts.OnReturn)
		if err != nil {
			return exitWithCode(err, ExitValidation)
		}
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

	st, err := getStore(cfg)
	var history runner.HistoryRecorder
	if err != nil {
		if opts.Snippet != "" {
			return exitWithCode(fmt.Errorf("open store: %w", err), ExitStoreError)
		}
		// The run can proceed without history; recording is best-effort.
		log.Printf("beluga: history disabled: %v", err)
		st = nil
	} else {
		history = st
		defer st.Close()
	}

	script, err := loadScript(fileArg, opts, st)
	if err != nil {
		return exitWithCode(err, ExitScriptError)
	}

	names, err := targetNames(opts, reg, connName)
	if err != nil {
		return exitWithCode(err, ExitValidation)
	}

	outDir := config.ExpandPath(opts.Out, "")
	if outDir == "" {
		outDir = cfg.SaveDir
	}
	if outDir == "" {
		outDir = "."
	}

	disp := &runner.Dispatcher{Engine: engine.NewPostgres(), History: history}
	handle, err := disp.Dispatch(context.Background(), runner.Request{
		Script:      script,
		Targets:     buildTargets(names, conn, cfg.SSLMode),
		StopOnError: opts.StopOnError,
		Persist:     persist,
		OutDir:      outDir,
		Origin:      connName,
	})
	if err != nil {
		var verr *runner.ValidationError
		if errors.As(err, &verr) {
			return exitWithCode(err, ExitValidation)
		}
		return exitWithCode(err, ExitInternalError)
	}

	if useDashboard(opts) {
		return runDashboard(handle, reg, connName, names, script, onReturn)
	}
	return runPlain(handle, reg, connName, names, onReturn)
}

// useDashboard decides between the live TUI and plain line output
func useDashboard(opts *runOptions) bool {
	if opts.Plain || globalOpts.JSON || globalOpts.Quiet {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func runDashboard(handle *runner.Handle, reg *connections.Registry, connName string, prior []string, script string, onReturn model.ReturnChoice) error {
	dash := monitor.NewDashboard(handle, monitor.Options{
		Connection:    connName,
		Script:        script,
		PromptOnLeave: onReturn == "", // --on-return pre-decides the leave prompt
	})
	if err := dash.Run(); err != nil {
		return exitWithCode(fmt.Errorf("dashboard: %w", err), ExitInternalError)
	}

	if dash.Detached() {
		// Left mid-run: targets keep executing server-side and the saved
		// selection stays as it was.
		if !globalOpts.Quiet {
			fmt.Println("run left before completion; statements keep executing on the targets")
		}
		awaitHistory(handle)
		return nil
	}

	choice := onReturn
	if choice == "" {
		choice = dash.ReturnChoice()
	}

	<-handle.Done()
	awaitHistory(handle)
	session := handle.Session()
	if err := saveSelection(reg, connName, session, choice, prior); err != nil {
		log.Printf("beluga: selection not saved: %v", err)
	}
	if len(session.ErrorTargets()) > 0 {
		os.Exit(ExitRunErrors)
	}
	return nil
}

func runPlain(handle *runner.Handle, reg *connections.Registry, connName string, prior []string, choice model.ReturnChoice) error {
	for u := range handle.Updates() {
		if u.State.Phase == model.PhaseWaiting {
			// Progressive snapshots only matter on a live dashboard.
			continue
		}
		if !globalOpts.Quiet && !globalOpts.JSON {
			fmt.Println(formatUpdate(u.State))
		}
	}
	<-handle.Done()
	awaitHistory(handle)
	session := handle.Session()

	if globalOpts.JSON {
		if err := printJSON(buildReport(session)); err != nil {
			return exitWithCode(err, ExitInternalError)
		}
	} else if !globalOpts.Quiet {
		fmt.Println(plainSummary(session))
	}

	if choice != "" {
		if err := saveSelection(reg, connName, session, choice, prior); err != nil {
			log.Printf("beluga: selection not saved: %v", err)
		}
	}
	if len(session.ErrorTargets()) > 0 {
		os.Exit(ExitRunErrors)
	}
	return nil
}

// saveSelection persists the resolver's output as the connection's selection
func saveSelection(reg *connections.Registry, connName string, session *model.Session, choice model.ReturnChoice, prior []string) error {
	sel := model.Resolve(session, choice, model.SelectionSet(prior))
	return reg.SetSelection(connName, sel)
}

// awaitHistory gives the background history write a bounded window to land
// before the process exits
func awaitHistory(handle *runner.Handle) {
	select {
	case <-handle.HistoryRecorded():
	case <-time.After(2 * time.Second):
	}
}

// snippetSource is the slice of the store the run command needs
type snippetSource interface {
	Snippet(name string) (*model.Snippet, error)
}

// loadScript resolves the script from exactly one source: file argument,
// --exec, --snippet, or piped stdin.
func loadScript(fileArg string, opts *runOptions, snippets snippetSource) (string, error) {
	sources := 0
	for _, set := range []bool{fileArg != "", opts.Exec != "", opts.Snippet != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return "", fmt.Errorf("choose one script source: file argument, --exec, or --snippet")
	}

	switch {
	case fileArg != "":
		data, err := os.ReadFile(fileArg)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(data), nil
	case opts.Exec != "":
		return opts.Exec, nil
	case opts.Snippet != "":
		if snippets == nil {
			return "", fmt.Errorf("snippet store unavailable")
		}
		snip, err := snippets.Snippet(opts.Snippet)
		if err != nil {
			return "", err
		}
		return snip.Content, nil
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("no script given (pass a file, --exec, --snippet, or pipe SQL on stdin)")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// targetNames picks the run's targets: the --databases flag wins, otherwise
// the selection saved for the connection.
func targetNames(opts *runOptions, reg *connections.Registry, connName string) ([]string, error) {
	if len(opts.Databases) > 0 {
		var names []string
		for _, name := range opts.Databases {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		return names, nil
	}

	names, saved, err := reg.Selection(connName)
	if err != nil {
		return nil, err
	}
	if !saved || len(names) == 0 {
		return nil, fmt.Errorf("no databases selected for %q (pass --databases; the selection is saved after each run)", connName)
	}
	return names, nil
}

func buildTargets(names []string, conn *model.Connection, sslmode string) []engine.Target {
	targets := make([]engine.Target, len(names))
	for i, name := range names {
		targets[i] = engine.Target{Name: name, DSN: conn.DSN(name, sslmode)}
	}
	return targets
}

func formatUpdate(state model.TargetState) string {
	if state.Phase == model.PhaseError {
		return fmt.Sprintf("%s: error: %s", state.Name, state.Diagnostic)
	}
	return fmt.Sprintf("%s: %s (%d statement(s))", state.Name, state.Phase, len(state.Statements))
}

func plainSummary(s *model.Session) string {
	succeeded, failed := 0, 0
	for _, st := range s.List() {
		switch st.Phase {
		case model.PhaseSuccess:
			succeeded++
		case model.PhaseError:
			failed++
		}
	}
	return fmt.Sprintf("%d of %d target(s) succeeded, %d failed", succeeded, s.Len(), failed)
}

type targetReport struct {
	Name       string `json:"name"`
	Phase      string `json:"phase"`
	Statements int    `json:"statements"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

type runReport struct {
	OK       bool           `json:"ok"`
	Complete bool           `json:"complete"`
	Targets  []targetReport `json:"targets"`
}

func buildReport(s *model.Session) runReport {
	report := runReport{OK: true, Complete: s.IsComplete()}
	for _, st := range s.List() {
		if st.Phase == model.PhaseError {
			report.OK = false
		}
		report.Targets = append(report.Targets, targetReport{
			Name:       st.Name,
			Phase:      string(st.Phase),
			Statements: len(st.Statements),
			Diagnostic: st.Diagnostic,
		})
	}
	return report
}
