package model

import "fmt"

// Phase represents the lifecycle state of one target within a run
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Terminal reports whether no further transitions are expected
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseError
}

// StatementKind discriminates the variants of StatementResult
type StatementKind string

const (
	StatementTabular  StatementKind = "tabular"  // row-producing statement
	StatementMutation StatementKind = "mutation" // affected-row count only
	StatementFailure  StatementKind = "failure"  // statement error, run may continue
)

// StatementResult is the structured outcome of one statement on one target.
// Only the fields of the active Kind are meaningful.
type StatementResult struct {
	Kind         StatementKind
	Columns      []string
	Rows         [][]string
	AffectedRows int64
	Message      string
}

// NewTabular creates the result of a row-producing statement
func NewTabular(columns []string, rows [][]string) StatementResult {
	return StatementResult{Kind: StatementTabular, Columns: columns, Rows: rows}
}

// NewMutation creates the result of a non-row-producing statement
func NewMutation(affected int64) StatementResult {
	return StatementResult{Kind: StatementMutation, AffectedRows: affected}
}

// NewFailure creates the result of a failed statement
func NewFailure(message string) StatementResult {
	return StatementResult{Kind: StatementFailure, Message: message}
}

// Summary renders a one-line description for logs and plain output
func (r StatementResult) Summary() string {
	switch r.Kind {
	case StatementTabular:
		return fmt.Sprintf("%d row(s), %d column(s)", len(r.Rows), len(r.Columns))
	case StatementMutation:
		return fmt.Sprintf("%d row(s) affected", r.AffectedRows)
	case StatementFailure:
		return r.Message
	}
	return string(r.Kind)
}

// TargetState is the full per-target snapshot for the current run.
// The engine emits whole snapshots; the session replaces them wholesale.
type TargetState struct {
	Name       string
	Phase      Phase
	Diagnostic string // error phase only
	Statements []StatementResult
}

// NewTargetState creates the initial waiting state for a target
func NewTargetState(name string) TargetState {
	return TargetState{Name: name, Phase: PhaseWaiting}
}

// HasResults reports whether any statement outcome has been recorded,
// gating the per-target results view.
func (t TargetState) HasResults() bool {
	return len(t.Statements) > 0
}

// LastTabular returns the most recent row-producing result, if any
func (t TargetState) LastTabular() (StatementResult, bool) {
	for i := len(t.Statements) - 1; i >= 0; i-- {
		if t.Statements[i].Kind == StatementTabular {
			return t.Statements[i], true
		}
	}
	return StatementResult{}, false
}
