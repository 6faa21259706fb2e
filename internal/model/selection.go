package model

import (
	"fmt"
	"strings"
)

// SelectionSet is the set of target names pre-checked for the next dispatch
type SelectionSet []string

// ReturnChoice is the operator's decision when leaving a finished run
type ReturnChoice string

const (
	// PreviousSelection keeps the selection exactly as it was before dispatch
	PreviousSelection ReturnChoice = "previous"
	// ErrorsOnly keeps only the targets that finished in error phase
	ErrorsOnly ReturnChoice = "errors"
)

// ParseReturnChoice converts a flag value to a ReturnChoice
func ParseReturnChoice(s string) (ReturnChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(PreviousSelection):
		return PreviousSelection, nil
	case string(ErrorsOnly):
		return ErrorsOnly, nil
	default:
		return "", fmt.Errorf("invalid return choice %q (want %q or %q)", s, PreviousSelection, ErrorsOnly)
	}
}

// Resolve computes the next selection set from a finished session. It is a
// pure function: PreviousSelection returns prior untouched, ErrorsOnly
// returns exactly the error-phase target names (empty when nothing failed).
func Resolve(s *Session, choice ReturnChoice, prior SelectionSet) SelectionSet {
	if choice != ErrorsOnly {
		return prior
	}
	failed := s.ErrorTargets()
	next := make(SelectionSet, 0, len(failed))
	for _, st := range failed {
		next = append(next, st.Name)
	}
	return next
}
