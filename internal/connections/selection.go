package connections

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// selections.json maps a connection name to the target names pre-checked
// for its next run. An entry with an empty list means "nothing checked",
// which is distinct from no entry at all.

func (r *Registry) selectionPath() string {
	return filepath.Join(r.dir, "selections.json")
}

func (r *Registry) loadSelections() (map[string][]string, error) {
	data, err := os.ReadFile(r.selectionPath())
	if os.IsNotExist(err) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read selections: %w", err)
	}
	sel := map[string][]string{}
	if err := json.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("parse selections: %w", err)
	}
	return sel, nil
}

// Selection returns the saved target selection for a connection and whether
// one was ever saved.
func (r *Registry) Selection(conn string) ([]string, bool, error) {
	sel, err := r.loadSelections()
	if err != nil {
		return nil, false, err
	}
	names, ok := sel[conn]
	return names, ok, nil
}

// SetSelection replaces the saved target selection for a connection
func (r *Registry) SetSelection(conn string, names []string) error {
	sel, err := r.loadSelections()
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}
	sel[conn] = names

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return fmt.Errorf("encode selections: %w", err)
	}
	if err := os.WriteFile(r.selectionPath(), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write selections: %w", err)
	}
	return nil
}
