package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// Mode selects how a run's tabular results are persisted
type Mode string

const (
	ModeNone     Mode = "none"
	ModeSeparate Mode = "separate" // one CSV per target, last tabular result
	ModeSingle   Mode = "single"   // one merged CSV with a leading db column
)

// ParseMode converts a flag value to a Mode; the empty string means none
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeNone):
		return ModeNone, nil
	case string(ModeSeparate):
		return ModeSeparate, nil
	case string(ModeSingle):
		return ModeSingle, nil
	default:
		return "", fmt.Errorf("invalid save mode %q (want none, separate or single)", s)
	}
}

// Write persists the session's tabular results under dir according to mode
// and returns the written file paths. ModeNone writes nothing.
func Write(dir string, mode Mode, s *model.Session) ([]string, error) {
	switch mode {
	case ModeNone:
		return nil, nil
	case ModeSeparate:
		return writeSeparate(dir, s)
	case ModeSingle:
		return writeSingle(dir, s)
	}
	return nil, fmt.Errorf("unknown save mode %q", mode)
}

// writeSeparate writes <dir>/<target>.csv holding each target's last tabular
// result, whatever phase the target finished in.
func writeSeparate(dir string, s *model.Session) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, st := range s.List() {
		res, ok := st.LastTabular()
		if !ok {
			continue
		}
		path := filepath.Join(dir, fileName(st.Name)+".csv")
		if err := writeFile(path, res.Columns, res.Rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeSingle merges every successful target's last tabular result into
// <dir>/results.csv, prefixing each row with the target name. The header
// comes from the first contributing target. No file is written when no
// target contributed.
func writeSingle(dir string, s *model.Session) ([]string, error) {
	var header []string
	var rows [][]string
	for _, st := range s.List() {
		if st.Phase != model.PhaseSuccess {
			continue
		}
		res, ok := st.LastTabular()
		if !ok {
			continue
		}
		if header == nil {
			header = append([]string{"db"}, res.Columns...)
		}
		for _, row := range res.Rows {
			rows = append(rows, append([]string{st.Name}, row...))
		}
	}
	if header == nil {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "results.csv")
	if err := writeFile(path, header, rows); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func writeFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// fileName keeps target names from escaping the output directory
func fileName(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
