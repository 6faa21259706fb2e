package integration

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var (
	belugaBinary string
	dataDir      string
	homeDir      string
	scratchDir   string
)

func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "beluga-integration-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	belugaBinary = filepath.Join(tmpDir, "beluga")
	cmd := exec.Command("go", "build", "-o", belugaBinary, "../../cmd/beluga")
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("failed to build beluga: " + err.Error() + "\n" + string(out))
	}

	// Isolated config/data environment: nothing from the host user leaks in.
	dataDir = filepath.Join(tmpDir, "data")
	homeDir = filepath.Join(tmpDir, "home")
	scratchDir = filepath.Join(tmpDir, "scratch")
	for _, dir := range []string{dataDir, homeDir, scratchDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			panic(err)
		}
	}

	os.Exit(m.Run())
}

// runBeluga invokes the built binary with an isolated environment and
// returns stdout, stderr, and the exit code.
func runBeluga(t *testing.T, stdin string, args ...string) (string, string, int) {
	t.Helper()

	cmd := exec.Command(belugaBinary, args...)
	cmd.Dir = scratchDir
	cmd.Env = append(os.Environ(),
		"HOME="+homeDir,
		"BELUGA_DATA_DIR="+dataDir,
		"BELUGA_CONNECTION=",
		"BELUGA_SSLMODE=",
		"BELUGA_MAINTENANCE_DB=",
		"BELUGA_HISTORY_LIMIT=",
		"BELUGA_SAVE_DIR=",
	)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			t.Fatalf("beluga %v: %v", args, err)
		}
		code = exitErr.ExitCode()
	}
	return stdout.String(), stderr.String(), code
}

// addRefusedConnection registers a connection pointing at a port nothing
// listens on, so every target fails fast with a connect error.
func addRefusedConnection(t *testing.T, name string) {
	t.Helper()
	_, stderr, code := runBeluga(t, "", "conn", "add", name,
		"--host", "127.0.0.1", "--port", "1", "--user", "app")
	if code != 0 {
		t.Fatalf("conn add failed (%d): %s", code, stderr)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, code := runBeluga(t, "", "version")
	if code != 0 {
		t.Fatalf("version exit = %d", code)
	}
	if !strings.HasPrefix(stdout, "beluga ") {
		t.Fatalf("version output = %q", stdout)
	}
}

func TestConnLifecycle(t *testing.T) {
	addRefusedConnection(t, "lifecycle")

	stdout, _, code := runBeluga(t, "", "conn", "list")
	if code != 0 {
		t.Fatalf("conn list exit = %d", code)
	}
	if !strings.Contains(stdout, "lifecycle") || !strings.Contains(stdout, "app@127.0.0.1:1") {
		t.Fatalf("conn list output = %q", stdout)
	}

	if _, _, code := runBeluga(t, "", "conn", "rm", "lifecycle"); code != 0 {
		t.Fatalf("conn rm exit = %d", code)
	}
	if _, _, code := runBeluga(t, "", "conn", "rm", "lifecycle"); code != 3 {
		t.Fatalf("conn rm missing exit = %d, want 3", code)
	}
}

func TestConnAddDuplicateRejected(t *testing.T) {
	addRefusedConnection(t, "dup")
	_, stderr, code := runBeluga(t, "", "conn", "add", "dup",
		"--host", "127.0.0.1", "--port", "1", "--user", "app")
	if code != 2 {
		t.Fatalf("duplicate conn add exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "already exists") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestSnippetLifecycle(t *testing.T) {
	_, stderr, code := runBeluga(t, "", "snippet", "add", "cleanup",
		"--content", "TRUNCATE audit;", "--description", "purge audit rows")
	if code != 0 {
		t.Fatalf("snippet add failed (%d): %s", code, stderr)
	}

	stdout, _, code := runBeluga(t, "", "snippet", "show", "cleanup")
	if code != 0 {
		t.Fatalf("snippet show exit = %d", code)
	}
	if strings.TrimSpace(stdout) != "TRUNCATE audit;" {
		t.Fatalf("snippet show output = %q", stdout)
	}

	stdout, _, code = runBeluga(t, "", "snippet", "list")
	if code != 0 {
		t.Fatalf("snippet list exit = %d", code)
	}
	if !strings.Contains(stdout, "cleanup") || !strings.Contains(stdout, "purge audit rows") {
		t.Fatalf("snippet list output = %q", stdout)
	}

	if _, _, code := runBeluga(t, "", "snippet", "rm", "cleanup"); code != 0 {
		t.Fatalf("snippet rm exit = %d", code)
	}
	_, stderr, code = runBeluga(t, "", "snippet", "show", "cleanup")
	if code != 2 {
		t.Fatalf("snippet show missing exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "not found") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunValidation(t *testing.T) {
	addRefusedConnection(t, "validation")

	// Unknown connection.
	_, stderr, code := runBeluga(t, "", "run", "--conn", "nosuch",
		"--exec", "SELECT 1", "-d", "a")
	if code != 3 {
		t.Fatalf("unknown conn exit = %d, want 3 (%s)", code, stderr)
	}

	// Empty script via stdin.
	_, stderr, code = runBeluga(t, "", "run", "--plain", "--conn", "validation", "-d", "a")
	if code != 2 {
		t.Fatalf("empty script exit = %d, want 2 (%s)", code, stderr)
	}
	if !strings.Contains(stderr, "script is empty") {
		t.Fatalf("stderr = %q", stderr)
	}

	// No databases and no saved selection.
	_, stderr, code = runBeluga(t, "", "run", "--plain", "--conn", "validation",
		"--exec", "SELECT 1")
	if code != 2 {
		t.Fatalf("no targets exit = %d, want 2 (%s)", code, stderr)
	}
	if !strings.Contains(stderr, "no databases selected") {
		t.Fatalf("stderr = %q", stderr)
	}

	// Bad flag values checked before anything runs.
	if _, _, code := runBeluga(t, "", "run", "--plain", "--conn", "validation",
		"--exec", "SELECT 1", "-d", "a", "--save", "bogus"); code != 2 {
		t.Fatalf("bad --save exit = %d, want 2", code)
	}
	if _, _, code := runBeluga(t, "", "run", "--plain", "--conn", "validation",
		"--exec", "SELECT 1", "-d", "a", "--on-return", "bogus"); code != 2 {
		t.Fatalf("bad --on-return exit = %d, want 2", code)
	}
}

func TestRunAgainstUnreachableTargets(t *testing.T) {
	addRefusedConnection(t, "unreachable")

	stdout, _, code := runBeluga(t, "", "run", "--plain", "--conn", "unreachable",
		"--exec", "SELECT 1", "-d", "shop_a,shop_b")
	if code != 5 {
		t.Fatalf("run exit = %d, want 5\nstdout: %s", code, stdout)
	}
	if !strings.Contains(stdout, "shop_a: error:") || !strings.Contains(stdout, "shop_b: error:") {
		t.Fatalf("missing per-target lines: %q", stdout)
	}
	if !strings.Contains(stdout, "0 of 2 target(s) succeeded, 2 failed") {
		t.Fatalf("missing summary: %q", stdout)
	}
}

func TestRunJSONReport(t *testing.T) {
	addRefusedConnection(t, "jsonrun")

	stdout, _, code := runBeluga(t, "", "run", "--json", "--conn", "jsonrun",
		"--exec", "SELECT 1", "-d", "shop_a")
	if code != 5 {
		t.Fatalf("run exit = %d, want 5\nstdout: %s", code, stdout)
	}

	var report struct {
		OK       bool `json:"ok"`
		Complete bool `json:"complete"`
		Targets  []struct {
			Name       string `json:"name"`
			Phase      string `json:"phase"`
			Diagnostic string `json:"diagnostic"`
		} `json:"targets"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("parse report: %v\n%s", err, stdout)
	}
	if report.OK {
		t.Error("ok = true, want false")
	}
	if !report.Complete {
		t.Error("complete = false, want true")
	}
	if len(report.Targets) != 1 || report.Targets[0].Name != "shop_a" {
		t.Fatalf("targets = %+v", report.Targets)
	}
	if report.Targets[0].Phase != "error" || report.Targets[0].Diagnostic == "" {
		t.Fatalf("target = %+v", report.Targets[0])
	}
}

func TestRunScriptFromStdin(t *testing.T) {
	addRefusedConnection(t, "stdin")

	stdout, _, code := runBeluga(t, "SELECT 1;\n", "run", "--plain",
		"--conn", "stdin", "-d", "shop_a")
	if code != 5 {
		t.Fatalf("run exit = %d, want 5\nstdout: %s", code, stdout)
	}
	if !strings.Contains(stdout, "shop_a: error:") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	addRefusedConnection(t, "histconn")

	if _, _, code := runBeluga(t, "", "run", "--plain", "--conn", "histconn",
		"--exec", "SELECT 42 FROM history_probe", "-d", "shop_a"); code != 5 {
		t.Fatalf("run exit = %d, want 5", code)
	}

	stdout, _, code := runBeluga(t, "", "history")
	if code != 0 {
		t.Fatalf("history exit = %d", code)
	}
	if !strings.Contains(stdout, "SELECT 42 FROM history_probe") {
		t.Fatalf("history missing entry: %q", stdout)
	}
	if !strings.Contains(stdout, "histconn") {
		t.Fatalf("history missing origin: %q", stdout)
	}

	if _, _, code := runBeluga(t, "", "history", "clear"); code != 0 {
		t.Fatalf("history clear exit = %d", code)
	}
	stdout, _, _ = runBeluga(t, "", "history")
	if !strings.Contains(stdout, "no history") {
		t.Fatalf("history after clear = %q", stdout)
	}
}

func TestRunSavesErrorSelection(t *testing.T) {
	addRefusedConnection(t, "retry")

	// First run names targets explicitly and keeps only the failed ones.
	if _, _, code := runBeluga(t, "", "run", "--plain", "--conn", "retry",
		"--exec", "SELECT 1", "-d", "shop_a,shop_b", "--on-return", "errors"); code != 5 {
		t.Fatalf("first run exit = %d, want 5", code)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, "selections.json"))
	if err != nil {
		t.Fatalf("read selections: %v", err)
	}
	var selections map[string][]string
	if err := json.Unmarshal(data, &selections); err != nil {
		t.Fatalf("parse selections: %v", err)
	}
	saved := selections["retry"]
	if len(saved) != 2 || saved[0] != "shop_a" || saved[1] != "shop_b" {
		t.Fatalf("saved selection = %v, want [shop_a shop_b]", saved)
	}

	// Second run picks its targets up from the saved selection.
	stdout, _, code := runBeluga(t, "", "run", "--plain", "--conn", "retry",
		"--exec", "SELECT 1")
	if code != 5 {
		t.Fatalf("second run exit = %d, want 5", code)
	}
	if !strings.Contains(stdout, "shop_a: error:") || !strings.Contains(stdout, "shop_b: error:") {
		t.Fatalf("second run did not reuse selection: %q", stdout)
	}
}

func TestRunSnippetSource(t *testing.T) {
	addRefusedConnection(t, "snipsrc")

	if _, stderr, code := runBeluga(t, "", "snippet", "add", "probe",
		"--content", "SELECT 'probe';"); code != 0 {
		t.Fatalf("snippet add failed (%d): %s", code, stderr)
	}

	stdout, _, code := runBeluga(t, "", "run", "--plain", "--conn", "snipsrc",
		"--snippet", "probe", "-d", "shop_a")
	if code != 5 {
		t.Fatalf("run exit = %d, want 5\nstdout: %s", code, stdout)
	}

	stdout, _, _ = runBeluga(t, "", "history")
	if !strings.Contains(stdout, "SELECT 'probe';") {
		t.Fatalf("history missing snippet run: %q", stdout)
	}
}
