package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

func TestSnippetContentInline(t *testing.T) {
	got, err := snippetContent("SELECT 1", "")
	if err != nil {
		t.Fatalf("snippetContent: %v", err)
	}
	if got != "SELECT 1" {
		t.Fatalf("content = %q", got)
	}
}

func TestSnippetContentFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snip.sql")
	if err := os.WriteFile(path, []byte("VACUUM;"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := snippetContent("", path)
	if err != nil {
		t.Fatalf("snippetContent: %v", err)
	}
	if got != "VACUUM;" {
		t.Fatalf("content = %q", got)
	}
}

func TestSnippetContentRejectsBothSources(t *testing.T) {
	_, err := snippetContent("SELECT 1", "file.sql")
	if err == nil {
		t.Fatalf("expected error for two sources")
	}
	if !strings.Contains(err.Error(), "one content source") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFormatSnippet(t *testing.T) {
	plain := model.Snippet{Name: "cleanup"}
	if got := formatSnippet(plain); got != "cleanup" {
		t.Fatalf("formatSnippet = %q", got)
	}

	described := model.Snippet{Name: "cleanup", Description: "purge stale sessions"}
	got := formatSnippet(described)
	if !strings.HasPrefix(got, "cleanup") || !strings.Contains(got, "purge stale sessions") {
		t.Fatalf("formatSnippet = %q", got)
	}
}
