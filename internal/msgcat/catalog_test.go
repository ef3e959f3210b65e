package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedMessages(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{
		"puzzle.describe", "puzzle.busy", "puzzle.resigned", "puzzle.not_found", "puzzle.illegal",
		"puzzle.wrong", "puzzle.solved", "puzzle.continue", "puzzle.internal_error",
		"puzzle.upstream_failure", "puzzle.store_failure",
	} {
		if !c.Has(key) {
			t.Fatalf("missing %s", key)
		}
	}
	out, err := c.Render("puzzle.solved", map[string]any{"Played": "Nd5", "Prefix": ""})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, "Nd5!") {
		t.Fatalf("out = %q", out)
	}
}

func TestRenderErrors(t *testing.T) {
	c, _ := New("")
	if _, err := c.Render("puzzle.nope", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
	if _, err := c.Render("puzzle.solved", map[string]any{}); err == nil {
		t.Fatalf("expected missing field error")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("puzzle:\n  solved: \"Bravo {{.Played}}\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Render("puzzle.solved", map[string]any{"Played": "Qh7#"})
	if err != nil || out != "Bravo Qh7#" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if !c.Has("puzzle.wrong") {
		t.Fatalf("embedded keys lost after override")
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("puzzle:\n  solved: x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v", err)
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("puzzle:\n  solved: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for int leaf")
	}
}
