package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"blockedit.ai/internal/config"
	"blockedit.ai/internal/editor"
	persistlog "blockedit.ai/internal/persistence/log"
)

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	osExit = func(c int) { code = c }
	t.Cleanup(func() {
		osExit = os.Exit
		cleanup = nil
	})
	return &code
}

func TestExit_RunsCleanupInReverse(t *testing.T) {
	code := stubExit(t)
	var order []string
	onExit(func() error { order = append(order, "first"); return nil })
	onExit(func() error { order = append(order, "second"); return errors.New("ignored") })

	exit(2)
	if *code != 2 || len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("code=%d order=%v", *code, order)
	}
	exit(3)
	if len(order) != 2 {
		t.Fatalf("cleanup ran twice: %v", order)
	}
}

func TestFail_ClosesSession(t *testing.T) {
	code := stubExit(t)
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Atlas.Size, cfg.Atlas.Grid = 64, 4
	cfg.Normalize(dir)
	_ = os.MkdirAll(filepath.Dir(cfg.SourcePath), 0o755)
	if err := os.WriteFile(cfg.SourcePath, []byte("export const BLOCK_DATA = [\n    { id: 0, name: 'Air' },\n];\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sess, err := editor.Open(cfg, editor.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	onExit(sess.Close)
	if err := sess.Load(""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	fail("save", errors.New("disk full"))
	if *code != 1 {
		t.Fatalf("code=%d want 1", *code)
	}

	entries, err := persistlog.ReadEdits(cfg.JournalDir, persistlog.EditFilter{})
	if err != nil || len(entries) != 1 || entries[0].Op != "load" {
		t.Fatalf("journal=%+v err=%v", entries, err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
