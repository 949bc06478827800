package log

import (
	"path/filepath"
	"testing"
	"time"

	"blockedit.ai/internal/blocks"
)

func intPtr(v int) *int { return &v }

func TestEditLogger_RotatesAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewEditLogger(dir)

	clock := time.Date(2026, 3, 4, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	stone := blocks.Record{ID: 1, Name: "Stone", Solid: true}
	if err := l.WriteEdit(EditEntry{Op: "add", Index: 0, ID: intPtr(1), After: &stone}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	renamed := stone
	renamed.Name = "Cobble"
	if err := l.WriteEdit(EditEntry{Op: "update", Index: 0, ID: intPtr(1), Before: &stone, After: &renamed}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteEdit(EditEntry{Op: "save", Index: -1, Path: "/game/js/constants.js"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "edits-*.jsonl.zst"))
	if len(files) != 2 {
		t.Fatalf("files=%v want 2 hourly files", files)
	}

	all, err := ReadEdits(dir, EditFilter{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(all) != 3 || all[0].Op != "add" || all[2].Op != "save" {
		t.Fatalf("entries=%+v", all)
	}
	if all[1].Before == nil || all[1].Before.Name != "Stone" || all[1].After.Name != "Cobble" {
		t.Fatalf("update entry=%+v", all[1])
	}

	byID, _ := ReadEdits(dir, EditFilter{ID: intPtr(1)})
	if len(byID) != 2 {
		t.Fatalf("by id=%d want 2", len(byID))
	}
	byOp, _ := ReadEdits(dir, EditFilter{Op: "SAVE"})
	if len(byOp) != 1 || byOp[0].Path != "/game/js/constants.js" {
		t.Fatalf("by op=%+v", byOp)
	}
	since, _ := ReadEdits(dir, EditFilter{Since: time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC)})
	if len(since) != 2 {
		t.Fatalf("since=%d want 2", len(since))
	}
}

func TestReadEdits_MissingDir(t *testing.T) {
	got, err := ReadEdits(filepath.Join(t.TempDir(), "nope"), EditFilter{})
	if err != nil || got != nil {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestEditLogger_Nil(t *testing.T) {
	var l *EditLogger
	if err := l.WriteEdit(EditEntry{Op: "add"}); err != nil {
		t.Fatalf("nil logger write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil logger close: %v", err)
	}
}
