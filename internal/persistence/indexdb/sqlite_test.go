package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"blockedit.ai/internal/blocks"
)

func sampleRecords() []blocks.Record {
	return []blocks.Record{
		{ID: 0, Name: "Air", Transparent: true},
		{ID: 1, Name: "Stone", Atlas: blocks.Cell{0, 1}, Solid: true,
			Sound: &blocks.Sound{Step: "stone_step", Break: "stone_break", Place: "stone_place"}},
	}
}

func TestSQLiteIndex_RecordSave(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	recs := sampleRecords()
	first, err := idx.RecordSave(ctx, "/game/js/constants.js", recs, 512, "/b/constants.js@1.zst")
	if err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	recs[1].Name = "Cobble"
	recs = append(recs, blocks.New(2))
	second, err := idx.RecordSave(ctx, "/game/js/constants.js", recs, 600, "")
	if err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if _, err := idx.RecordSave(ctx, "/other.js", nil, 10, ""); err != nil {
		t.Fatalf("RecordSave other: %v", err)
	}

	hist, err := idx.History(ctx, "/game/js/constants.js", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].SaveID != second.SaveID || hist[1].SaveID != first.SaveID {
		t.Fatalf("history=%+v", hist)
	}
	if hist[1].Blocks != 2 || hist[1].Bytes != 512 || hist[1].BackupPath != "/b/constants.js@1.zst" {
		t.Fatalf("first row=%+v", hist[1])
	}
	if hist[0].Digest != blocks.Digest(recs) {
		t.Fatalf("digest mismatch")
	}
	if all, _ := idx.History(ctx, "", 1); len(all) != 1 {
		t.Fatalf("limit ignored: %d rows", len(all))
	}

	got, err := idx.BlocksAt(ctx, first.SaveID)
	if err != nil {
		t.Fatalf("BlocksAt: %v", err)
	}
	want := sampleRecords()
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if !blocks.Equal(got[i], want[i]) {
			t.Fatalf("row %d=%+v want %+v", i, got[i], want[i])
		}
	}

	saves, versions, err := idx.BlockHistory(ctx, "/game/js/constants.js", 1)
	if err != nil {
		t.Fatalf("BlockHistory: %v", err)
	}
	if len(saves) != 2 || versions[0].Name != "Cobble" || versions[1].Name != "Stone" {
		t.Fatalf("versions=%+v", versions)
	}

	if _, err := idx.BlocksAt(ctx, "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err=%v want ErrNoRows", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM save_blocks WHERE save_id=?`, second.SaveID).Scan(&n); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 3 {
		t.Fatalf("save_blocks rows=%d want 3", n)
	}
}

func TestSQLiteIndex_EmptySaveReturnsEmptySlice(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "sub", "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()
	r, err := idx.RecordSave(ctx, "x.js", nil, 0, "")
	if err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	got, err := idx.BlocksAt(ctx, r.SaveID)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error")
	}
}
