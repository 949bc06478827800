package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestWriteRead_BothCodecs(t *testing.T) {
	content := []byte("export const BLOCK_DATA = [\n    { id: 0, name: 'Air' },\n];\n")
	for _, codec := range []Codec{CodecZstd, CodecLZ4} {
		s, err := New(t.TempDir(), codec, 0)
		if err != nil {
			t.Fatalf("%s: New: %v", codec, err)
		}
		e, err := s.Write("/game/js/constants.js", content)
		if err != nil {
			t.Fatalf("%s: Write: %v", codec, err)
		}
		if e.Source != "constants.js" || e.Codec != codec || e.Size <= 0 {
			t.Fatalf("%s: entry=%+v", codec, e)
		}
		got, err := Read(e.Path)
		if err != nil {
			t.Fatalf("%s: Read: %v", codec, err)
		}
		if !bytes.Equal(got, content) {
			t.Fatalf("%s: restored bytes differ:\n%q", codec, got)
		}
	}
}

func TestListAndPrune(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, CodecZstd, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	for i := 0; i < 5; i++ {
		if _, err := s.Write("constants.js", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if _, err := s.Write("other.js", []byte("x")); err != nil {
		t.Fatalf("Write other: %v", err)
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	list, err := s.List("constants.js")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len=%d want 3", len(list))
	}
	if !list[0].Created.After(list[1].Created) {
		t.Fatalf("not newest first: %v %v", list[0].Created, list[1].Created)
	}
	newest, err := Read(list[0].Path)
	if err != nil || string(newest) != "e" {
		t.Fatalf("newest=%q err=%v", newest, err)
	}

	all, _ := s.List("")
	if len(all) != 4 {
		t.Fatalf("all=%d want 4", len(all))
	}

	latest, ok, err := s.Latest("other.js")
	if err != nil || !ok || latest.Source != "other.js" {
		t.Fatalf("latest=%+v ok=%v err=%v", latest, ok, err)
	}
}

func TestList_MissingDir(t *testing.T) {
	s, _ := New(filepath.Join(t.TempDir(), "none"), CodecLZ4, 1)
	list, err := s.List("")
	if err != nil || len(list) != 0 {
		t.Fatalf("list=%v err=%v", list, err)
	}
	if _, ok, _ := s.Latest("x.js"); ok {
		t.Fatalf("latest found in empty store")
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New("", CodecZstd, 1); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if _, err := New(t.TempDir(), Codec("gzip"), 1); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
	if _, err := Read(filepath.Join(t.TempDir(), "x.gz")); err == nil {
		t.Fatalf("expected error for unknown extension")
	}
}

func TestParseName(t *testing.T) {
	e, ok := parseName("constants.js-0a1b2c3d@20260102T030405.000000000Z.zst")
	if !ok || e.Source != "constants.js" || e.Key != "constants.js-0a1b2c3d" || e.Codec != CodecZstd || e.Created.Year() != 2026 {
		t.Fatalf("e=%+v ok=%v", e, ok)
	}
	for _, bad := range []string{"constants.js.zst", "@20260102T030405.000000000Z.zst", "a-1@nope.lz4", "constants.js@20260102T030405.000000000Z.zst"} {
		if _, ok := parseName(bad); ok {
			t.Fatalf("%q parsed", bad)
		}
	}
}

func TestSameBaseNameDifferentDirs(t *testing.T) {
	s, err := New(t.TempDir(), CodecZstd, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	gameA := filepath.Join(t.TempDir(), "a", "constants.js")
	gameB := filepath.Join(t.TempDir(), "b", "constants.js")

	if _, err := s.Write(gameA, []byte("a1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Write(gameB, []byte{byte('0' + i)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	listA, _ := s.List(gameA)
	listB, _ := s.List(gameB)
	if len(listA) != 1 || len(listB) != 2 {
		t.Fatalf("a=%d b=%d want 1 and 2", len(listA), len(listB))
	}
	if listA[0].Key == listB[0].Key || listA[0].Source != listB[0].Source {
		t.Fatalf("a=%+v b=%+v", listA[0], listB[0])
	}
	got, err := Read(listA[0].Path)
	if err != nil || string(got) != "a1" {
		t.Fatalf("a backup=%q err=%v", got, err)
	}
}
