package blockjs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blockedit.ai/internal/blocks"
)

func readFixture(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", "constants.js"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(b)
}

func wrap(region string) string {
	return "import x from 'y';\n" + Prologue + region + Closing + "\nexport const OTHER = 1;\n"
}

func cellp(c, r int) *blocks.Cell { return &blocks.Cell{c, r} }

func TestDecode_Fixture(t *testing.T) {
	recs, err := Decode(readFixture(t))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	wantIDs := []int{0, 1, 2, 3, 4, 6, 12, 13}
	if len(recs) != len(wantIDs) {
		t.Fatalf("len=%d want %d", len(recs), len(wantIDs))
	}
	for i, id := range wantIDs {
		if recs[i].ID != id {
			t.Fatalf("recs[%d].id=%d want %d", i, recs[i].ID, id)
		}
	}

	air := recs[0]
	if air.Name != "Air" || !air.Transparent || air.Solid || air.Sound != nil {
		t.Fatalf("air=%+v", air)
	}
	grass := recs[3]
	want := blocks.Record{
		ID: 3, Name: "Grass", Atlas: blocks.Cell{2, 1},
		AtlasTop: cellp(3, 1), AtlasBottom: cellp(1, 1),
		Solid: true,
		Sound: &blocks.Sound{Step: "grass_step", Break: "grass_break", Place: "grass_place"},
	}
	if !blocks.Equal(grass, want) {
		t.Fatalf("grass=%+v want %+v", grass, want)
	}
	if recs[4].AtlasTop != nil || recs[4].AtlasBottom != nil {
		t.Fatalf("planks overrides should be nil: %+v", recs[4])
	}
}

func TestDecode_NoBlockTable(t *testing.T) {
	for _, text := range []string{
		"export const WORLD_CONFIG = {};",
		"export const BLOCK_DATA = [ { id: 1 }",
		"",
	} {
		if _, err := Decode(text); !errors.Is(err, ErrNoBlockTable) {
			t.Fatalf("Decode(%q) err=%v want ErrNoBlockTable", text, err)
		}
	}
}

func TestDecode_SortedByID(t *testing.T) {
	recs, err := Decode(wrap(`
    { id: 9, name: 'c' },
    { id: 2, name: 'a' },
    { id: 5, name: 'b' },
`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i-1].ID > recs[i].ID {
			t.Fatalf("not sorted: %d before %d", recs[i-1].ID, recs[i].ID)
		}
	}
	if len(recs) != 3 || recs[0].Name != "a" {
		t.Fatalf("recs=%+v", recs)
	}
}

func TestDecode_OptionalFieldDefaults(t *testing.T) {
	recs, err := Decode(wrap(`{ id: 7 },`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len=%d want 1", len(recs))
	}
	r := recs[0]
	if r.Atlas != (blocks.Cell{0, 0}) {
		t.Fatalf("atlas=%v want [0, 0]", r.Atlas)
	}
	if r.AtlasTop != nil || r.AtlasBottom != nil || r.Sound != nil {
		t.Fatalf("optional fields should be nil: %+v", r)
	}
	if r.Name != "" || r.Solid || r.Transparent {
		t.Fatalf("scalar defaults: %+v", r)
	}
}

func TestDecode_MalformedChunkDropped(t *testing.T) {
	recs, err := Decode(wrap(`
    { id: 1, name: 'Stone', atlas: [0, 1], solid: true },
    { name: 'NoID', solid: true },
`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != 1 {
		t.Fatalf("recs=%+v want just id 1", recs)
	}
}

func TestDecode_NonNumericIDDropped(t *testing.T) {
	recs, _ := Decode(wrap(`{ id: x, name: 'a' }, { id: -2, name: 'b' }, { id: 4, name: 'c' },`))
	if len(recs) != 1 || recs[0].ID != 4 {
		t.Fatalf("recs=%+v want just id 4", recs)
	}
}

func TestDecode_SoundGroup(t *testing.T) {
	recs, _ := Decode(wrap(`
    { id: 1, sound: { break: "b" } },
    { id: 2, sound: null },
    { id: 3, sound: {} },
`))
	if len(recs) != 3 {
		t.Fatalf("len=%d", len(recs))
	}
	if recs[0].Sound == nil || *recs[0].Sound != (blocks.Sound{Break: "b"}) {
		t.Fatalf("partial sound=%+v", recs[0].Sound)
	}
	if recs[1].Sound != nil {
		t.Fatalf("null sound decoded as %+v", recs[1].Sound)
	}
	if recs[2].Sound == nil || *recs[2].Sound != (blocks.Sound{}) {
		t.Fatalf("empty sound=%+v", recs[2].Sound)
	}
}

func TestDecode_SingleLineSoundKeepsLaterFields(t *testing.T) {
	recs, _ := Decode(wrap(`{ id: 1, sound: { step: 's', break: 'b', place: 'p' }, solid: true, transparent: true },`))
	if len(recs) != 1 {
		t.Fatalf("len=%d", len(recs))
	}
	if !recs[0].Solid || !recs[0].Transparent || recs[0].Sound.Place != "p" {
		t.Fatalf("rec=%+v", recs[0])
	}
}

func TestDecode_QuotesAndEscapes(t *testing.T) {
	recs, _ := Decode(wrap(`
    { id: 1, name: "Bob's" },
    { id: 2, name: 'It\'s \\ fine' },
    { id: 3, "name": 'quoted key' },
`))
	if len(recs) != 3 {
		t.Fatalf("len=%d", len(recs))
	}
	if recs[0].Name != "Bob's" || recs[1].Name != `It's \ fine` || recs[2].Name != "quoted key" {
		t.Fatalf("names=%q %q %q", recs[0].Name, recs[1].Name, recs[2].Name)
	}
}

func TestDecode_IgnoresKeysInStringsAndComments(t *testing.T) {
	recs, _ := Decode(wrap(`
    // { id: 99 },
    { id: 1, name: 'solid: true', /* transparent: true */ },
`))
	if len(recs) != 1 {
		t.Fatalf("len=%d want 1", len(recs))
	}
	if recs[0].Solid || recs[0].Transparent {
		t.Fatalf("flags read from string/comment: %+v", recs[0])
	}
	if hasKey(`{ name: 'id: 7', solid: true }`, "id") {
		t.Fatalf("hasKey matched inside a string or a longer identifier")
	}
}

func TestDecode_FallbackSplit(t *testing.T) {
	// No object starts with id, so the region is split on "},".
	recs, _ := Decode(wrap(`
    { name: 'b', id: 3, atlas: [4, 5] },
    { name: 'a', id: 1 },
`))
	if len(recs) != 2 || recs[0].ID != 1 || recs[1].ID != 3 {
		t.Fatalf("recs=%+v", recs)
	}
	if recs[1].Atlas != (blocks.Cell{4, 5}) {
		t.Fatalf("atlas=%v", recs[1].Atlas)
	}
}

func TestDecode_FallbackMisSplitsNestedObjects(t *testing.T) {
	recs, _ := Decode(wrap(`{ name: 'a', id: 1, sound: { step: 's' }, solid: true },`))
	if len(recs) != 1 {
		t.Fatalf("len=%d want 1", len(recs))
	}
	if recs[0].Sound != nil || recs[0].Solid {
		t.Fatalf("expected the documented mis-split (no sound, solid lost): %+v", recs[0])
	}
}

func TestEncode_Layout(t *testing.T) {
	body, err := EncodeRegion([]blocks.Record{{ID: 0, Name: "Air", Transparent: true}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := "\n" +
		"    {\n" +
		"        id: 0, name: 'Air',\n" +
		"        atlas: [0, 0],\n" +
		"        transparent: true,\n" +
		"        solid: false,\n" +
		"        sound: null\n" +
		"    },\n"
	if body != want {
		t.Fatalf("body=\n%s\nwant\n%s", body, want)
	}
}

func TestEncode_OmitsUnsetOverrides(t *testing.T) {
	body, err := EncodeRegion([]blocks.Record{{ID: 1, Name: "x", AtlasBottom: cellp(1, 2)}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(body, "atlasTop") {
		t.Fatalf("atlasTop emitted:\n%s", body)
	}
	if !strings.Contains(body, "atlasBottom: [1, 2],") {
		t.Fatalf("atlasBottom missing:\n%s", body)
	}
}

func TestEncode_SoundNullVersusEmpty(t *testing.T) {
	body, _ := EncodeRegion([]blocks.Record{
		{ID: 1, Name: "never"},
		{ID: 2, Name: "none", Sound: &blocks.Sound{}},
	})
	if !strings.Contains(body, "sound: null") {
		t.Fatalf("nil sound not null:\n%s", body)
	}
	if !strings.Contains(body, "sound: { step: '', break: '', place: '' }") {
		t.Fatalf("empty sound not emitted as object:\n%s", body)
	}

	recs, _ := Decode(wrap(body))
	if recs[0].Sound != nil || recs[1].Sound == nil {
		t.Fatalf("null/empty distinction lost: %+v %+v", recs[0].Sound, recs[1].Sound)
	}
}

func TestEncode_KeepsTextOutsideRegion(t *testing.T) {
	orig := readFixture(t)
	out, err := Encode([]blocks.Record{blocks.New(0)}, orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r0, _ := Locate(orig)
	r1, _ := Locate(out)
	if orig[:r0.Start] != out[:r1.Start] {
		t.Fatalf("prefix changed")
	}
	if orig[r0.End:] != out[r1.End:] {
		t.Fatalf("suffix changed")
	}
}

func TestEncode_Errors(t *testing.T) {
	if _, err := Encode(nil, "no table here"); !errors.Is(err, ErrNoBlockTable) {
		t.Fatalf("err=%v want ErrNoBlockTable", err)
	}
	if _, err := Encode([]blocks.Record{{ID: -1}}, wrap("")); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRoundTrip(t *testing.T) {
	in := []blocks.Record{
		{ID: 12, Name: "Log", Atlas: blocks.Cell{8, 1}, AtlasTop: cellp(8, 0), AtlasBottom: cellp(8, 0), Solid: true,
			Sound: &blocks.Sound{Step: "wood_step", Break: "wood_break", Place: "wood_place"}},
		{ID: 0, Name: "Air", Transparent: true},
		{ID: 6, Name: `Glass "clear" it's`, Atlas: blocks.Cell{9, 4}, Transparent: true, Solid: true, Sound: &blocks.Sound{}},
		{ID: 3, Name: "Line\nBreak\\Slash", AtlasTop: cellp(3, 1)},
		{ID: 4, Name: "", AtlasBottom: cellp(1, 2), Sound: &blocks.Sound{Step: "}, {", Place: "];"}},
	}
	text, err := Encode(in, wrap("\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := make([]blocks.Record, len(in))
	copy(want, in)
	blocks.SortByID(want)
	if len(out) != len(want) {
		t.Fatalf("len=%d want %d\n%s", len(out), len(want), text)
	}
	for i := range want {
		if !blocks.Equal(out[i], want[i]) {
			t.Fatalf("record %d: got %+v want %+v\n%s", i, out[i], want[i], text)
		}
	}
}

func TestRoundTrip_Fixture(t *testing.T) {
	orig := readFixture(t)
	first, _ := Decode(orig)
	text, err := Encode(first, orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, _ := Decode(text)
	if blocks.Digest(first) != blocks.Digest(second) {
		t.Fatalf("fixture changed after a round trip")
	}
	again, _ := Encode(second, text)
	if again != text {
		t.Fatalf("encoding is not idempotent")
	}
}

func TestNewFile(t *testing.T) {
	text, err := NewFile([]blocks.Record{blocks.New(0), blocks.New(1)})
	if err != nil {
		t.Fatalf("new file: %v", err)
	}
	if !strings.HasPrefix(text, Prologue) || !strings.Contains(text, "export const BLOCKS") {
		t.Fatalf("text=\n%s", text)
	}
	recs, err := Decode(text)
	if err != nil || len(recs) != 2 {
		t.Fatalf("decode new file: len=%d err=%v", len(recs), err)
	}
}

func TestLocate_SkipsClosingInsideStrings(t *testing.T) {
	text := Prologue + "{ id: 1, name: 'a];b' },\n" + Closing
	r, err := Locate(text)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if !strings.Contains(r.Of(text), "a];b") {
		t.Fatalf("region cut inside a string: %q", r.Of(text))
	}
}

func TestLocate_FlexibleSpacing(t *testing.T) {
	if _, err := Locate("export  const BLOCK_DATA=[\n];"); err != nil {
		t.Fatalf("locate: %v", err)
	}
}
