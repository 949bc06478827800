package blocks

import (
	"errors"
	"testing"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func storeWithIDs(ids ...int) *Store {
	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, New(id))
	}
	return NewStore(recs, nil)
}

func TestStoreAdd_NextID(t *testing.T) {
	s := storeWithIDs(0, 2, 5)
	i, r := s.Add()
	if r.ID != 6 {
		t.Fatalf("id=%d want 6", r.ID)
	}
	if i != 3 || s.Len() != 4 {
		t.Fatalf("index=%d len=%d want 3/4", i, s.Len())
	}

	empty := NewStore(nil, nil)
	_, r = empty.Add()
	if r.ID != 0 {
		t.Fatalf("empty store id=%d want 0", r.ID)
	}
}

func TestStoreAdd_Defaults(t *testing.T) {
	s := NewStore(nil, nil)
	_, r := s.Add()
	if r.Name != "NewBlock" || r.Atlas != (Cell{0, 0}) {
		t.Fatalf("unexpected defaults: %+v", r)
	}
	if r.AtlasTop != nil || r.AtlasBottom != nil || r.Sound != nil {
		t.Fatalf("optional fields should be nil: %+v", r)
	}
	if !r.Solid || r.Transparent {
		t.Fatalf("solid=%v transparent=%v want true/false", r.Solid, r.Transparent)
	}
}

func TestStoreAdd_AppendsWithoutSorting(t *testing.T) {
	s := storeWithIDs(3, 7)
	if _, err := s.Update(1, Patch{ID: strp("1")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	s.Add()
	recs := s.Records()
	if recs[0].ID != 3 || recs[1].ID != 1 || recs[2].ID != 4 {
		t.Fatalf("order=%d,%d,%d want 3,1,4", recs[0].ID, recs[1].ID, recs[2].ID)
	}
}

func TestStoreDelete(t *testing.T) {
	s := storeWithIDs(0, 1, 2)
	r, err := s.Delete(1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if r.ID != 1 || s.Len() != 2 {
		t.Fatalf("deleted id=%d len=%d", r.ID, s.Len())
	}
	if _, err := s.Delete(5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err=%v want ErrIndexOutOfRange", err)
	}
	if _, err := s.Delete(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err=%v want ErrIndexOutOfRange", err)
	}
}

func TestStoreUpdate_NonNumericIDKeepsOtherFields(t *testing.T) {
	s := storeWithIDs(4)
	r, err := s.Update(0, Patch{ID: strp("abc"), Name: strp("Stone"), Solid: boolp(false)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if r.ID != 4 {
		t.Fatalf("id=%d want 4", r.ID)
	}
	if r.Name != "Stone" || r.Solid {
		t.Fatalf("other fields not applied: %+v", r)
	}
}

func TestStoreUpdate_IDRules(t *testing.T) {
	s := storeWithIDs(1, 2)
	if r, _ := s.Update(0, Patch{ID: strp(" 9 ")}); r.ID != 9 {
		t.Fatalf("id=%d want 9", r.ID)
	}
	if r, _ := s.Update(0, Patch{ID: strp("2")}); r.ID != 9 {
		t.Fatalf("duplicate id applied: id=%d", r.ID)
	}
	if r, _ := s.Update(0, Patch{ID: strp("-3")}); r.ID != 9 {
		t.Fatalf("negative id applied: id=%d", r.ID)
	}
	if r, _ := s.Update(0, Patch{ID: strp("9")}); r.ID != 9 {
		t.Fatalf("own id rejected: id=%d", r.ID)
	}
}

func TestStoreUpdate_OverridesAndSound(t *testing.T) {
	s := storeWithIDs(0)
	top := Cell{3, 1}
	r, _ := s.Update(0, Patch{AtlasTop: &top, Sound: &SoundPatch{Step: strp("grass_step")}})
	if r.AtlasTop == nil || *r.AtlasTop != top {
		t.Fatalf("atlasTop=%v want %v", r.AtlasTop, top)
	}
	if r.Sound == nil || *r.Sound != (Sound{Step: "grass_step"}) {
		t.Fatalf("sound=%+v", r.Sound)
	}

	r, _ = s.Update(0, Patch{ClearAtlasTop: true, ClearSound: true})
	if r.AtlasTop != nil || r.Sound != nil {
		t.Fatalf("clear failed: %+v", r)
	}
}

func TestStoreApplySoundPreset(t *testing.T) {
	s := storeWithIDs(0, 1)
	r, err := s.ApplySoundPreset(0, "WOOD")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	if *r.Sound != (Sound{Step: "wood_step", Break: "wood_break", Place: "wood_place"}) {
		t.Fatalf("sound=%+v", *r.Sound)
	}

	r, err = s.ApplySoundPreset(0, PresetNone)
	if err != nil {
		t.Fatalf("preset NONE: %v", err)
	}
	if r.Sound == nil {
		t.Fatalf("NONE must leave a non-nil sound")
	}
	if *r.Sound != (Sound{}) {
		t.Fatalf("NONE sound=%+v want all empty", *r.Sound)
	}

	other, _ := s.At(1)
	if other.Sound != nil {
		t.Fatalf("untouched record should keep nil sound")
	}

	if _, err := s.ApplySoundPreset(0, "LAVA"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("err=%v want ErrUnknownPreset", err)
	}
}

func TestStoreRecords_AreCopies(t *testing.T) {
	s := storeWithIDs(0)
	s.ApplySoundPreset(0, "STONE")
	recs := s.Records()
	recs[0].Sound.Step = "changed"
	recs[0].Name = "changed"
	again, _ := s.At(0)
	if again.Sound.Step != "stone_step" || again.Name != "NewBlock" {
		t.Fatalf("store mutated through copy: %+v", again)
	}
}

func TestStoreTextures(t *testing.T) {
	s := storeWithIDs(0)
	s.SetTexture(0, FaceSide, Cell{2, 1})
	s.SetTexture(0, FaceBottom, Cell{1, 1})

	r, _ := s.At(0)
	if c, inherited := r.Texture(FaceTop); !inherited || c != (Cell{2, 1}) {
		t.Fatalf("top=%v inherited=%v want side cell inherited", c, inherited)
	}
	if c, inherited := r.Texture(FaceBottom); inherited || c != (Cell{1, 1}) {
		t.Fatalf("bottom=%v inherited=%v", c, inherited)
	}

	s.ResetTexture(0, FaceSide)
	r, _ = s.ResetTexture(0, FaceBottom)
	if r.Atlas != (Cell{0, 0}) || r.AtlasBottom != nil {
		t.Fatalf("reset failed: %+v", r)
	}
}

func TestStoreValidate(t *testing.T) {
	s := storeWithIDs(1, 1)
	if err := s.Validate(); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	s = NewStore([]Record{{ID: 0, Atlas: Cell{-1, 0}}}, nil)
	if err := s.Validate(); err == nil {
		t.Fatalf("expected negative coordinate error")
	}
}

func TestDuplicatesAndSort(t *testing.T) {
	recs := []Record{{ID: 5, Name: "a"}, {ID: 1}, {ID: 5, Name: "b"}, {ID: 3}}
	SortByID(recs)
	if recs[0].ID != 1 || recs[1].ID != 3 || recs[2].Name != "a" || recs[3].Name != "b" {
		t.Fatalf("unstable sort: %+v", recs)
	}
	if d := Duplicates(recs); len(d) != 1 || d[0] != 5 {
		t.Fatalf("duplicates=%v want [5]", d)
	}
}

func TestDigest_StableAndSensitive(t *testing.T) {
	a := []Record{New(0), New(1)}
	b := []Record{New(0), New(1)}
	if Digest(a) != Digest(b) {
		t.Fatalf("digest not stable")
	}
	b[1].Name = "Other"
	if Digest(a) == Digest(b) {
		t.Fatalf("digest ignores name change")
	}
}
