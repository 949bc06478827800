package blocks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Cell addresses one tile of the texture atlas as [column, row].
type Cell [2]int

func (c Cell) Col() int { return c[0] }
func (c Cell) Row() int { return c[1] }

func (c Cell) String() string { return fmt.Sprintf("[%d, %d]", c[0], c[1]) }

// Sound names the audio cues played for a block. A nil *Sound means the
// engine default applies.
type Sound struct {
	Step  string `json:"step"`
	Break string `json:"break"`
	Place string `json:"place"`
}

// Record is one block type of the BLOCK_DATA table.
type Record struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Atlas       Cell   `json:"atlas"`
	AtlasTop    *Cell  `json:"atlasTop,omitempty"`
	AtlasBottom *Cell  `json:"atlasBottom,omitempty"`
	Transparent bool   `json:"transparent"`
	Solid       bool   `json:"solid"`
	Sound       *Sound `json:"sound"`
}

// Face selects one of the three atlas slots of a record.
type Face string

const (
	FaceSide   Face = "atlas"
	FaceTop    Face = "atlasTop"
	FaceBottom Face = "atlasBottom"
)

// ParseFace accepts the field name or the short forms side/top/bottom.
func ParseFace(s string) (Face, error) {
	switch s {
	case "atlas", "side", "":
		return FaceSide, nil
	case "atlasTop", "top":
		return FaceTop, nil
	case "atlasBottom", "bottom":
		return FaceBottom, nil
	}
	return "", fmt.Errorf("unknown face %q", s)
}

// New returns a record with the defaults used by Store.Add.
func New(id int) Record {
	return Record{
		ID:    id,
		Name:  "NewBlock",
		Atlas: Cell{0, 0},
		Solid: true,
	}
}

// Clone returns a deep copy; overrides and sound are not shared.
func (r Record) Clone() Record {
	out := r
	if r.AtlasTop != nil {
		c := *r.AtlasTop
		out.AtlasTop = &c
	}
	if r.AtlasBottom != nil {
		c := *r.AtlasBottom
		out.AtlasBottom = &c
	}
	if r.Sound != nil {
		s := *r.Sound
		out.Sound = &s
	}
	return out
}

// Texture resolves the cell actually rendered for a face. Top and bottom
// inherit the side cell when unset.
func (r Record) Texture(f Face) (cell Cell, inherited bool) {
	switch f {
	case FaceTop:
		if r.AtlasTop != nil {
			return *r.AtlasTop, false
		}
		return r.Atlas, true
	case FaceBottom:
		if r.AtlasBottom != nil {
			return *r.AtlasBottom, false
		}
		return r.Atlas, true
	}
	return r.Atlas, false
}

// SetTexture assigns a cell to a face.
func (r *Record) SetTexture(f Face, c Cell) {
	switch f {
	case FaceTop:
		r.AtlasTop = &c
	case FaceBottom:
		r.AtlasBottom = &c
	default:
		r.Atlas = c
	}
}

// ResetTexture puts a face back to its default: [0,0] for the side, inherit
// for top and bottom.
func (r *Record) ResetTexture(f Face) {
	switch f {
	case FaceTop:
		r.AtlasTop = nil
	case FaceBottom:
		r.AtlasBottom = nil
	default:
		r.Atlas = Cell{0, 0}
	}
}

// Label is the list entry shown by front ends.
func (r Record) Label() string { return fmt.Sprintf("[%d] %s", r.ID, r.Name) }

// Validate reports values the text codec cannot write back losslessly.
func (r Record) Validate() error {
	if r.ID < 0 {
		return fmt.Errorf("block %d: negative id", r.ID)
	}
	check := func(field string, c *Cell) error {
		if c == nil {
			return nil
		}
		if c[0] < 0 || c[1] < 0 {
			return fmt.Errorf("block %d: %s %s has a negative coordinate", r.ID, field, c.String())
		}
		return nil
	}
	if err := check("atlas", &r.Atlas); err != nil {
		return err
	}
	if err := check("atlasTop", r.AtlasTop); err != nil {
		return err
	}
	return check("atlasBottom", r.AtlasBottom)
}

// Equal compares records field by field.
func Equal(a, b Record) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Atlas != b.Atlas {
		return false
	}
	if a.Solid != b.Solid || a.Transparent != b.Transparent {
		return false
	}
	if !equalCell(a.AtlasTop, b.AtlasTop) || !equalCell(a.AtlasBottom, b.AtlasBottom) {
		return false
	}
	if (a.Sound == nil) != (b.Sound == nil) {
		return false
	}
	return a.Sound == nil || *a.Sound == *b.Sound
}

func equalCell(a, b *Cell) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// SortByID sorts in place, keeping the relative order of equal ids.
func SortByID(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

// Duplicates returns ids that appear more than once, ascending.
func Duplicates(recs []Record) []int {
	seen := make(map[int]int, len(recs))
	for _, r := range recs {
		seen[r.ID]++
	}
	var out []int
	for id, n := range seen {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// Digest is the sha256 of the canonical JSON of recs, in the given order.
func Digest(recs []Record) string {
	if recs == nil {
		recs = []Record{}
	}
	b, _ := json.Marshal(recs)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
