package blockjs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"blockedit.ai/internal/blocks"
)

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

type Finding struct {
	Level   Level  `json:"level"`
	ID      *int   `json:"id,omitempty"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	if f.ID != nil {
		return fmt.Sprintf("%s: id %d: %s", f.Level, *f.ID, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Level, f.Message)
}

// Report compares the tolerant decoder with a JavaScript evaluation of the
// same text.
type Report struct {
	Decoded   int       `json:"decoded"`
	Evaluated int       `json:"evaluated"`
	Findings  []Finding `json:"findings"`
}

// OK is true when nothing at error level was found.
func (r Report) OK() bool {
	for _, f := range r.Findings {
		if f.Level == LevelError {
			return false
		}
	}
	return true
}

func (r *Report) add(level Level, id *int, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Level: level, ID: id, Message: fmt.Sprintf(format, args...)})
}

// Check decodes text both ways and reports every disagreement, every key
// that a save would drop, and duplicate ids. It fails only when the text
// has no block table.
func Check(ctx context.Context, text string) (Report, error) {
	var rep Report
	decoded, err := Decode(text)
	if err != nil {
		return rep, err
	}
	rep.Decoded = len(decoded)
	for _, id := range blocks.Duplicates(decoded) {
		id := id
		rep.add(LevelWarning, &id, "id is used by more than one block")
	}

	ev, err := Evaluate(ctx, text)
	if err != nil {
		rep.add(LevelError, nil, "%v", err)
		return rep, nil
	}
	rep.Evaluated = len(ev.Records)
	for _, p := range ev.Problems {
		rep.add(LevelError, nil, "%s", p)
	}
	unknownIDs := make([]int, 0, len(ev.Unknown))
	for id := range ev.Unknown {
		unknownIDs = append(unknownIDs, id)
	}
	sort.Ints(unknownIDs)
	for _, id := range unknownIDs {
		id := id
		rep.add(LevelWarning, &id, "keys %s are not kept on save", strings.Join(ev.Unknown[id], ", "))
	}

	byID := func(recs []blocks.Record) (map[int][]blocks.Record, []int) {
		m := map[int][]blocks.Record{}
		var ids []int
		for _, r := range recs {
			if _, seen := m[r.ID]; !seen {
				ids = append(ids, r.ID)
			}
			m[r.ID] = append(m[r.ID], r)
		}
		return m, ids
	}
	dm, dids := byID(decoded)
	em, eids := byID(ev.Records)
	ids := append(dids, eids...)
	sort.Ints(ids)

	last := -1
	for _, id := range ids {
		if id == last {
			continue
		}
		last = id
		id := id
		d, e := dm[id], em[id]
		if len(d) != len(e) {
			rep.add(LevelError, &id, "decoded %d entries, javascript has %d", len(d), len(e))
			continue
		}
		for i := range d {
			if diff := DiffFields(d[i], e[i]); len(diff) > 0 {
				rep.add(LevelError, &id, "decoder disagrees with javascript on %s", strings.Join(diff, ", "))
			}
		}
	}
	return rep, nil
}

// DiffFields names the fields that differ between two records.
func DiffFields(a, b blocks.Record) []string {
	var out []string
	if a.ID != b.ID {
		out = append(out, "id")
	}
	if a.Name != b.Name {
		out = append(out, "name")
	}
	if a.Atlas != b.Atlas {
		out = append(out, "atlas")
	}
	cellEq := func(x, y *blocks.Cell) bool {
		if x == nil || y == nil {
			return x == nil && y == nil
		}
		return *x == *y
	}
	if !cellEq(a.AtlasTop, b.AtlasTop) {
		out = append(out, "atlasTop")
	}
	if !cellEq(a.AtlasBottom, b.AtlasBottom) {
		out = append(out, "atlasBottom")
	}
	if a.Transparent != b.Transparent {
		out = append(out, "transparent")
	}
	if a.Solid != b.Solid {
		out = append(out, "solid")
	}
	if (a.Sound == nil) != (b.Sound == nil) || (a.Sound != nil && *a.Sound != *b.Sound) {
		out = append(out, "sound")
	}
	return out
}
