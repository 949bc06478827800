package blockjs

import (
	"strings"

	"blockedit.ai/internal/blocks"
)

// Decode extracts the block table from a whole source file and returns it
// sorted by id. The only error is ErrNoBlockTable; unreadable entries are
// dropped.
func Decode(text string) ([]blocks.Record, error) {
	r, err := Locate(text)
	if err != nil {
		return nil, err
	}
	return DecodeRegion(r.Of(text)), nil
}

// DecodeRegion decodes the text between the markers.
func DecodeRegion(region string) []blocks.Record {
	chunks := objectChunks(region)
	if len(chunks) == 0 {
		// Best effort for layouts the object scanner does not recognise.
		// Single-line nested objects followed by "}," get split too early.
		chunks = strings.Split(region, "},")
	}

	out := make([]blocks.Record, 0, len(chunks))
	for _, c := range chunks {
		if !hasKey(c, "id") {
			continue
		}
		rec, ok := decodeChunk(c)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	blocks.SortByID(out)
	return out
}

// objectChunks returns every top-level `{ ... }` of region whose first key
// is id. Strings and comments are skipped while matching braces; an object
// left open at the end of the region is ignored.
func objectChunks(region string) []string {
	var out []string
	for i := 0; i < len(region); {
		if j := skipLiteral(region, i); j != i {
			i = j
			continue
		}
		if region[i] != '{' {
			i++
			continue
		}
		end := matchBrace(region, i)
		if end < 0 {
			break
		}
		obj := region[i : end+1]
		if startsWithIDKey(obj) {
			out = append(out, obj)
		}
		i = end + 1
	}
	return out
}

func startsWithIDKey(obj string) bool {
	i := skipSpace(obj, 1)
	if strings.HasPrefix(obj[i:], "id") {
		j := skipSpace(obj, i+2)
		return j < len(obj) && obj[j] == ':'
	}
	for _, q := range []string{`'id'`, `"id"`} {
		if strings.HasPrefix(obj[i:], q) {
			j := skipSpace(obj, i+len(q))
			return j < len(obj) && obj[j] == ':'
		}
	}
	return false
}

func decodeChunk(c string) (blocks.Record, bool) {
	var rec blocks.Record

	id, ok := firstValue(c, "id", parseUint)
	if !ok {
		return rec, false
	}
	rec.ID = id
	rec.Name, _ = firstValue(c, "name", parseQuoted)

	if cell, ok := firstValue(c, "atlas", parseCell); ok {
		rec.Atlas = cell
	}
	if cell, ok := firstValue(c, "atlasTop", parseCell); ok {
		rec.AtlasTop = &cell
	}
	if cell, ok := firstValue(c, "atlasBottom", parseCell); ok {
		rec.AtlasBottom = &cell
	}

	rec.Transparent, _ = firstValue(c, "transparent", parseBool)
	rec.Solid, _ = firstValue(c, "solid", parseBool)

	if body, ok := firstValue(c, "sound", parseBraced); ok {
		s := blocks.Sound{}
		s.Step, _ = firstValue(body, "step", parseQuoted)
		s.Break, _ = firstValue(body, "break", parseQuoted)
		s.Place, _ = firstValue(body, "place", parseQuoted)
		rec.Sound = &s
	}
	return rec, true
}
