package blockjs

import (
	"fmt"
	"strings"

	"blockedit.ai/internal/blocks"
)

const (
	recordIndent = "    "
	fieldIndent  = "        "
)

// Encode regenerates the block table from recs and splices it into the
// first marked region of original. Text outside the region is kept as is.
func Encode(recs []blocks.Record, original string) (string, error) {
	r, err := Locate(original)
	if err != nil {
		return "", err
	}
	body, err := EncodeRegion(recs)
	if err != nil {
		return "", err
	}
	return Splice(original, r, body), nil
}

// EncodeRegion renders the array body (without the markers) in the
// canonical layout, one object per record in the given order.
func EncodeRegion(recs []blocks.Record) (string, error) {
	var b strings.Builder
	b.WriteByte('\n')
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			return "", fmt.Errorf("encode: %w", err)
		}
		writeRecord(&b, r)
	}
	return b.String(), nil
}

// NewFile renders a minimal module holding only the block table and the
// id lookup the game builds from it.
func NewFile(recs []blocks.Record) (string, error) {
	body, err := EncodeRegion(recs)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(Prologue)
	b.WriteString(body)
	b.WriteString(Closing)
	b.WriteString("\n\nexport const BLOCKS = {};\n")
	b.WriteString("BLOCK_DATA.forEach(b => BLOCKS[b.id] = b);\n")
	return b.String(), nil
}

func writeRecord(b *strings.Builder, r blocks.Record) {
	line := func(format string, args ...any) {
		b.WriteString(fieldIndent)
		fmt.Fprintf(b, format, args...)
		b.WriteByte('\n')
	}

	b.WriteString(recordIndent + "{\n")
	line("id: %d, name: %s,", r.ID, quote(r.Name))
	line("atlas: %s,", r.Atlas.String())
	if r.AtlasTop != nil {
		line("atlasTop: %s,", r.AtlasTop.String())
	}
	if r.AtlasBottom != nil {
		line("atlasBottom: %s,", r.AtlasBottom.String())
	}
	line("transparent: %t,", r.Transparent)
	line("solid: %t,", r.Solid)
	if r.Sound != nil {
		line("sound: { step: %s, break: %s, place: %s }",
			quote(r.Sound.Step), quote(r.Sound.Break), quote(r.Sound.Place))
	} else {
		line("sound: null")
	}
	b.WriteString(recordIndent + "},\n")
}

var quoteReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// quote renders s as a single-quoted JavaScript string literal.
func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}
