package blocks

import (
	"fmt"
	"strconv"
	"strings"
)

// Patch is a set of field edits for one record. Nil fields are left alone.
// ID is kept as the raw text typed by the user; it is parsed when applied.
type Patch struct {
	ID               *string
	Name             *string
	Atlas            *Cell
	AtlasTop         *Cell
	AtlasBottom      *Cell
	ClearAtlasTop    bool
	ClearAtlasBottom bool
	Solid            *bool
	Transparent      *bool
	Sound            *SoundPatch
	ClearSound       bool
}

// SoundPatch edits individual cues. Applying it to a record without sound
// creates an empty sound object first.
type SoundPatch struct {
	Step  *string
	Break *string
	Place *string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.ID == nil && p.Name == nil && p.Atlas == nil && p.AtlasTop == nil &&
		p.AtlasBottom == nil && !p.ClearAtlasTop && !p.ClearAtlasBottom &&
		p.Solid == nil && p.Transparent == nil && p.Sound == nil && !p.ClearSound
}

// apply edits r in place. idOK decides whether a parsed id may be used.
func (p Patch) apply(r *Record, idOK func(int) bool) {
	if p.ID != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(*p.ID)); err == nil && n >= 0 && idOK(n) {
			r.ID = n
		}
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Atlas != nil {
		r.Atlas = *p.Atlas
	}
	if p.ClearAtlasTop {
		r.AtlasTop = nil
	} else if p.AtlasTop != nil {
		c := *p.AtlasTop
		r.AtlasTop = &c
	}
	if p.ClearAtlasBottom {
		r.AtlasBottom = nil
	} else if p.AtlasBottom != nil {
		c := *p.AtlasBottom
		r.AtlasBottom = &c
	}
	if p.Solid != nil {
		r.Solid = *p.Solid
	}
	if p.Transparent != nil {
		r.Transparent = *p.Transparent
	}
	if p.ClearSound {
		r.Sound = nil
	} else if p.Sound != nil {
		s := Sound{}
		if r.Sound != nil {
			s = *r.Sound
		}
		if p.Sound.Step != nil {
			s.Step = *p.Sound.Step
		}
		if p.Sound.Break != nil {
			s.Break = *p.Sound.Break
		}
		if p.Sound.Place != nil {
			s.Place = *p.Sound.Place
		}
		r.Sound = &s
	}
}

// ParsePatch builds a patch from field=value assignments, e.g.
// "name=Stone", "atlasTop=3,1", "atlasTop=inherit", "sound.step=stone_step",
// "sound=null".
func ParsePatch(assignments []string) (Patch, error) {
	var p Patch
	for _, a := range assignments {
		key, val, ok := strings.Cut(a, "=")
		if !ok {
			return p, fmt.Errorf("bad assignment %q (want field=value)", a)
		}
		key = strings.TrimSpace(key)
		switch key {
		case "id":
			v := val
			p.ID = &v
		case "name":
			v := val
			p.Name = &v
		case "atlas":
			c, err := ParseCell(val)
			if err != nil {
				return p, fmt.Errorf("atlas: %w", err)
			}
			p.Atlas = &c
		case "atlasTop", "top":
			if isNullWord(val) {
				p.ClearAtlasTop = true
				continue
			}
			c, err := ParseCell(val)
			if err != nil {
				return p, fmt.Errorf("atlasTop: %w", err)
			}
			p.AtlasTop = &c
		case "atlasBottom", "bottom":
			if isNullWord(val) {
				p.ClearAtlasBottom = true
				continue
			}
			c, err := ParseCell(val)
			if err != nil {
				return p, fmt.Errorf("atlasBottom: %w", err)
			}
			p.AtlasBottom = &c
		case "solid", "transparent":
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				return p, fmt.Errorf("%s: %w", key, err)
			}
			if key == "solid" {
				p.Solid = &b
			} else {
				p.Transparent = &b
			}
		case "sound":
			if !isNullWord(val) {
				return p, fmt.Errorf("sound: only null is accepted, use sound.step/sound.break/sound.place or a preset")
			}
			p.ClearSound = true
		case "sound.step", "sound.break", "sound.place":
			if p.Sound == nil {
				p.Sound = &SoundPatch{}
			}
			v := val
			switch key {
			case "sound.step":
				p.Sound.Step = &v
			case "sound.break":
				p.Sound.Break = &v
			default:
				p.Sound.Place = &v
			}
		default:
			return p, fmt.Errorf("unknown field %q", key)
		}
	}
	return p, nil
}

func isNullWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "nil", "inherit", "":
		return true
	}
	return false
}

// ParseCell accepts "c,r", "c r" or "[c, r]".
func ParseCell(s string) (Cell, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(parts) != 2 {
		return Cell{}, fmt.Errorf("bad cell %q (want col,row)", s)
	}
	var c Cell
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Cell{}, fmt.Errorf("bad cell %q: %w", s, err)
		}
		if n < 0 {
			return Cell{}, fmt.Errorf("bad cell %q: negative coordinate", s)
		}
		c[i] = n
	}
	return c, nil
}
