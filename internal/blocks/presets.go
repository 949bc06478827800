package blocks

import "sort"

// PresetNone clears every cue but keeps the sound object present.
const PresetNone = "NONE"

// Presets maps a preset name to the cues it writes.
type Presets map[string]Sound

// DefaultPresets is the built-in table.
func DefaultPresets() Presets {
	return Presets{
		PresetNone: {Step: "", Break: "", Place: ""},
		"STONE":    {Step: "stone_step", Break: "stone_break", Place: "stone_place"},
		"WOOD":     {Step: "wood_step", Break: "wood_break", Place: "wood_place"},
		"GRASS":    {Step: "grass_step", Break: "grass_break", Place: "grass_place"},
		"DIRT":     {Step: "dirt_step", Break: "dirt_break", Place: "dirt_place"},
	}
}

// With returns a copy of p extended (or overridden) by extra.
func (p Presets) With(extra map[string]Sound) Presets {
	out := make(Presets, len(p)+len(extra))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Names lists preset names with NONE first, the rest sorted.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		if k != PresetNone {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	if _, ok := p[PresetNone]; ok {
		names = append([]string{PresetNone}, names...)
	}
	return names
}
