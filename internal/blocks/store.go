package blocks

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange = errors.New("blocks: index out of range")
	ErrUnknownPreset   = errors.New("blocks: unknown sound preset")
)

// Store is the in-memory block table. It is not safe for concurrent use;
// front ends call it from a single event loop.
type Store struct {
	recs    []Record
	presets Presets
}

// NewStore copies recs as-is. Decoded input is already sorted; callers
// building a store by hand can call SortByID.
func NewStore(recs []Record, presets Presets) *Store {
	if presets == nil {
		presets = DefaultPresets()
	}
	s := &Store{presets: presets}
	s.Replace(recs)
	return s
}

// Replace swaps the whole list, e.g. after a reload.
func (s *Store) Replace(recs []Record) {
	s.recs = make([]Record, 0, len(recs))
	for _, r := range recs {
		s.recs = append(s.recs, r.Clone())
	}
}

func (s *Store) Len() int { return len(s.recs) }

func (s *Store) Presets() Presets { return s.presets }

// Records returns a deep copy of the list in store order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.recs))
	for i, r := range s.recs {
		out[i] = r.Clone()
	}
	return out
}

// At returns a copy of the record at index i.
func (s *Store) At(i int) (Record, error) {
	if i < 0 || i >= len(s.recs) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.recs))
	}
	return s.recs[i].Clone(), nil
}

// Find returns the index of the first record with the given id.
func (s *Store) Find(id int) (int, bool) {
	for i, r := range s.recs {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}

// NextID is one more than the largest id, or 0 for an empty store.
func (s *Store) NextID() int {
	next := 0
	for _, r := range s.recs {
		if r.ID+1 > next {
			next = r.ID + 1
		}
	}
	return next
}

// Add appends a default record with the next free id. The list is not
// re-sorted.
func (s *Store) Add() (int, Record) {
	r := New(s.NextID())
	s.recs = append(s.recs, r)
	return len(s.recs) - 1, r.Clone()
}

// Delete removes the record at index i.
func (s *Store) Delete(i int) (Record, error) {
	if i < 0 || i >= len(s.recs) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.recs))
	}
	r := s.recs[i]
	s.recs = append(s.recs[:i], s.recs[i+1:]...)
	return r, nil
}

// Update applies p to the record at index i. An id that is not a
// non-negative number, or that another record already uses, is ignored;
// the other fields still apply.
func (s *Store) Update(i int, p Patch) (Record, error) {
	if i < 0 || i >= len(s.recs) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.recs))
	}
	p.apply(&s.recs[i], func(id int) bool {
		j, found := s.Find(id)
		return !found || j == i
	})
	return s.recs[i].Clone(), nil
}

// ApplySoundPreset overwrites all three cues from the named preset. NONE
// leaves a non-nil, all-empty sound.
func (s *Store) ApplySoundPreset(i int, name string) (Record, error) {
	if i < 0 || i >= len(s.recs) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.recs))
	}
	preset, ok := s.presets[name]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	snd := preset
	s.recs[i].Sound = &snd
	return s.recs[i].Clone(), nil
}

// SetTexture assigns cell c to face f of the record at index i.
func (s *Store) SetTexture(i int, f Face, c Cell) (Record, error) {
	if i < 0 || i >= len(s.recs) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.recs))
	}
	s.recs[i].SetTexture(f, c)
	return s.recs[i].Clone(), nil
}

// ResetTexture puts face f of the record at index i back to its default.
func (s *Store) ResetTexture(i int, f Face) (Record, error) {
	if i < 0 || i >= len(s.recs) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.recs))
	}
	s.recs[i].ResetTexture(f)
	return s.recs[i].Clone(), nil
}

func (s *Store) SortByID() { SortByID(s.recs) }

// Validate checks every record plus id uniqueness.
func (s *Store) Validate() error {
	for _, r := range s.recs {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if dups := Duplicates(s.recs); len(dups) > 0 {
		return fmt.Errorf("duplicate ids: %v", dups)
	}
	return nil
}
