package editor

import (
	"fmt"

	"blockedit.ai/internal/atlas"
	"blockedit.ai/internal/blocks"
	persistlog "blockedit.ai/internal/persistence/log"
)

// Select marks the record at index i as the one being edited. -1 clears the
// selection.
func (s *Session) Select(i int) (blocks.Record, error) {
	if i == -1 {
		s.selected = -1
		return blocks.Record{}, nil
	}
	r, err := s.store.At(i)
	if err != nil {
		return blocks.Record{}, err
	}
	s.selected = i
	return r, nil
}

// Selected returns the selected record, if any.
func (s *Session) Selected() (int, blocks.Record, bool) {
	if s.selected < 0 {
		return -1, blocks.Record{}, false
	}
	r, err := s.store.At(s.selected)
	if err != nil {
		s.selected = -1
		return -1, blocks.Record{}, false
	}
	return s.selected, r, true
}

// Add appends a new block and selects it.
func (s *Session) Add() (int, blocks.Record) {
	i, r := s.store.Add()
	s.selected = i
	s.dirty = true
	s.record(persistlog.EditEntry{Op: "add", Index: i, ID: idOf(r), After: &r})
	return i, r
}

// Delete removes the block at index i and clears the selection.
func (s *Session) Delete(i int) (blocks.Record, error) {
	r, err := s.store.Delete(i)
	if err != nil {
		return blocks.Record{}, err
	}
	s.selected = -1
	s.dirty = true
	s.record(persistlog.EditEntry{Op: "delete", Index: i, ID: idOf(r), Before: &r})
	return r, nil
}

// Update applies a field patch to the block at index i.
func (s *Session) Update(i int, p blocks.Patch) (blocks.Record, error) {
	return s.mutate("update", i, "", func() (blocks.Record, error) { return s.store.Update(i, p) })
}

func (s *Session) ApplySoundPreset(i int, name string) (blocks.Record, error) {
	return s.mutate("preset", i, name, func() (blocks.Record, error) { return s.store.ApplySoundPreset(i, name) })
}

// PickTexture assigns an atlas cell to one face of the block at index i.
func (s *Session) PickTexture(i int, f blocks.Face, c blocks.Cell) (blocks.Record, error) {
	if !s.atlas.Grid().Contains(c) {
		return blocks.Record{}, fmt.Errorf("texture %s: %w", c, atlas.ErrCellOutOfRange)
	}
	return s.mutate("texture", i, fmt.Sprintf("%s=%s", f, c), func() (blocks.Record, error) { return s.store.SetTexture(i, f, c) })
}

// ResetTexture puts one face back to its default.
func (s *Session) ResetTexture(i int, f blocks.Face) (blocks.Record, error) {
	return s.mutate("texture-reset", i, string(f), func() (blocks.Record, error) { return s.store.ResetTexture(i, f) })
}

// UploadTexture pastes the image at imagePath into cell c of the atlas,
// writes the atlas, then assigns c to face f of the block at index i. The
// image format is checked before anything is read or changed, and a failed
// atlas write leaves both the atlas and the block as they were.
func (s *Session) UploadTexture(i int, f blocks.Face, imagePath string, c blocks.Cell) (blocks.Record, error) {
	if _, err := s.store.At(i); err != nil {
		return blocks.Record{}, err
	}
	img, err := atlas.LoadImage(imagePath)
	if err != nil {
		return blocks.Record{}, err
	}
	if err := s.atlas.Upload(c, img); err != nil {
		return blocks.Record{}, fmt.Errorf("upload to atlas: %w", err)
	}
	s.logger.Printf("uploaded %s to atlas cell %s", imagePath, c)
	return s.mutate("upload", i, fmt.Sprintf("%s=%s from %s", f, c, imagePath), func() (blocks.Record, error) { return s.store.SetTexture(i, f, c) })
}

func (s *Session) mutate(op string, i int, detail string, apply func() (blocks.Record, error)) (blocks.Record, error) {
	before, err := s.store.At(i)
	if err != nil {
		return blocks.Record{}, err
	}
	after, err := apply()
	if err != nil {
		return blocks.Record{}, err
	}
	if !blocks.Equal(before, after) {
		s.dirty = true
	}
	s.record(persistlog.EditEntry{Op: op, Index: i, ID: idOf(after), Before: &before, After: &after, Detail: detail})
	return after, nil
}

func idOf(r blocks.Record) *int {
	id := r.ID
	return &id
}
