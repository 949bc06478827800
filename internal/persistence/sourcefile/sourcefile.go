// Package sourcefile loads and saves the JavaScript file holding BLOCK_DATA.
package sourcefile

import (
	"fmt"
	"io/fs"
	"os"

	"blockedit.ai/internal/blocks"
	"blockedit.ai/internal/codec/blockjs"
)

// WriteError is returned when the encoded file cannot be written. The
// in-memory table is unaffected.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// File is the full text of a source file as last read or written.
type File struct {
	Path string
	Text string
	Mode fs.FileMode
}

// Read loads the whole file. A missing file wraps fs.ErrNotExist.
func Read(path string) (File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return File{Path: path, Text: string(b), Mode: st.Mode().Perm()}, nil
}

// Load reads path and decodes its block table. A file without a table
// wraps blockjs.ErrNoBlockTable; nothing is returned in that case.
func Load(path string) (File, []blocks.Record, error) {
	f, err := Read(path)
	if err != nil {
		return File{}, nil, err
	}
	recs, err := blockjs.Decode(f.Text)
	if err != nil {
		return File{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, recs, nil
}

// Save regenerates the table of f from recs and writes the whole file to
// path. The returned File holds the new text.
func Save(path string, f File, recs []blocks.Record) (File, error) {
	text, err := Render(f, recs)
	if err != nil {
		return f, err
	}
	return Write(path, f, text)
}

// Render returns the text of f with its block table regenerated from recs.
func Render(f File, recs []blocks.Record) (string, error) {
	text, err := blockjs.Encode(recs, f.Text)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Path, err)
	}
	return text, nil
}

// Write replaces the contents of path with text, keeping the mode of f.
func Write(path string, f File, text string) (File, error) {
	mode := f.Mode
	if mode == 0 {
		mode = 0o644
	}
	if err := os.WriteFile(path, []byte(text), mode); err != nil {
		return f, &WriteError{Path: path, Err: err}
	}
	return File{Path: path, Text: text, Mode: mode}, nil
}

// Create writes a fresh file containing only the block table. It refuses
// to overwrite an existing file.
func Create(path string, recs []blocks.Record) (File, error) {
	text, err := blockjs.NewFile(recs)
	if err != nil {
		return File{}, err
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return File{}, &WriteError{Path: path, Err: err}
	}
	if _, err := fh.WriteString(text); err != nil {
		_ = fh.Close()
		return File{}, &WriteError{Path: path, Err: err}
	}
	if err := fh.Close(); err != nil {
		return File{}, &WriteError{Path: path, Err: err}
	}
	return File{Path: path, Text: text, Mode: 0o644}, nil
}
