package protocol

import (
	"errors"
	"io/fs"

	"blockedit.ai/internal/atlas"
	"blockedit.ai/internal/blocks"
	"blockedit.ai/internal/codec/blockjs"
	"blockedit.ai/internal/editor"
	"blockedit.ai/internal/persistence/sourcefile"
)

const (
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrNotFound     = "E_NOT_FOUND"
	ErrNoBlockTable = "E_NO_BLOCK_TABLE"
	ErrIO           = "E_IO"
	ErrCapability   = "E_CAPABILITY"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:   {},
	ErrNotFound:     {},
	ErrNoBlockTable: {},
	ErrIO:           {},
	ErrCapability:   {},
	ErrInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ErrInvalidCmd marks a CMD that is malformed or incomplete.
var ErrInvalidCmd = errors.New("invalid command")

// CodeFor maps an error from the editor stack to a wire code.
func CodeFor(err error) string {
	var we *sourcefile.WriteError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, blockjs.ErrNoBlockTable):
		return ErrNoBlockTable
	case errors.Is(err, atlas.ErrCapabilityUnavailable):
		return ErrCapability
	case errors.As(err, &we):
		return ErrIO
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, blocks.ErrIndexOutOfRange):
		return ErrNotFound
	case errors.Is(err, ErrInvalidCmd),
		errors.Is(err, blocks.ErrUnknownPreset),
		errors.Is(err, atlas.ErrCellOutOfRange),
		errors.Is(err, editor.ErrNotLoaded):
		return ErrBadRequest
	}
	return ErrInternal
}
