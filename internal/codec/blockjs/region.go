// Package blockjs reads and writes the BLOCK_DATA array literal embedded in
// a JavaScript source file.
//
// Decoding is tolerant: chunks that cannot be read are dropped and missing
// fields take defaults. Encoding regenerates the whole array in a fixed
// layout and splices it between the original markers, leaving the rest of
// the file untouched.
package blockjs

import (
	"errors"
	"regexp"
)

// ErrNoBlockTable means the text has no `export const BLOCK_DATA = [ ... ];`.
var ErrNoBlockTable = errors.New("blockjs: no BLOCK_DATA table")

const (
	Prologue = "export const BLOCK_DATA = ["
	Closing  = "];"
)

var prologueRE = regexp.MustCompile(`export\s+const\s+BLOCK_DATA\s*=\s*\[`)

// Region is the byte span between the prologue and the closing token.
type Region struct {
	Start int
	End   int
}

func (r Region) Of(text string) string { return text[r.Start:r.End] }

// Locate finds the first marked region. The closing `];` is the first one
// after the prologue that is not inside a string literal or comment.
func Locate(text string) (Region, error) {
	loc := prologueRE.FindStringIndex(text)
	if loc == nil {
		return Region{}, ErrNoBlockTable
	}
	start := loc[1]
	end := indexOutsideLiterals(text, start, Closing)
	if end < 0 {
		return Region{}, ErrNoBlockTable
	}
	return Region{Start: start, End: end}, nil
}

// Splice replaces the region content of text with body.
func Splice(text string, r Region, body string) string {
	return text[:r.Start] + body + text[r.End:]
}
