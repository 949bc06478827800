package blockjs

import (
	"strconv"
	"strings"

	"blockedit.ai/internal/blocks"
)

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

// skipLiteral returns the index just past a string literal or comment that
// starts at i, or i itself when nothing starts there. Unterminated literals
// run to the end of s.
func skipLiteral(s string, i int) int {
	if i >= len(s) {
		return i
	}
	switch c := s[i]; {
	case c == '\'' || c == '"' || c == '`':
		j := i + 1
		for j < len(s) {
			if s[j] == '\\' {
				j += 2
				continue
			}
			if s[j] == c {
				return j + 1
			}
			j++
		}
		return len(s)
	case c == '/' && i+1 < len(s) && s[i+1] == '/':
		if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
			return i + nl + 1
		}
		return len(s)
	case c == '/' && i+1 < len(s) && s[i+1] == '*':
		if end := strings.Index(s[i+2:], "*/"); end >= 0 {
			return i + 2 + end + 2
		}
		return len(s)
	}
	return i
}

// indexOutsideLiterals is strings.Index starting at from, ignoring matches
// inside string literals and comments.
func indexOutsideLiterals(s string, from int, sub string) int {
	for i := from; i < len(s); {
		if j := skipLiteral(s, i); j != i {
			i = j
			continue
		}
		if strings.HasPrefix(s[i:], sub) {
			return i
		}
		i++
	}
	return -1
}

// keyValueOffsets returns, for every occurrence of key used as an object
// key (bare identifier or quoted, followed by a colon), the offset just past
// the colon. Occurrences inside strings and comments do not count, nor do
// longer identifiers that merely end in key.
func keyValueOffsets(s, key string) []int {
	var out []int
	colonAfter := func(j int) int {
		j = skipSpace(s, j)
		if j < len(s) && s[j] == ':' {
			return j + 1
		}
		return -1
	}
	for i := 0; i < len(s); {
		c := s[i]
		if c == '\'' || c == '"' {
			j := skipLiteral(s, i)
			if j-i == len(key)+2 && s[i+1:j-1] == key {
				if k := colonAfter(j); k >= 0 {
					out = append(out, k)
				}
			}
			i = j
			continue
		}
		if j := skipLiteral(s, i); j != i {
			i = j
			continue
		}
		if isIdentByte(c) {
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			if s[i:j] == key {
				if k := colonAfter(j); k >= 0 {
					out = append(out, k)
				}
			}
			i = j
			continue
		}
		i++
	}
	return out
}

func hasKey(s, key string) bool { return len(keyValueOffsets(s, key)) > 0 }

// firstValue runs parse at each occurrence of key and returns the first
// value that parses.
func firstValue[T any](s, key string, parse func(string, int) (T, bool)) (T, bool) {
	for _, off := range keyValueOffsets(s, key) {
		if v, ok := parse(s, off); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// maxExactInt is the largest integer a JavaScript number holds exactly. Ids
// and cells above it are rejected by both the scanner and the evaluator.
const maxExactInt = 1<<53 - 1

func parseUint(s string, i int) (int, bool) {
	i = skipSpace(s, i)
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0, false
	}
	n, err := strconv.ParseInt(s[i:j], 10, 64)
	if err != nil || n > maxExactInt {
		return 0, false
	}
	return int(n), true
}

// parseQuoted reads a single- or double-quoted string literal.
func parseQuoted(s string, i int) (string, bool) {
	i = skipSpace(s, i)
	if i >= len(s) || (s[i] != '\'' && s[i] != '"') {
		return "", false
	}
	q := s[i]
	var b strings.Builder
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == q:
			return b.String(), true
		case c == '\\' && j+1 < len(s):
			j++
			switch s[j] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(s[j])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", false
}

func parseCell(s string, i int) (blocks.Cell, bool) {
	var c blocks.Cell
	i = skipSpace(s, i)
	if i >= len(s) || s[i] != '[' {
		return c, false
	}
	col, ok := parseUint(s, i+1)
	if !ok {
		return c, false
	}
	i = skipSpace(s, skipDigits(s, skipSpace(s, i+1)))
	if i >= len(s) || s[i] != ',' {
		return c, false
	}
	row, ok := parseUint(s, i+1)
	if !ok {
		return c, false
	}
	i = skipSpace(s, skipDigits(s, skipSpace(s, i+1)))
	if i >= len(s) || s[i] != ']' {
		return c, false
	}
	return blocks.Cell{col, row}, true
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

func parseBool(s string, i int) (bool, bool) {
	i = skipSpace(s, i)
	for _, lit := range []string{"true", "false"} {
		if strings.HasPrefix(s[i:], lit) {
			end := i + len(lit)
			if end < len(s) && isIdentByte(s[end]) {
				return false, false
			}
			return lit == "true", true
		}
	}
	return false, false
}

// parseBraced returns the text between a `{` at i (after spaces) and its
// matching `}`.
func parseBraced(s string, i int) (string, bool) {
	i = skipSpace(s, i)
	if i >= len(s) || s[i] != '{' {
		return "", false
	}
	end := matchBrace(s, i)
	if end < 0 {
		return "", false
	}
	return s[i+1 : end], true
}

// matchBrace returns the index of the `}` closing the `{` at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); {
		if j := skipLiteral(s, i); j != i {
			i = j
			continue
		}
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}
