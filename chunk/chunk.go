// Package chunk splits extracted text into overlapping pieces and links
// extraction artifacts (tables, images) back to the pieces that mention
// them.
package chunk

import (
	"strings"
)

// Options controls the splitter. Zero values fall back to defaults.
type Options struct {
	// Size is the maximum piece length in runes.
	Size int
	// Overlap is the number of trailing runes of the previous piece
	// prepended to the next. Clamped to Size/4.
	Overlap int
}

const (
	DefaultSize    = 800
	DefaultOverlap = 120
)

// Piece is one segment of the source text.
type Piece struct {
	Content string
	Index   int
}

// separators in preference order; the empty string means rune-level cuts.
var separators = []string{"\n\n", "\n", " ", ""}

// Split cuts text into pieces of at most opts.Size runes, preferring to
// break at blank lines, then newlines, then spaces, and only then inside
// words. Consecutive pieces share an overlap region. Deterministic:
// identical input and options produce identical pieces with contiguous
// zero-based indices.
func Split(text string, opts Options) []Piece {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if max := opts.Size / 4; opts.Overlap > max {
		opts.Overlap = max
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	segments := splitRecursive(text, opts.Size, separators)

	var pieces []Piece
	var prev string
	for _, seg := range segments {
		body := seg
		if prev != "" && opts.Overlap > 0 {
			body = tail(prev, opts.Overlap) + body
		}
		trimmed := strings.TrimSpace(body)
		if trimmed == "" {
			prev = seg
			continue
		}
		pieces = append(pieces, Piece{Content: trimmed, Index: len(pieces)})
		prev = seg
	}
	return pieces
}

// splitRecursive cuts text into segments of at most size runes using the
// first separator that makes progress, recursing with finer separators on
// oversized fragments and greedily merging small neighbors.
func splitRecursive(text string, size int, seps []string) []string {
	if runeLen(text) <= size {
		return []string{text}
	}

	sep := seps[0]
	rest := seps[1:]

	var parts []string
	if sep == "" {
		parts = splitRunes(text, size)
	} else {
		for _, p := range strings.Split(text, sep) {
			if p == "" {
				continue
			}
			if runeLen(p) > size && len(rest) > 0 {
				parts = append(parts, splitRecursive(p, size, rest)...)
			} else {
				parts = append(parts, p)
			}
		}
	}

	return merge(parts, size, sep)
}

// merge greedily packs adjacent fragments into segments up to size runes,
// re-joining with the separator they were split on.
func merge(parts []string, size int, sep string) []string {
	var out []string
	var cur strings.Builder
	curLen := 0
	sepLen := runeLen(sep)

	for _, p := range parts {
		pl := runeLen(p)
		if curLen > 0 && curLen+sepLen+pl > size {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += sepLen
		}
		cur.WriteString(p)
		curLen += pl
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}

func splitRunes(text string, size int) []string {
	rs := []rune(text)
	var out []string
	for len(rs) > size {
		out = append(out, string(rs[:size]))
		rs = rs[size:]
	}
	if len(rs) > 0 {
		out = append(out, string(rs))
	}
	return out
}

func runeLen(s string) int { return len([]rune(s)) }

// tail returns the last n runes of s.
func tail(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[len(rs)-n:])
}
