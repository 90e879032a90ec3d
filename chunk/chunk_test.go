package chunk

import (
	"strings"
	"testing"
)

func TestSplit_ShortText(t *testing.T) {
	text := "Hello world this is a short text."
	pieces := Split(text, Options{Size: 512})
	if len(pieces) != 1 {
		t.Fatalf("split short: got %d pieces, want 1", len(pieces))
	}
	if pieces[0].Content != text {
		t.Errorf("content: got %q, want %q", pieces[0].Content, text)
	}
	if pieces[0].Index != 0 {
		t.Errorf("index: got %d, want 0", pieces[0].Index)
	}
}

func TestSplit_Empty(t *testing.T) {
	if pieces := Split("", Options{}); pieces != nil {
		t.Errorf("split empty: got %v, want nil", pieces)
	}
	if pieces := Split("   \n\t ", Options{}); pieces != nil {
		t.Errorf("split blank: got %v, want nil", pieces)
	}
}

func TestSplit_PrefersBlankLines(t *testing.T) {
	paras := []string{
		strings.Repeat("alpha ", 30),
		strings.Repeat("beta ", 30),
		strings.Repeat("gamma ", 30),
	}
	text := strings.Join(paras, "\n\n")
	pieces := Split(text, Options{Size: 200, Overlap: 0})
	if len(pieces) < 2 {
		t.Fatalf("pieces: got %d, want >= 2", len(pieces))
	}
	// Paragraphs stay whole: no piece starts or ends mid-word.
	for _, p := range pieces {
		if strings.HasPrefix(p.Content, "lpha") || strings.HasSuffix(p.Content, "alph") {
			t.Errorf("piece broke inside a word: %q", p.Content)
		}
	}
}

func TestSplit_SizeRespected(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	size := 300
	pieces := Split(text, Options{Size: size, Overlap: 0})
	for _, p := range pieces {
		if n := len([]rune(p.Content)); n > size {
			t.Errorf("piece %d has %d runes, max %d", p.Index, n, size)
		}
	}
}

func TestSplit_ContiguousIndices(t *testing.T) {
	text := strings.Repeat("sentence fragment here. ", 200)
	pieces := Split(text, Options{Size: 250, Overlap: 40})
	for i, p := range pieces {
		if p.Index != i {
			t.Fatalf("index at %d: got %d", i, p.Index)
		}
	}
}

func TestSplit_OverlapPrependsTail(t *testing.T) {
	text := strings.Repeat("abcdefghij ", 100)
	pieces := Split(text, Options{Size: 200, Overlap: 40})
	if len(pieces) < 2 {
		t.Fatalf("pieces: got %d, want >= 2", len(pieces))
	}
	// Every piece after the first begins with text from its predecessor.
	first := []rune(pieces[1].Content)
	if len(first) < 10 {
		t.Fatalf("second piece too short: %q", pieces[1].Content)
	}
	if !strings.Contains(pieces[0].Content, strings.TrimSpace(string(first[:10]))) {
		t.Errorf("second piece does not start with predecessor text:\nfirst=%q\nsecond=%q",
			pieces[0].Content, pieces[1].Content)
	}
}

func TestSplit_OverlapClampedToQuarter(t *testing.T) {
	text := strings.Repeat("0123456789", 100)
	// Overlap 90 requested, Size 100 → clamp at 25.
	pieces := Split(text, Options{Size: 100, Overlap: 90})
	if len(pieces) < 2 {
		t.Fatalf("pieces: got %d", len(pieces))
	}
	// With clamped overlap of 25 the second piece is at most 100+25... but
	// still must not explode to the requested 90.
	for _, p := range pieces[1:] {
		if n := len([]rune(p.Content)); n > 125 {
			t.Errorf("piece %d has %d runes, overlap not clamped", p.Index, n)
		}
	}
}

func TestSplit_SingleLongWord(t *testing.T) {
	text := strings.Repeat("x", 1000)
	pieces := Split(text, Options{Size: 300, Overlap: 0})
	if len(pieces) != 4 {
		t.Fatalf("pieces: got %d, want 4", len(pieces))
	}
	var total int
	for _, p := range pieces {
		total += len(p.Content)
	}
	if total != 1000 {
		t.Errorf("total runes: got %d, want 1000", total)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("deterministic splitting check. ", 100)
	a := Split(text, Options{Size: 256, Overlap: 32})
	b := Split(text, Options{Size: 256, Overlap: 32})
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("piece %d differs", i)
		}
	}
}

func TestSplit_Defaults(t *testing.T) {
	text := strings.Repeat("default sized content. ", 100)
	pieces := Split(text, Options{})
	for _, p := range pieces {
		if n := len([]rune(p.Content)); n > DefaultSize+DefaultSize/4 {
			t.Errorf("piece %d has %d runes", p.Index, n)
		}
	}
}

func TestSplit_UnicodeSafe(t *testing.T) {
	text := strings.Repeat("héllo wörld çafé ", 200)
	pieces := Split(text, Options{Size: 100, Overlap: 20})
	for _, p := range pieces {
		if strings.ContainsRune(p.Content, '�') {
			t.Errorf("piece %d contains a broken rune: %q", p.Index, p.Content)
		}
	}
}
