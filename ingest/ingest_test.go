package ingest

import (
	"strings"
	"testing"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ImagesDir = t.TempDir()
	return NewPipeline(cfg)
}

func TestLoadAndSplit_Text(t *testing.T) {
	p := testPipeline(t)
	text := strings.Repeat("The pipeline splits this text into pieces. ", 100)
	chunks, err := p.LoadAndSplit("notes.txt", []byte(text))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks: got %d, want >= 2", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("index at %d: got %d", i, c.Index)
		}
		if strings.TrimSpace(c.Content) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestLoadAndSplit_UnsupportedExtension(t *testing.T) {
	p := testPipeline(t)
	_, err := p.LoadAndSplit("image.png", []byte("data"))
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !strings.Contains(err.Error(), ".png") {
		t.Errorf("error should cite the extension: %v", err)
	}
}

func TestLoadAndSplit_FailedExtractionIsNotAnError(t *testing.T) {
	p := testPipeline(t)
	chunks, err := p.LoadAndSplit("blank.txt", []byte("   "))
	if err != nil {
		t.Fatalf("failed extraction must not error: %v", err)
	}
	if chunks != nil {
		t.Errorf("chunks: got %v, want nil", chunks)
	}
	if p.Stats.Failed != 1 {
		t.Errorf("stats failed: got %d, want 1", p.Stats.Failed)
	}
}

func TestLoadAndSplit_MarkdownUsesRecommendedSize(t *testing.T) {
	p := testPipeline(t)
	var sb strings.Builder
	sb.WriteString("# Structured Document\n\n")
	for i := 0; i < 40; i++ {
		sb.WriteString("## Section\n\n- point one\n- point two\n\nBody paragraph with enough words to matter.\n\n")
	}
	chunks, err := p.LoadAndSplit("guide.md", []byte(sb.String()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks: got %d", len(chunks))
	}
	// Structured text recommends 600-rune chunks; overlap adds at most a quarter.
	for _, c := range chunks {
		if n := len([]rune(c.Content)); n > 600+150 {
			t.Errorf("chunk %d has %d runes", c.Index, n)
		}
	}
}

func TestProcess_Batch(t *testing.T) {
	p := testPipeline(t)
	reports := p.Process(map[string][]byte{
		"a.txt":  []byte(strings.Repeat("alpha beta gamma. ", 50)),
		"bad.md": []byte("   "),
	})
	if len(reports) != 2 {
		t.Fatalf("reports: got %d", len(reports))
	}

	ok := reports["a.txt"]
	if !ok.Outcome.Success || len(ok.Chunks) == 0 {
		t.Errorf("a.txt: %+v", ok)
	}
	if ok.Analysis.ContentType == "" {
		t.Error("a.txt analysis missing")
	}

	bad := reports["bad.md"]
	if bad.Outcome.Success || bad.Chunks != nil {
		t.Errorf("bad.md should fail with no chunks: %+v", bad)
	}

	if p.Stats.FilesProcessed != 2 || p.Stats.Succeeded != 1 {
		t.Errorf("stats: %+v", p.Stats)
	}
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report",
		"dir/sub/report.pdf":  "report",
		"no_extension":        "no_extension",
		"dotted.name.tar.txt": "dotted.name.tar",
	}
	for in, want := range cases {
		if got := stem(in); got != want {
			t.Errorf("stem(%q): got %q, want %q", in, got, want)
		}
	}
}
