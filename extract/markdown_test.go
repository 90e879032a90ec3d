package extract

import (
	"strings"
	"testing"
)

func TestMarkdown_StripsMarkup(t *testing.T) {
	src := "# Title\n\nSome **bold** text with a [link](https://example.com).\n\n- item one\n- item two\n"
	e := &Markdown{}
	out, err := e.Extract("doc.md", []byte(src))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !out.Success {
		t.Fatalf("outcome: %+v", out)
	}
	for _, marker := range []string{"#", "**", "](", "<"} {
		if strings.Contains(out.Content, marker) {
			t.Errorf("markup %q survived: %q", marker, out.Content)
		}
	}
	for _, want := range []string{"Title", "bold", "link", "item one", "item two"} {
		if !strings.Contains(out.Content, want) {
			t.Errorf("missing %q: %q", want, out.Content)
		}
	}
	// Block elements keep their own lines.
	if !strings.Contains(out.Content, "Title\n") {
		t.Errorf("title not on its own line: %q", out.Content)
	}
}

func TestMarkdown_Metadata(t *testing.T) {
	src := "# One\n\n## Two\n\n[a](x) [b](y)\n\n```\ncode\n```\n"
	e := &Markdown{}
	out, err := e.Extract("doc.md", []byte(src))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.Metadata["processing_method"] != "markdown_rendered" {
		t.Errorf("method: %q", out.Metadata["processing_method"])
	}
	// Counts come from the raw source, before stripping.
	if out.Metadata["header_count"] != "3" {
		t.Errorf("header_count: %q", out.Metadata["header_count"])
	}
	if out.Metadata["link_count"] != "2" {
		t.Errorf("link_count: %q", out.Metadata["link_count"])
	}
	if out.Metadata["code_block_count"] != "1" {
		t.Errorf("code_block_count: %q", out.Metadata["code_block_count"])
	}
}

func TestMarkdown_Empty(t *testing.T) {
	e := &Markdown{}
	out, err := e.Extract("blank.md", []byte("   \n\n  "))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.Success {
		t.Fatal("expected failure for blank markdown")
	}
	if out.Error == "" {
		t.Error("failure must carry an error message")
	}
}

func TestMarkdown_EntitiesUnescaped(t *testing.T) {
	e := &Markdown{}
	out, err := e.Extract("amp.md", []byte("Fish & Chips <tag>\n"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(out.Content, "Fish & Chips") {
		t.Errorf("entity not unescaped: %q", out.Content)
	}
}
