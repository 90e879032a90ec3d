package extract

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// Markdown renders a .md file to HTML and strips all markup back out,
// yielding plain text. The round trip is deliberately lossy: header and
// list markers collapse into plain lines, so downstream structure
// detection works from pattern heuristics over the stripped text, never
// from the original markup.
type Markdown struct{}

// blockCloseRe marks block-level boundaries in rendered HTML so the
// stripped text keeps one line per block, mirroring how a DOM text walk
// would separate elements.
var blockCloseRe = regexp.MustCompile(`(?i)</(p|h[1-6]|li|blockquote|pre|tr|table|ul|ol|div)>|<(br|hr)\s*/?>`)

var stripPolicy = bluemonday.StrictPolicy()

func (e *Markdown) Extract(name string, data []byte) (*Outcome, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(data, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	rendered := blockCloseRe.ReplaceAllString(buf.String(), "\n")
	text := html.UnescapeString(stripPolicy.Sanitize(rendered))
	text = tidyLines(text)

	if text == "" {
		return failure(TypeMD, "empty markdown file"), nil
	}

	raw := string(data)
	return &Outcome{
		Success:  true,
		FileType: TypeMD,
		Content:  text,
		Metadata: map[string]string{
			"processing_method": "markdown_rendered",
			"header_count":      strconv.Itoa(strings.Count(raw, "#")),
			"link_count":        strconv.Itoa(strings.Count(raw, "[")),
			"code_block_count":  strconv.Itoa(strings.Count(raw, "```") / 2),
			"word_count":        strconv.Itoa(len(strings.Fields(text))),
		},
	}, nil
}

// tidyLines trims each line and collapses blank runs to a single blank line.
func tidyLines(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
