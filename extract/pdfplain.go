package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PlainPDF is the fallback PDF extractor: page-by-page plain text only, no
// tables, no images. The Router runs it when LayoutPDF fails.
type PlainPDF struct{}

func (e *PlainPDF) Extract(name string, data []byte) (*Outcome, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}

	numPages := reader.NumPage()
	var blocks []string
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[Page %d]\n%s", i, strings.TrimSpace(text)))
	}

	return &Outcome{
		Success:  true,
		FileType: TypePDF,
		Content:  strings.Join(blocks, "\n"),
		Metadata: map[string]string{
			"processing_method": "pdf_plaintext",
			"page_count":        strconv.Itoa(numPages),
		},
	}, nil
}
