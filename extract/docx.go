package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Docx extracts whole-document plain text from .docx (and legacy .doc)
// archives by walking word/document.xml. An empty result is a failure.
type Docx struct{}

func (e *Docx) Extract(name string, data []byte) (*Outcome, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(xml.NewDecoder(rc))
	if err != nil {
		return nil, err
	}

	content := strings.Join(paragraphs, "\n\n")
	if strings.TrimSpace(content) == "" {
		return failure(TypeDocx, "no text content extracted from DOCX file"), nil
	}

	return &Outcome{
		Success:  true,
		FileType: TypeDocx,
		Content:  content,
		Metadata: map[string]string{
			"processing_method": "docx_xml",
			"word_count":        strconv.Itoa(len(strings.Fields(content))),
			"paragraph_count":   strconv.Itoa(len(paragraphs)),
		},
	}, nil
}

// docxParagraphs collects the text of each w:p element, inserting tabs and
// line breaks for their markup equivalents.
func docxParagraphs(decoder *xml.Decoder) ([]string, error) {
	var paragraphs []string
	var current strings.Builder
	inParagraph := false

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "tab":
				if inParagraph {
					current.WriteByte('\t')
				}
			case "br":
				if inParagraph {
					current.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inParagraph {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
	}
	return paragraphs, nil
}
