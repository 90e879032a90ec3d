package extract

import (
	"strconv"
	"strings"
)

// Text decodes plain text files as UTF-8, dropping undecodable bytes.
// An empty result is a failure.
type Text struct{}

func (e *Text) Extract(name string, data []byte) (*Outcome, error) {
	content := strings.ToValidUTF8(string(data), "")

	if strings.TrimSpace(content) == "" {
		return failure(TypeTxt, "empty text file"), nil
	}

	return &Outcome{
		Success:  true,
		FileType: TypeTxt,
		Content:  content,
		Metadata: map[string]string{
			"processing_method": "plain_text",
			"line_count":        strconv.Itoa(len(strings.Split(content, "\n"))),
			"word_count":        strconv.Itoa(len(strings.Fields(content))),
			"character_count":   strconv.Itoa(len(content)),
		},
	}, nil
}
