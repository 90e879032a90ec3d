package chunk

import (
	"fmt"
	"strings"

	"github.com/mverel/ragpipe/extract"
)

// Chunk is a piece of document text with the tables and images whose
// back-reference tokens appear in it.
type Chunk struct {
	Content string
	Index   int
	Tables  []extract.Table
	Images  []extract.ImageRef
}

// Link rebuilds each artifact's back-reference token and attaches the
// artifact to every chunk whose content contains the token literally.
// A token split across a chunk boundary matches no chunk; a token repeated
// in several chunks attaches the artifact to each of them.
func Link(pieces []Piece, tables []extract.Table, images []extract.ImageRef, stem string) []Chunk {
	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{Content: p.Content, Index: p.Index}
	}

	for _, t := range tables {
		token := t.Token(stem)
		for i := range chunks {
			if containsToken(chunks[i].Content, token) {
				chunks[i].Tables = append(chunks[i].Tables, t)
			}
		}
	}
	for _, img := range images {
		token := img.Token()
		for i := range chunks {
			if containsToken(chunks[i].Content, token) {
				chunks[i].Images = append(chunks[i].Images, img)
			}
		}
	}
	return chunks
}

func containsToken(content, token string) bool {
	return token != "" && strings.Contains(content, token)
}

// Citation renders the retrieval citation tag for a chunk of a source.
func Citation(source string, index int) string {
	return fmt.Sprintf("[source=%s, chunk=%d]", source, index)
}
