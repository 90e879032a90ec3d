package extract

import (
	"fmt"
	"path/filepath"
)

// FileType identifies a supported input format.
type FileType string

const (
	TypePDF     FileType = "pdf"
	TypeDocx    FileType = "docx"
	TypeDoc     FileType = "doc"
	TypeTxt     FileType = "txt"
	TypeMD      FileType = "md"
	TypeUnknown FileType = "unknown"
)

// FileTypes lists every known type, including unknown.
func FileTypes() []FileType {
	return []FileType{TypePDF, TypeDocx, TypeDoc, TypeTxt, TypeMD, TypeUnknown}
}

// Rect is an axis-aligned bounding box in PDF user-space coordinates.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Table is a grid detected on a document page. Grid[0] is the header row;
// fully empty rows and columns have been removed, and at least one data row
// remains beyond the header.
type Table struct {
	Page  int        `json:"page"`  // 1-based page number
	Index int        `json:"index"` // 0-based position within the page
	BBox  Rect       `json:"bbox"`
	Grid  [][]string `json:"grid"`
}

// Token returns the back-reference string the extractor embeds inline in the
// page text for this table. The linker rebuilds the same string to re-attach
// the table to chunks, so both sides must agree byte for byte.
func (t Table) Token(stem string) string {
	return fmt.Sprintf("[Page %d] Table %d: %s_page%d_table%d", t.Page, t.Index+1, stem, t.Page, t.Index+1)
}

// ImageRef points at a raster image written to the side directory.
type ImageRef struct {
	Path  string `json:"path"`  // on-disk path, filename <stem>_page<N>_img<K>.png
	Page  int    `json:"page"`  // 1-based page number
	Index int    `json:"index"` // 0-based position within the page
}

// Token returns the back-reference string embedded inline for this image.
func (im ImageRef) Token() string {
	return fmt.Sprintf("[Page %d] Image: %s", im.Page, filepath.Base(im.Path))
}

// Outcome is the normalized result of routing one file through extraction.
//
// Invariant: Success=false implies Content=="" and Error!="".
type Outcome struct {
	Success  bool              `json:"success"`
	FileType FileType          `json:"file_type"`
	Content  string            `json:"content"`
	Tables   []Table           `json:"tables,omitempty"`
	Images   []ImageRef        `json:"images,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func failure(ft FileType, msg string) *Outcome {
	return &Outcome{Success: false, FileType: ft, Error: msg}
}

// Stats accumulates routing counters. It is a plain value owned by the
// caller and threaded explicitly through Route calls; one Stats must not be
// shared between goroutines without external synchronization.
type Stats struct {
	FilesProcessed int              `json:"files_processed"`
	Succeeded      int              `json:"succeeded"`
	Failed         int              `json:"failed"`
	ByType         map[FileType]int `json:"by_type"`
}

// Record counts one routed outcome.
func (s *Stats) Record(out *Outcome) {
	if s.ByType == nil {
		s.ByType = make(map[FileType]int)
	}
	s.FilesProcessed++
	s.ByType[out.FileType]++
	if out.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

// SuccessRate returns the percentage of processed files that succeeded.
func (s *Stats) SuccessRate() float64 {
	if s.FilesProcessed == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.FilesProcessed) * 100
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	*s = Stats{}
}
