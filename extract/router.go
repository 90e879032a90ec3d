// Package extract turns raw document bytes into normalized extraction
// outcomes: plain text plus any tables and images found along the way.
//
// Supported formats:
//   - .pdf              — layout-aware extraction (tables, images) with a
//     plain-text fallback when the primary extractor fails
//   - .docx, .doc       — word/document.xml from the ZIP archive
//   - .md, .markdown    — rendered to HTML, then stripped to plain text
//   - .txt              — passthrough, invalid UTF-8 dropped
//
// Extraction never escapes the Router as a Go error or panic: every fault is
// folded into a failed Outcome carrying the fault message.
package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Extractor pulls content out of one document format. Returning an error
// (or panicking) makes the Router move on to the next registered attempt
// for the same file type.
type Extractor interface {
	Extract(name string, data []byte) (*Outcome, error)
}

// Config configures a Router.
type Config struct {
	// ImagesDir is where PDF raster images are written (default: extracted_images).
	// Files are keyed by (stem, page, index); two documents producing the same
	// key overwrite each other's image.
	ImagesDir string `json:"images_dir" yaml:"images_dir"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.ImagesDir == "" {
		c.ImagesDir = "extracted_images"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Router dispatches files to extractors by detected type. Each type maps to
// an ordered list of attempts tried in sequence until one succeeds; PDF
// registers the layout extractor followed by the plain-text fallback.
//
// The Router itself holds no mutable state. Counters live in the Stats value
// the caller passes to Route.
type Router struct {
	registry map[FileType][]Extractor
	logger   *slog.Logger
}

// NewRouter creates a Router with the default extractor registry.
func NewRouter(cfg Config) *Router {
	cfg.defaults()
	r := &Router{
		registry: make(map[FileType][]Extractor),
		logger:   cfg.Logger,
	}
	layout := &LayoutPDF{ImagesDir: cfg.ImagesDir, Logger: cfg.Logger}
	docx := &Docx{}
	r.Register(TypePDF, layout, &PlainPDF{})
	r.Register(TypeDocx, docx)
	r.Register(TypeDoc, docx) // legacy .doc shares the DOCX extractor
	r.Register(TypeTxt, &Text{})
	r.Register(TypeMD, &Markdown{})
	return r
}

// Register appends extraction attempts for a file type. New formats plug in
// here without touching Route.
func (r *Router) Register(ft FileType, ex ...Extractor) {
	r.registry[ft] = append(r.registry[ft], ex...)
}

// DetectFileType maps a filename extension to a FileType. Total over any
// input; unmapped extensions yield TypeUnknown.
func DetectFileType(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return TypePDF
	case ".docx":
		return TypeDocx
	case ".doc":
		return TypeDoc
	case ".txt":
		return TypeTxt
	case ".md", ".markdown":
		return TypeMD
	default:
		return TypeUnknown
	}
}

// Route extracts one file, normalizing every failure into a failed Outcome.
// If st is non-nil the outcome is recorded into it.
func (r *Router) Route(name string, data []byte, st *Stats) *Outcome {
	out := r.route(name, data)
	if st != nil {
		st.Record(out)
	}
	return out
}

// RouteAll extracts a batch of files sequentially.
func (r *Router) RouteAll(files map[string][]byte, st *Stats) map[string]*Outcome {
	results := make(map[string]*Outcome, len(files))
	for name, data := range files {
		results[name] = r.Route(name, data, st)
	}
	return results
}

func (r *Router) route(name string, data []byte) *Outcome {
	ft := DetectFileType(name)
	if ft == TypeUnknown {
		return failure(ft, fmt.Sprintf("unsupported file type: %q", filepath.Ext(name)))
	}

	attempts := r.registry[ft]
	if len(attempts) == 0 {
		return failure(ft, fmt.Sprintf("no extractor registered for %s", ft))
	}

	var lastErr error
	for i, ex := range attempts {
		out, err := r.attempt(ex, name, data)
		if err != nil {
			lastErr = err
			r.logger.Debug("extraction attempt failed",
				"file", name, "type", ft, "attempt", i+1, "err", err)
			continue
		}
		out.FileType = ft
		return out
	}
	return failure(ft, fmt.Sprintf("extraction failed after %d attempts: %v", len(attempts), lastErr))
}

// attempt runs one extractor, converting panics into errors so malformed
// input in a parser library cannot take down the caller.
func (r *Router) attempt(ex Extractor, name string, data []byte) (out *Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("extractor panic: %v", rec)
		}
	}()
	out, err = ex.Extract(name, data)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("extractor returned no outcome")
	}
	return out, nil
}

// stem returns the filename without directory or extension, the key used in
// back-reference tokens and image filenames.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
