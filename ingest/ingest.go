// Package ingest wires the document pipeline end to end: route bytes to an
// extractor, classify the outcome, split with the recommended chunk size,
// and link tables and images back to their chunks.
package ingest

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mverel/ragpipe/analyze"
	"github.com/mverel/ragpipe/chunk"
	"github.com/mverel/ragpipe/extract"
)

// FileReport is the full result of processing one file.
type FileReport struct {
	Outcome  *extract.Outcome
	Analysis analyze.Analysis
	Chunks   []chunk.Chunk
}

// Pipeline processes documents sequentially. Stats accumulate across calls
// and are owned by the pipeline; not safe for concurrent use.
type Pipeline struct {
	router   *extract.Router
	analyzer *analyze.Analyzer
	overlap  int
	logger   *slog.Logger

	Stats extract.Stats
}

// NewPipeline builds a pipeline from config.
func NewPipeline(cfg *Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		router: extract.NewRouter(extract.Config{
			ImagesDir: cfg.ImagesDir,
			Logger:    cfg.Logger,
		}),
		analyzer: analyze.New(),
		overlap:  cfg.ChunkOverlap,
		logger:   cfg.Logger,
	}
}

// LoadAndSplit runs the pipeline for one file. An unsupported extension is
// an error; an extraction failure is not — it yields zero chunks and a
// warning, so one broken file never aborts a batch.
func (p *Pipeline) LoadAndSplit(filename string, data []byte) ([]chunk.Chunk, error) {
	if extract.DetectFileType(filename) == extract.TypeUnknown {
		return nil, fmt.Errorf("unsupported file type: %q", filepath.Ext(filename))
	}

	report := p.process(filename, data)
	if !report.Outcome.Success {
		p.logger.Warn("extraction failed",
			"file", filename, "error", report.Outcome.Error)
		return nil, nil
	}
	return report.Chunks, nil
}

// Process runs the pipeline for a batch of files, sequentially.
func (p *Pipeline) Process(files map[string][]byte) map[string]FileReport {
	reports := make(map[string]FileReport, len(files))
	for name, data := range files {
		reports[name] = p.process(name, data)
	}
	return reports
}

func (p *Pipeline) process(filename string, data []byte) FileReport {
	out := p.router.Route(filename, data, &p.Stats)
	an := p.analyzer.Analyze(out)

	report := FileReport{Outcome: out, Analysis: an}
	if !out.Success {
		return report
	}

	size := an.RecommendedChunkSize
	overlap := p.overlap
	if max := size / 4; overlap > max {
		overlap = max
	}
	pieces := chunk.Split(out.Content, chunk.Options{Size: size, Overlap: overlap})
	report.Chunks = chunk.Link(pieces, out.Tables, out.Images, stem(filename))

	p.logger.Info("processed document",
		"file", filename,
		"type", string(an.ContentType),
		"chunk_size", size,
		"chunks", len(report.Chunks),
		"tables", len(out.Tables),
		"images", len(out.Images))
	return report
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
