// Package analyze classifies extraction outcomes and derives chunking
// parameters from them: content type, quality and structure scores, and a
// recommended chunk size and strategy for the adaptive splitter.
package analyze

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mverel/ragpipe/extract"
)

// ContentType labels what an extracted document is made of.
type ContentType string

const (
	Empty          ContentType = "empty"
	TextOnly       ContentType = "text_only"
	StructuredText ContentType = "structured_text"
	TableOnly      ContentType = "table_only"
	ImageOnly      ContentType = "image_only"
	TextTable      ContentType = "text_table"
	TextTableImage ContentType = "text_table_image"
	MixedContent   ContentType = "mixed_content"
)

// Analysis is the derived view of one extraction outcome.
type Analysis struct {
	ContentType ContentType `json:"content_type"`
	Confidence  float64     `json:"confidence"`

	HasText      bool `json:"has_text"`
	HasTables    bool `json:"has_tables"`
	HasImages    bool `json:"has_images"`
	HasStructure bool `json:"has_structure"`

	TextLength int `json:"text_length"`
	TableCount int `json:"table_count"`
	ImageCount int `json:"image_count"`
	PageCount  int `json:"page_count"`

	TextQuality    float64 `json:"text_quality"`
	StructureScore float64 `json:"structure_score"`

	RecommendedChunkSize int    `json:"recommended_chunk_size"`
	RecommendedStrategy  string `json:"recommended_strategy"`
}

// Structure pattern categories. Hits across all categories, normalized by
// line count, make up the structure score.
var structurePatterns = map[string][]*regexp.Regexp{
	"headers": {
		regexp.MustCompile(`(?m)^#+\s+`),              // markdown headings
		regexp.MustCompile(`(?m)^[A-Z][A-Z\s]{2,}$`),  // ALL CAPS lines
		regexp.MustCompile(`(?m)^\d+\.\s+[A-Z]`),      // numbered sections
		regexp.MustCompile(`(?im)^(chapter|section|part)\s+\d+`),
	},
	"lists": {
		regexp.MustCompile(`(?m)^\s*[-*+]\s+`),
		regexp.MustCompile(`(?m)^\s*\d+\.\s+`),
		regexp.MustCompile(`(?m)^\s*[a-z]\)\s+`),
	},
	"tables": {
		regexp.MustCompile(`\|.*\|.*\|`),
		regexp.MustCompile(`\t.*\t.*\t`),
		regexp.MustCompile(`(?i)table\s*\d+`),
	},
	"images": {
		regexp.MustCompile(`(?i)(figure|fig\.?)\s*\d+`),
		regexp.MustCompile(`!\[.*\]\(.*\)`),
		regexp.MustCompile(`(?i)image`),
	},
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

// Analyzer derives ContentAnalysis values. It is stateless and safe to
// share; a zero value is usable.
type Analyzer struct{}

func New() *Analyzer { return &Analyzer{} }

// Analyze classifies one extraction outcome. Pure: the outcome is not
// modified and identical inputs produce identical analyses.
func (a *Analyzer) Analyze(out *extract.Outcome) Analysis {
	if !out.Success {
		return Analysis{ContentType: Empty, Confidence: 1.0, PageCount: 1}
	}

	hasText := strings.TrimSpace(out.Content) != ""
	hasTables := len(out.Tables) > 0
	hasImages := len(out.Images) > 0

	var m textMetrics
	var structureScore float64
	if hasText {
		m = measureText(out.Content)
		structureScore = structureScoreFor(out.Content, out.FileType)
	}

	contentType, confidence := classify(hasText, hasTables, hasImages, structureScore)

	// Text length in runes, matching the rune-based splitter downstream.
	textLen := utf8.RuneCountInString(out.Content)
	size, strategy := Recommend(contentType, textLen, len(out.Tables), len(out.Images))

	return Analysis{
		ContentType:          contentType,
		Confidence:           confidence,
		HasText:              hasText,
		HasTables:            hasTables,
		HasImages:            hasImages,
		HasStructure:         structureScore > 0.3,
		TextLength:           textLen,
		TableCount:           len(out.Tables),
		ImageCount:           len(out.Images),
		PageCount:            pageCount(out),
		TextQuality:          textQuality(m),
		StructureScore:       structureScore,
		RecommendedChunkSize: size,
		RecommendedStrategy:  strategy,
	}
}

// AnalyzeAll analyzes a batch of routed outcomes.
func (a *Analyzer) AnalyzeAll(outcomes map[string]*extract.Outcome) map[string]Analysis {
	analyses := make(map[string]Analysis, len(outcomes))
	for name, out := range outcomes {
		analyses[name] = a.Analyze(out)
	}
	return analyses
}

// Summary aggregates a batch of analyses.
type Summary struct {
	TotalFiles        int                 `json:"total_files"`
	TypeCounts        map[ContentType]int `json:"content_type_distribution"`
	StrategyCounts    map[string]int      `json:"strategy_distribution"`
	TotalTextLength   int                 `json:"total_text_length"`
	TotalTables       int                 `json:"total_tables"`
	TotalImages       int                 `json:"total_images"`
	AverageConfidence float64             `json:"average_confidence"`
	AverageQuality    float64             `json:"average_quality"`
}

// Summarize rolls a set of per-file analyses into batch statistics.
func Summarize(analyses map[string]Analysis) Summary {
	s := Summary{
		TotalFiles:     len(analyses),
		TypeCounts:     make(map[ContentType]int),
		StrategyCounts: make(map[string]int),
	}
	if len(analyses) == 0 {
		return s
	}
	var confSum, qualSum float64
	for _, a := range analyses {
		s.TypeCounts[a.ContentType]++
		s.StrategyCounts[a.RecommendedStrategy]++
		s.TotalTextLength += a.TextLength
		s.TotalTables += a.TableCount
		s.TotalImages += a.ImageCount
		confSum += a.Confidence
		qualSum += a.TextQuality
	}
	s.AverageConfidence = confSum / float64(len(analyses))
	s.AverageQuality = qualSum / float64(len(analyses))
	return s
}

// classify picks the content type and its confidence. Priority order
// matters: single modalities first, then the text+table combinations,
// everything else is mixed.
func classify(hasText, hasTables, hasImages bool, structureScore float64) (ContentType, float64) {
	switch {
	case !hasText && !hasTables && !hasImages:
		return Empty, 1.0
	case hasText && !hasTables && !hasImages:
		if structureScore > 0.3 {
			return StructuredText, 0.9
		}
		return TextOnly, 0.95
	case hasTables && !hasText && !hasImages:
		return TableOnly, 0.9
	case hasImages && !hasText && !hasTables:
		return ImageOnly, 0.9
	case hasText && hasTables && hasImages:
		return TextTableImage, 0.95
	case hasText && hasTables:
		return TextTable, 0.9
	}
	return MixedContent, 0.7
}

type textMetrics struct {
	lineCount     int
	wordCount     int
	sentenceCount int
	alphaRatio    float64
	digitRatio    float64
	spaceRatio    float64
	avgWordLen    float64
	avgLineLen    float64
}

func measureText(content string) textMetrics {
	lines := strings.Split(content, "\n")
	words := strings.Fields(content)

	sentences := 0
	for _, s := range sentenceSplitRe.Split(content, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}

	var alpha, digit, space, total int
	for _, r := range content {
		total++
		switch {
		case unicode.IsLetter(r):
			alpha++
		case unicode.IsDigit(r):
			digit++
		case unicode.IsSpace(r):
			space++
		}
	}
	if total == 0 {
		total = 1
	}

	var wordLenSum, lineLenSum int
	for _, w := range words {
		wordLenSum += len([]rune(w))
	}
	for _, l := range lines {
		lineLenSum += len([]rune(l))
	}

	m := textMetrics{
		lineCount:     len(lines),
		wordCount:     len(words),
		sentenceCount: sentences,
		alphaRatio:    float64(alpha) / float64(total),
		digitRatio:    float64(digit) / float64(total),
		spaceRatio:    float64(space) / float64(total),
	}
	if len(words) > 0 {
		m.avgWordLen = float64(wordLenSum) / float64(len(words))
	}
	if len(lines) > 0 {
		m.avgLineLen = float64(lineLenSum) / float64(len(lines))
	}
	return m
}

// structureScoreFor counts pattern hits across all categories, normalized
// by total lines and clamped to 1.0. Markdown sources get a 1.5x boost
// because their markers were stripped during extraction.
func structureScoreFor(content string, ft extract.FileType) float64 {
	totalLines := len(strings.Split(content, "\n"))
	if totalLines == 0 {
		totalLines = 1
	}

	hits := 0
	for _, patterns := range structurePatterns {
		for _, pat := range patterns {
			hits += len(pat.FindAllStringIndex(content, -1))
		}
	}

	score := float64(hits) / float64(totalLines)
	if score > 1.0 {
		score = 1.0
	}
	if ft == extract.TypeMD {
		score *= 1.5
		if score > 1.0 {
			score = 1.0
		}
	}
	return score
}

// textQuality scores extracted text in [0,1]: base alphabetic ratio, a
// bonus for a readable average word length and sufficient volume, and a
// penalty for degenerate word lengths.
func textQuality(m textMetrics) float64 {
	q := m.alphaRatio
	if m.avgWordLen >= 3 && m.avgWordLen <= 8 {
		q += 0.2
	}
	if m.wordCount >= 50 {
		q += 0.1
	}
	if (m.avgWordLen < 2 || m.avgWordLen > 15) && m.wordCount > 0 {
		q -= 0.2
	}
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}

// Recommend derives the chunk size and splitting strategy for a classified
// document. The adjustments apply in a fixed order and compound: the
// type-keyed base, then the short-document halving, then the long-document
// growth, then the artifact-density bonus, and finally the 200 floor.
func Recommend(ct ContentType, textLength, tableCount, imageCount int) (int, string) {
	size := 800
	strategy := "standard"

	switch ct {
	case TextOnly:
		size, strategy = 1000, "text_only"
	case StructuredText:
		size, strategy = 600, "structure_aware"
	case TextTable:
		size, strategy = 1200, "table_aware"
	case TextTableImage:
		size, strategy = 1500, "multimedia_aware"
	case TableOnly:
		size, strategy = 2000, "table_focused"
	}

	if textLength < 2000 {
		if half := textLength / 2; half < size {
			size = half
		}
	} else if textLength > 50000 {
		size += 300
		if size > 2000 {
			size = 2000
		}
	}

	if tableCount > 5 || imageCount > 10 {
		size += 200
	}

	if size < 200 {
		size = 200
	}
	return size, strategy
}

func pageCount(out *extract.Outcome) int {
	if v, ok := out.Metadata["page_count"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
