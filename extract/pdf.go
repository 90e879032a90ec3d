package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// LayoutPDF is the primary PDF extractor. It scans each page's content
// stream with coordinate tracking, detects table grids from aligned text
// positions, and writes embedded raster images (3- or 4-channel only) to
// ImagesDir. Tables and images leave back-reference tokens inline in the
// page text so the linker can re-attach them to chunks later.
//
// Any internal failure is returned as an error, which makes the Router fall
// through to the PlainPDF attempt.
type LayoutPDF struct {
	ImagesDir string
	Logger    *slog.Logger
}

func (e *LayoutPDF) Extract(name string, data []byte) (*Outcome, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fileStem := stem(name)
	var blocks []string
	var tables []Table
	var images []ImageRef

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		items := extractPositionedText(ctx, pageNr)

		pageTables := detectTables(items, pageNr)
		for _, t := range pageTables {
			blocks = append(blocks, t.Token(fileStem))
		}
		tables = append(tables, pageTables...)

		if text := layoutText(items); text != "" {
			blocks = append(blocks, fmt.Sprintf("[Page %d]\n%s", pageNr, text))
		}

		pageImages, err := e.extractPageImages(ctx, pageNr, fileStem, logger)
		if err != nil {
			return nil, err
		}
		for _, im := range pageImages {
			blocks = append(blocks, im.Token())
		}
		images = append(images, pageImages...)
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no content found in PDF")
	}

	return &Outcome{
		Success:  true,
		FileType: TypePDF,
		Content:  strings.Join(blocks, "\n\n"),
		Tables:   tables,
		Images:   images,
		Metadata: map[string]string{
			"processing_method": "pdfcpu_layout",
			"page_count":        strconv.Itoa(ctx.PageCount),
			"has_tables":        strconv.FormatBool(len(tables) > 0),
			"has_images":        strconv.FormatBool(len(images) > 0),
		},
	}, nil
}

// extractPageImages writes each 3- or 4-channel raster image on the page to
// ImagesDir as <stem>_page<N>_img<K>.png, K counting 1-based over the page's
// image list. Images the standard decoders cannot handle are skipped, which
// leaves gaps in K exactly like skipped channel counts do.
func (e *LayoutPDF) extractPageImages(ctx *model.Context, pageNr int, fileStem string, logger *slog.Logger) ([]ImageRef, error) {
	imgs, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("extract images page %d: %w", pageNr, err)
	}
	if len(imgs) == 0 {
		return nil, nil
	}

	objNrs := make([]int, 0, len(imgs))
	for objNr := range imgs {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	var refs []ImageRef
	for k, objNr := range objNrs {
		img := imgs[objNr]
		raw, err := io.ReadAll(img)
		if err != nil || len(raw) == 0 {
			logger.Debug("unreadable image stream", "page", pageNr, "obj", objNr)
			continue
		}

		decoded, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			logger.Debug("undecodable image", "page", pageNr, "obj", objNr, "err", err)
			continue
		}
		if !hasColorChannels(decoded.ColorModel()) {
			continue
		}

		if err := os.MkdirAll(e.ImagesDir, 0755); err != nil {
			return nil, fmt.Errorf("create images dir: %w", err)
		}
		filename := fmt.Sprintf("%s_page%d_img%d.png", fileStem, pageNr, k+1)
		path := filepath.Join(e.ImagesDir, filename)
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("write image %s: %w", filename, err)
		}
		if err := png.Encode(f, decoded); err != nil {
			f.Close()
			return nil, fmt.Errorf("encode image %s: %w", filename, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}

		refs = append(refs, ImageRef{Path: path, Page: pageNr, Index: k})
	}
	return refs, nil
}

// hasColorChannels reports whether the color model carries 3 or 4 channels
// (RGB, RGBA, YCbCr, CMYK). Grayscale and paletted images are skipped.
func hasColorChannels(m color.Model) bool {
	switch m {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model,
		color.YCbCrModel, color.CMYKModel:
		return true
	}
	return false
}

// posText is one positioned text run from a content stream.
type posText struct {
	X, Y float64
	Text string
}

// extractPositionedText scans a page's content stream tracking the text
// position operators (Tm, Td, TD, T*) so each shown string carries
// approximate page coordinates. Returns nil when the stream is empty or
// unreadable; a page without text is not an error.
func extractPositionedText(ctx *model.Context, pageNr int) []posText {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	return scanContentStream(data)
}

// defaultLeading approximates the vertical advance of T* and ' when the
// stream never sets one explicitly.
const defaultLeading = 12.0

// scanContentStream walks PDF content stream tokens, keeping enough of the
// text state (current position, leading) to attribute coordinates to every
// Tj/TJ/' string. It is a heuristic, not a full interpreter: scale and
// rotation components of Tm are ignored, which is adequate for the
// row/column clustering done on the result.
func scanContentStream(data []byte) []posText {
	var items []posText
	var x, y float64
	leading := defaultLeading

	// Operand stack for the operator being assembled.
	var nums []float64
	var strs []string

	flushText := func() {
		if len(strs) == 0 {
			return
		}
		text := cleanStreamText(strings.Join(strs, ""))
		if text != "" {
			items = append(items, posText{X: x, Y: y, Text: text})
		}
		strs = nil
	}
	reset := func() {
		nums = nil
		strs = nil
	}

	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == '(':
			s, next := parseLiteralString(data, i)
			strs = append(strs, s)
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] != '<':
			s, next := parseHexString(data, i)
			strs = append(strs, s)
			i = next
		case c == '[' || c == ']':
			// TJ arrays: the kerning numbers between strings are ignored.
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			n, next := parseNumber(data, i)
			nums = append(nums, n)
			i = next
		case isStreamDelim(c):
			i++
		default:
			op, next := parseOperator(data, i)
			i = next
			switch op {
			case "Tm":
				if len(nums) >= 6 {
					x = nums[len(nums)-2]
					y = nums[len(nums)-1]
				}
			case "Td":
				if len(nums) >= 2 {
					x += nums[len(nums)-2]
					y += nums[len(nums)-1]
				}
			case "TD":
				if len(nums) >= 2 {
					x += nums[len(nums)-2]
					y += nums[len(nums)-1]
					leading = -nums[len(nums)-1]
					if leading <= 0 {
						leading = defaultLeading
					}
				}
			case "TL":
				if len(nums) >= 1 && nums[len(nums)-1] > 0 {
					leading = nums[len(nums)-1]
				}
			case "T*":
				y -= leading
			case "BT":
				x, y = 0, 0
			case "Tj", "TJ":
				flushText()
			case "'", "\"":
				y -= leading
				flushText()
			}
			reset()
		}
	}
	return items
}

func isStreamDelim(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '/'
}

// parseLiteralString reads a (...) string starting at i, handling escapes
// and balanced nested parentheses. Returns the decoded text and the index
// past the closing paren.
func parseLiteralString(data []byte, i int) (string, int) {
	var sb strings.Builder
	depth := 1
	i++
	for i < len(data) && depth > 0 {
		c := data[i]
		switch c {
		case '\\':
			if i+1 < len(data) {
				i++
				switch data[i] {
				case 'n':
					sb.WriteByte('\n')
				case 'r':
					sb.WriteByte('\r')
				case 't':
					sb.WriteByte('\t')
				case '\\', '(', ')':
					sb.WriteByte(data[i])
				default:
					if data[i] >= '0' && data[i] <= '7' {
						val := int(data[i] - '0')
						for n := 0; n < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; n++ {
							i++
							val = val*8 + int(data[i]-'0')
						}
						sb.WriteByte(byte(val))
					} else {
						sb.WriteByte(data[i])
					}
				}
			}
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth > 0 {
				sb.WriteByte(c)
			}
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String(), i
}

// parseHexString reads a <...> string starting at i, decoding hex byte
// pairs. Multi-byte font encodings come out as garbage here; the printable
// filter in cleanStreamText drops them.
func parseHexString(data []byte, i int) (string, int) {
	var sb strings.Builder
	i++
	var hi byte
	haveHi := false
	for i < len(data) && data[i] != '>' {
		c := data[i]
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			i++
			continue
		}
		if haveHi {
			sb.WriteByte(hi<<4 | v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
		i++
	}
	if i < len(data) {
		i++ // skip '>'
	}
	return sb.String(), i
}

func parseNumber(data []byte, i int) (float64, int) {
	start := i
	if data[i] == '-' || data[i] == '+' {
		i++
	}
	for i < len(data) && (data[i] == '.' || (data[i] >= '0' && data[i] <= '9')) {
		i++
	}
	n, err := strconv.ParseFloat(string(data[start:i]), 64)
	if err != nil {
		return 0, i
	}
	return n, i
}

func parseOperator(data []byte, i int) (string, int) {
	start := i
	for i < len(data) && !isStreamDelim(data[i]) &&
		data[i] != '(' && data[i] != '<' && data[i] != '[' && data[i] != ']' && data[i] != '%' {
		i++
	}
	if i == start {
		return "", i + 1
	}
	return string(data[start:i]), i
}

// cleanStreamText keeps printable runes, collapsing runs of whitespace.
func cleanStreamText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case strconv.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

// Row/column clustering tolerances in user-space units.
const (
	rowTolerance = 3.0
	colTolerance = 6.0
)

// textRow is a baseline-clustered line of positioned runs, sorted by X.
type textRow struct {
	y     float64
	items []posText
}

// clusterRows groups positioned runs into rows by Y coordinate.
// Rows come back top-to-bottom (descending Y), items left-to-right.
func clusterRows(items []posText) []textRow {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]posText, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows []textRow
	for _, it := range sorted {
		if len(rows) > 0 && math.Abs(rows[len(rows)-1].y-it.Y) <= rowTolerance {
			rows[len(rows)-1].items = append(rows[len(rows)-1].items, it)
			continue
		}
		rows = append(rows, textRow{y: it.Y, items: []posText{it}})
	}
	for i := range rows {
		sort.SliceStable(rows[i].items, func(a, b int) bool {
			return rows[i].items[a].X < rows[i].items[b].X
		})
	}
	return rows
}

// layoutText renders positioned runs back into reading-ordered plain text.
func layoutText(items []posText) string {
	rows := clusterRows(items)
	var lines []string
	for _, row := range rows {
		parts := make([]string, len(row.items))
		for i, it := range row.items {
			parts[i] = it.Text
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// detectTables finds grid candidates on a page: maximal runs of adjacent
// rows that each carry at least two runs whose X positions align into
// shared columns. Each candidate grid is pruned of fully empty rows and
// columns and kept only if a data row remains beyond the header.
func detectTables(items []posText, pageNr int) []Table {
	rows := clusterRows(items)

	var tables []Table
	run := make([]textRow, 0, len(rows))
	flush := func() {
		if len(run) >= 2 {
			if t, ok := buildTable(run, pageNr, len(tables)); ok {
				tables = append(tables, t)
			}
		}
		run = run[:0]
	}
	for _, row := range rows {
		if len(row.items) >= 2 {
			run = append(run, row)
			continue
		}
		flush()
	}
	flush()
	return tables
}

// buildTable assembles a grid from a run of multi-cell rows.
func buildTable(run []textRow, pageNr, index int) (Table, bool) {
	cols := clusterColumns(run)
	if len(cols) < 2 {
		return Table{}, false
	}

	grid := make([][]string, len(run))
	for i, row := range run {
		grid[i] = make([]string, len(cols))
		for _, it := range row.items {
			c := nearestColumn(cols, it.X)
			if grid[i][c] != "" {
				grid[i][c] += " "
			}
			grid[i][c] += it.Text
		}
	}

	grid = pruneEmptyRows(grid)
	grid = pruneEmptyColumns(grid)
	// Header plus at least one data row must survive pruning.
	if len(grid) < 2 || len(grid[0]) < 2 {
		return Table{}, false
	}

	bbox := Rect{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for _, row := range run {
		for _, it := range row.items {
			bbox.X0 = math.Min(bbox.X0, it.X)
			bbox.Y0 = math.Min(bbox.Y0, it.Y)
			bbox.X1 = math.Max(bbox.X1, it.X)
			bbox.Y1 = math.Max(bbox.Y1, it.Y)
		}
	}

	return Table{Page: pageNr, Index: index, BBox: bbox, Grid: grid}, true
}

// clusterColumns derives column center positions shared across a run of rows.
func clusterColumns(run []textRow) []float64 {
	var xs []float64
	for _, row := range run {
		for _, it := range row.items {
			xs = append(xs, it.X)
		}
	}
	sort.Float64s(xs)

	var cols []float64
	for _, x := range xs {
		if len(cols) > 0 && x-cols[len(cols)-1] <= colTolerance {
			// Merge into the existing column center.
			cols[len(cols)-1] = (cols[len(cols)-1] + x) / 2
			continue
		}
		cols = append(cols, x)
	}
	return cols
}

func nearestColumn(cols []float64, x float64) int {
	best := 0
	bestDist := math.Abs(cols[0] - x)
	for i := 1; i < len(cols); i++ {
		if d := math.Abs(cols[i] - x); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

func pruneEmptyRows(grid [][]string) [][]string {
	out := grid[:0]
	for _, row := range grid {
		empty := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

func pruneEmptyColumns(grid [][]string) [][]string {
	if len(grid) == 0 {
		return grid
	}
	width := len(grid[0])
	keep := make([]bool, width)
	for c := 0; c < width; c++ {
		for _, row := range grid {
			if c < len(row) && strings.TrimSpace(row[c]) != "" {
				keep[c] = true
				break
			}
		}
	}
	out := make([][]string, len(grid))
	for i, row := range grid {
		for c, cell := range row {
			if keep[c] {
				out[i] = append(out[i], cell)
			}
		}
	}
	return out
}
