package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/go-pdf/fpdf"
)

// Page geometry, in millimetres (A4 portrait).
const (
	pageWidth          = 210.0
	pageHeight         = 297.0
	marginSide         = 18.0
	marginBottom       = 22.0
	contentWidth       = pageWidth - 2*marginSide
	cellPad            = 1.0
	fieldLabelWidth    = 50.0
	imageGap           = 6.0
	imageMaxHeight     = 65.0
	missingImageHeight = 40.0
	headerLineHeight   = 3.8
)

// DocumentDate is the creation date written into every PDF. It is fixed so
// that the same report always produces the same bytes.
var DocumentDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// =============================================================================
// PDF Renderer
// =============================================================================

// PDFRenderer lays report HTML out on A4 pages with go-pdf/fpdf.
type PDFRenderer struct {
	fonts  *Fonts
	logger *slog.Logger
}

// NewPDFRenderer creates a renderer embedding fonts. With nil fonts the PDF
// core Helvetica faces are used, which cover Western European text.
func NewPDFRenderer(fonts *Fonts, logger *slog.Logger) *PDFRenderer {
	return &PDFRenderer{fonts: fonts, logger: logger}
}

// Engine returns "fpdf".
func (r *PDFRenderer) Engine() string {
	return "fpdf"
}

// Render parses htmlDoc and writes it out page by page.
func (r *PDFRenderer) Render(ctx context.Context, htmlDoc string, letterhead domain.Letterhead, images map[string]ImageData) ([]byte, error) {
	doc, err := parseLayout(htmlDoc)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	w := r.newWriter(pdf, images)

	pdf.SetTitle(doc.title, true)
	pdf.SetAuthor(letterhead.ServiceName, true)
	pdf.SetCreator("constat", true)
	pdf.SetCreationDate(DocumentDate)
	pdf.SetModificationDate(DocumentDate)
	pdf.SetCatalogSort(true)
	pdf.AliasNbPages("{nb}")
	pdf.SetCellMargin(cellPad)

	top := w.setupHeader(letterhead)
	w.setupFooter(letterhead)
	pdf.SetMargins(marginSide, top, marginSide)
	pdf.SetAutoPageBreak(true, marginBottom)
	w.top = top

	pdf.AddPage()
	for _, b := range doc.blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w.draw(b)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("pdf generation error: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output error: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) newWriter(pdf *fpdf.Fpdf, images map[string]ImageData) *pdfWriter {
	w := &pdfWriter{
		pdf:        pdf,
		images:     images,
		registered: make(map[string]*fpdf.ImageInfoType),
		logger:     r.logger,
	}
	if r.fonts != nil {
		pdf.AddUTF8FontFromBytes(r.fonts.Family, "", r.fonts.Regular)
		pdf.AddUTF8FontFromBytes(r.fonts.Family, "B", r.fonts.Bold)
		pdf.AddUTF8FontFromBytes(r.fonts.Family, "I", r.fonts.Italic)
		w.family = r.fonts.Family
		w.utf8 = true
		w.tr = func(s string) string { return s }
	} else {
		w.family = "Helvetica"
		w.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	return w
}

// =============================================================================
// Writer
// =============================================================================

// pdfWriter draws layout blocks. Text goes through tr before measuring so
// that widths are computed on the bytes actually written.
type pdfWriter struct {
	pdf        *fpdf.Fpdf
	family     string
	utf8       bool
	tr         func(string) string
	images     map[string]ImageData
	registered map[string]*fpdf.ImageInfoType
	top        float64
	logger     *slog.Logger
}

func lineHeight(size float64) float64 {
	return size * 0.3528 * 1.35
}

func (w *pdfWriter) font(style string, size float64) {
	w.pdf.SetFont(w.family, style, size)
}

func (w *pdfWriter) textColor(hex string) {
	w.pdf.SetTextColor(HexToRGB(hex))
}

func (w *pdfWriter) drawColor(hex string) {
	w.pdf.SetDrawColor(HexToRGB(hex))
}

func (w *pdfWriter) trigger() float64 {
	return pageHeight - marginBottom
}

// ensureSpace starts a new page when h does not fit below the cursor.
// Content taller than a whole page is drawn where it is.
func (w *pdfWriter) ensureSpace(h float64) {
	if w.pdf.GetY()+h > w.trigger() && h <= w.trigger()-w.top {
		w.pdf.AddPage()
	}
}

// wrap splits text into lines no wider than width using the current font.
func (w *pdfWriter) wrap(text string, width float64) []string {
	text = w.tr(text)
	avail := width - 2*cellPad
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := ""
		for _, word := range words {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if w.pdf.GetStringWidth(candidate) <= avail {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			line = word
			for w.pdf.GetStringWidth(line) > avail {
				head, rest := w.splitWord(line, avail)
				lines = append(lines, head)
				line = rest
			}
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

// splitWord cuts a word too long for a line. Core fonts work on single-byte
// text, embedded fonts on UTF-8.
func (w *pdfWriter) splitWord(word string, avail float64) (string, string) {
	cut := 0
	for i := 0; i < len(word); {
		size := 1
		if w.utf8 {
			_, size = utf8.DecodeRuneInString(word[i:])
		}
		if cut > 0 && w.pdf.GetStringWidth(word[:i+size]) > avail {
			break
		}
		i += size
		cut = i
	}
	return word[:cut], word[cut:]
}

// printLines writes already wrapped lines from (x, y) downwards.
func (w *pdfWriter) printLines(x, y, width, lh float64, lines []string, align string) {
	for i, line := range lines {
		w.pdf.SetXY(x, y+float64(i)*lh)
		w.pdf.CellFormat(width, lh, line, "", 0, align, false, 0, "")
	}
}

// =============================================================================
// Header and Footer
// =============================================================================

// setupHeader installs the running letterhead and returns the top margin it
// needs.
func (w *pdfWriter) setupHeader(l domain.Letterhead) float64 {
	lines := l.HeaderLines()
	contact := l.ContactLine()

	height := float64(len(lines)) * headerLineHeight
	if contact != "" {
		height += headerLineHeight
	}

	w.pdf.SetHeaderFuncMode(func() {
		w.pdf.SetXY(marginSide, 8)
		w.font("B", 8)
		w.textColor(Colors.BlueFrance)
		for _, line := range lines {
			w.pdf.CellFormat(contentWidth, headerLineHeight, w.tr(line), "", 2, "L", false, 0, "")
		}
		if contact != "" {
			w.font("", 7)
			w.textColor(Colors.TextMuted)
			w.pdf.CellFormat(contentWidth, headerLineHeight, w.tr(contact), "", 2, "L", false, 0, "")
		}
		y := 8 + height + 1.5
		w.drawColor(Colors.BlueFrance)
		w.pdf.SetLineWidth(0.3)
		w.pdf.Line(marginSide, y, pageWidth-marginSide, y)
		w.textColor(Colors.TextDark)
	}, true)

	return 8 + height + 6
}

// setupFooter installs the statutory text and "Page N / M".
func (w *pdfWriter) setupFooter(l domain.Letterhead) {
	footer := l.FooterText
	w.pdf.SetFooterFunc(func() {
		y := pageHeight - 16
		w.drawColor(Colors.Border)
		w.pdf.SetLineWidth(0.2)
		w.pdf.Line(marginSide, y-2, pageWidth-marginSide, y-2)

		w.font("", 7)
		w.textColor(Colors.TextMuted)
		w.pdf.SetXY(pageWidth-marginSide-30, y)
		w.pdf.CellFormat(30, 3.5, fmt.Sprintf("Page %d / {nb}", w.pdf.PageNo()), "", 0, "R", false, 0, "")

		lines := w.wrap(footer, contentWidth-32)
		if len(lines) > 3 {
			lines = lines[:3]
		}
		w.printLines(marginSide, y, contentWidth-32, 3.5, lines, "L")
	})
}

// =============================================================================
// Blocks
// =============================================================================

func headingStyle(level int) (size, before, after float64, color string) {
	switch level {
	case 1:
		return 18, 0, 2, Colors.BlueFrance
	case 2:
		return 13, 4, 3, Colors.BlueFrance
	default:
		return 11, 3, 1.5, Colors.TextDark
	}
}

// measure returns the height b will take, without drawing it.
func (w *pdfWriter) measure(b block) float64 {
	switch b.kind {
	case blockHeading:
		size, before, after, _ := headingStyle(b.level)
		w.font("B", size)
		return before + float64(len(w.wrap(b.text, contentWidth)))*lineHeight(size) + after
	case blockParagraph:
		w.font("", 10)
		return float64(len(w.wrap(b.text, contentWidth)))*lineHeight(10) + 2
	case blockFields:
		h := 2.0
		for _, f := range b.fields {
			h += w.fieldHeight(f)
		}
		return h
	case blockList:
		w.font("", 10)
		h := 2.0
		for _, item := range b.items {
			h += float64(len(w.wrap(item, contentWidth-6)))*lineHeight(10) + 0.5
		}
		return h
	case blockTable:
		widths := columnWidths(b)
		h := 3.0
		if len(b.header) > 0 {
			h += w.rowHeight(b.header, widths, "B")
		}
		for _, row := range b.rows {
			h += w.rowHeight(row, widths, "")
		}
		return h
	case blockImages:
		h := 0.0
		for i := 0; i < len(b.figures); i += 2 {
			h += w.figureRowHeight(b.figures[i:min(i+2, len(b.figures))])
		}
		return h
	case blockGroup:
		h := 0.0
		for _, c := range b.children {
			h += w.measure(c)
		}
		return h
	}
	return 0
}

func (w *pdfWriter) draw(b block) {
	w.pdf.SetX(marginSide)
	switch b.kind {
	case blockHeading:
		w.drawHeading(b)
	case blockParagraph:
		w.font("", 10)
		w.textColor(Colors.TextDark)
		lh := lineHeight(10)
		for _, line := range w.wrap(b.text, contentWidth) {
			w.pdf.SetX(marginSide)
			w.pdf.CellFormat(contentWidth, lh, line, "", 2, "L", false, 0, "")
		}
		w.pdf.Ln(2)
	case blockFields:
		for _, f := range b.fields {
			w.drawField(f)
		}
		w.pdf.Ln(2)
	case blockList:
		w.drawList(b)
	case blockTable:
		w.drawTable(b)
	case blockImages:
		for i := 0; i < len(b.figures); i += 2 {
			w.drawFigureRow(b.figures[i:min(i+2, len(b.figures))])
		}
	case blockGroup:
		w.ensureSpace(w.measure(b))
		for _, c := range b.children {
			w.draw(c)
		}
	}
}

func (w *pdfWriter) drawHeading(b block) {
	size, before, after, color := headingStyle(b.level)
	w.font("B", size)
	lines := w.wrap(b.text, contentWidth)
	lh := lineHeight(size)
	// keep at least two lines of body text with the heading
	w.ensureSpace(before + float64(len(lines))*lh + after + 2*lineHeight(10))

	if w.pdf.GetY() > w.top+0.1 {
		w.pdf.Ln(before)
	}
	w.textColor(color)
	for _, line := range lines {
		w.pdf.SetX(marginSide)
		w.pdf.CellFormat(contentWidth, lh, line, "", 2, "L", false, 0, "")
	}
	if b.level == 2 {
		y := w.pdf.GetY() + 0.5
		w.drawColor(Colors.BlueFrance)
		w.pdf.SetLineWidth(0.3)
		w.pdf.Line(marginSide, y, pageWidth-marginSide, y)
	}
	w.pdf.Ln(after)
	w.textColor(Colors.TextDark)
}

func (w *pdfWriter) fieldHeight(f field) float64 {
	w.font("B", 10)
	labelLines := len(w.wrap(f.Label, fieldLabelWidth))
	w.font("", 10)
	valueLines := len(w.wrap(f.Value, contentWidth-fieldLabelWidth))
	return float64(max(labelLines, valueLines))*lineHeight(10) + 1
}

func (w *pdfWriter) drawField(f field) {
	h := w.fieldHeight(f)
	w.ensureSpace(h)
	y := w.pdf.GetY()
	lh := lineHeight(10)

	w.font("B", 10)
	w.textColor(Colors.TextDark)
	w.printLines(marginSide, y, fieldLabelWidth, lh, w.wrap(f.Label, fieldLabelWidth), "L")
	w.font("", 10)
	w.printLines(marginSide+fieldLabelWidth, y, contentWidth-fieldLabelWidth, lh, w.wrap(f.Value, contentWidth-fieldLabelWidth), "L")
	w.pdf.SetXY(marginSide, y+h)
}

func (w *pdfWriter) drawList(b block) {
	w.font("", 10)
	w.textColor(Colors.TextDark)
	lh := lineHeight(10)
	for _, item := range b.items {
		lines := w.wrap(item, contentWidth-6)
		w.ensureSpace(float64(len(lines)) * lh)
		y := w.pdf.GetY()
		w.pdf.SetXY(marginSide, y)
		w.pdf.CellFormat(6, lh, w.tr("•"), "", 0, "L", false, 0, "")
		w.printLines(marginSide+6, y, contentWidth-6, lh, lines, "L")
		w.pdf.SetXY(marginSide, y+float64(len(lines))*lh+0.5)
	}
	w.pdf.Ln(2)
}

// columnWidths sizes table columns. Four-column tables are the visited
// sections table, whose last column holds long comments.
func columnWidths(b block) []float64 {
	n := len(b.header)
	for _, row := range b.rows {
		n = max(n, len(row))
	}
	if n == 0 {
		return nil
	}
	if n == 4 {
		return []float64{contentWidth * 0.24, contentWidth * 0.18, contentWidth * 0.16, contentWidth * 0.42}
	}
	widths := make([]float64, n)
	for i := range widths {
		widths[i] = contentWidth / float64(n)
	}
	return widths
}

func (w *pdfWriter) rowHeight(cells []string, widths []float64, style string) float64 {
	w.font(style, 9)
	lines := 1
	for i, cell := range cells {
		if i < len(widths) {
			lines = max(lines, len(w.wrap(cell, widths[i])))
		}
	}
	return float64(lines)*lineHeight(9) + 2*cellPad
}

func (w *pdfWriter) drawRow(cells []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	h := w.rowHeight(cells, widths, style)
	y := w.pdf.GetY()
	x := marginSide

	w.drawColor(Colors.Border)
	w.pdf.SetLineWidth(0.2)
	w.pdf.SetFillColor(HexToRGB(Colors.Background))
	w.textColor(Colors.TextDark)
	for i, width := range widths {
		if header {
			w.pdf.Rect(x, y, width, h, "FD")
		} else {
			w.pdf.Rect(x, y, width, h, "D")
		}
		if i < len(cells) {
			w.font(style, 9)
			w.printLines(x, y+cellPad, width, lineHeight(9), w.wrap(cells[i], width), "L")
		}
		x += width
	}
	w.pdf.SetXY(marginSide, y+h)
}

// drawTable never splits a row across pages. The header row is repeated on
// every page the table spans.
func (w *pdfWriter) drawTable(b block) {
	widths := columnWidths(b)
	if widths == nil {
		return
	}

	first := 0.0
	if len(b.header) > 0 {
		first += w.rowHeight(b.header, widths, "B")
	}
	if len(b.rows) > 0 {
		first += w.rowHeight(b.rows[0], widths, "")
	}
	w.ensureSpace(first)
	if len(b.header) > 0 {
		w.drawRow(b.header, widths, true)
	}

	for _, row := range b.rows {
		h := w.rowHeight(row, widths, "")
		if w.pdf.GetY()+h > w.trigger() {
			w.pdf.AddPage()
			if len(b.header) > 0 {
				w.drawRow(b.header, widths, true)
			}
		}
		w.drawRow(row, widths, false)
	}
	w.pdf.Ln(3)
}

// =============================================================================
// Images
// =============================================================================

// image registers the photo for id once and returns its info, or nil when
// the photo is unavailable or cannot be decoded.
func (w *pdfWriter) image(id string) *fpdf.ImageInfoType {
	if info, ok := w.registered[id]; ok {
		return info
	}
	w.registered[id] = nil

	img, ok := w.images[id]
	if !ok || len(img.Data) == 0 {
		return nil
	}
	info := w.pdf.RegisterImageOptionsReader(id, fpdf.ImageOptions{ImageType: imageType(img.ContentType)}, bytes.NewReader(img.Data))
	if w.pdf.Err() {
		w.logger.Warn("failed to embed image in pdf", "attachment_id", id, "error", w.pdf.Error())
		w.pdf.ClearError()
		return nil
	}
	if info == nil || info.Width() <= 0 || info.Height() <= 0 {
		return nil
	}
	w.registered[id] = info
	return info
}

func imageType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	default:
		return "JPG"
	}
}

func figureColumnWidth() float64 {
	return (contentWidth - imageGap) / 2
}

// figureSize returns the drawn size of a figure's image.
func (w *pdfWriter) figureSize(f figure) (width, height float64, ok bool) {
	colW := figureColumnWidth()
	info := w.image(f.ID)
	if info == nil {
		return colW, missingImageHeight, false
	}
	iw, ih := info.Width(), info.Height()
	width, height = colW, colW*ih/iw
	if height > imageMaxHeight {
		height = imageMaxHeight
		width = height * iw / ih
	}
	return width, height, true
}

func (w *pdfWriter) figureRowHeight(figs []figure) float64 {
	imgH, capH := 0.0, 0.0
	for _, f := range figs {
		_, h, _ := w.figureSize(f)
		imgH = max(imgH, h)
		w.font("I", 8)
		capH = max(capH, float64(len(w.wrap(f.Caption, figureColumnWidth())))*lineHeight(8))
	}
	return imgH + 1 + capH + 4
}

func (w *pdfWriter) drawFigureRow(figs []figure) {
	h := w.figureRowHeight(figs)
	w.ensureSpace(h)
	y := w.pdf.GetY()
	colW := figureColumnWidth()

	imgH := 0.0
	for _, f := range figs {
		_, fh, _ := w.figureSize(f)
		imgH = max(imgH, fh)
	}

	for i, f := range figs {
		x := marginSide + float64(i)*(colW+imageGap)
		fw, fh, ok := w.figureSize(f)
		if ok {
			img := w.images[f.ID]
			w.pdf.ImageOptions(f.ID, x+(colW-fw)/2, y, fw, fh, false,
				fpdf.ImageOptions{ImageType: imageType(img.ContentType)}, 0, "")
		} else {
			w.drawColor(Colors.Border)
			w.pdf.SetLineWidth(0.2)
			w.pdf.Rect(x, y, colW, fh, "D")
			w.font("I", 9)
			w.textColor(Colors.TextMuted)
			w.pdf.SetXY(x, y+fh/2-2)
			w.pdf.CellFormat(colW, 4, w.tr("image indisponible"), "", 0, "C", false, 0, "")
		}
		w.font("I", 8)
		w.textColor(Colors.TextMuted)
		w.printLines(x, y+imgH+1, colW, lineHeight(8), w.wrap(f.Caption, colW), "C")
	}
	w.textColor(Colors.TextDark)
	w.pdf.SetXY(marginSide, y+h)
}
