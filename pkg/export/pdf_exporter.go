package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfCellLimit  = 60
	pdfFont       = "Helvetica"
	pdfRowHeight  = 7.0
	pdfHeadHeight = 8.0
)

// PDFExporter lays datasets out as a landscape A4 table with a paged footer.
type PDFExporter struct {
	now func() time.Time
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Extension() string { return FormatPDF }

// Render produces the document bytes.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf export: no columns")
	}

	doc := gofpdf.New("L", "mm", "A4", "")
	doc.SetMargins(10, 15, 10)
	doc.SetAutoPageBreak(true, 15)
	latin := doc.UnicodeTranslatorFromDescriptor("")
	clock := e.now
	if clock == nil {
		clock = time.Now
	}
	generated := clock().UTC().Format(time.RFC1123)
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont(pdfFont, "I", 8)
		doc.CellFormat(0, 6, fmt.Sprintf("Generated %s - page %d", generated, doc.PageNo()), "", 0, "R", false, 0, "")
	})

	widths := columnWidths(doc, len(data.Headers))
	header := func() {
		doc.SetFont(pdfFont, "B", 10)
		doc.SetFillColor(230, 236, 245)
		for i, col := range data.Headers {
			doc.CellFormat(widths[i], pdfHeadHeight, latin(col), "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont(pdfFont, "", 9)
	}
	doc.SetHeaderFunc(func() {
		if doc.PageNo() > 1 {
			header()
		}
	})

	doc.AddPage()
	if data.Title != "" {
		doc.SetFont(pdfFont, "B", 14)
		doc.CellFormat(0, 10, latin(data.Title), "", 1, "L", false, 0, "")
		doc.Ln(3)
	}
	header()
	for _, row := range data.Rows {
		for i, col := range data.Headers {
			doc.CellFormat(widths[i], pdfRowHeight, latin(truncate(row[col], pdfCellLimit)), "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}

	var out bytes.Buffer
	if err := doc.Output(&out); err != nil {
		return nil, fmt.Errorf("pdf export: %w", err)
	}
	return out.Bytes(), nil
}

func columnWidths(doc *gofpdf.Fpdf, columns int) []float64 {
	pageWidth, _ := doc.GetPageSize()
	left, _, right, _ := doc.GetMargins()
	each := (pageWidth - left - right) / float64(columns)
	widths := make([]float64, columns)
	for i := range widths {
		widths[i] = each
	}
	return widths
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
