package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	portraitWidth     = 190.0
	landscapeWidth    = 277.0
	landscapeColumns  = 5
	lineHeight        = 5.0
	headerCellHeight  = 8.0
	minimumCellHeight = 7.0
)

// PDFExporter renders datasets into a tabular PDF. Wide tables such as a
// weekly grid switch to landscape A4.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title, the table body and any notes.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	orientation, width := "P", portraitWidth
	if len(data.Headers) > landscapeColumns {
		orientation, width = "L", landscapeWidth
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	colWidth := width / float64(len(data.Headers))
	pdf.SetFont("Arial", "B", 10)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, headerCellHeight, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		// Cells may hold several sessions, so every column of a row is
		// drawn at the height of its tallest wrapped cell.
		height := minimumCellHeight
		wrapped := make([][]string, len(data.Headers))
		for i, header := range data.Headers {
			lines := pdf.SplitLines([]byte(row[header]), colWidth-2)
			wrapped[i] = make([]string, len(lines))
			for j, line := range lines {
				wrapped[i][j] = string(line)
			}
			if h := float64(len(lines)) * lineHeight; h > height {
				height = h
			}
		}
		_, pageHeight := pdf.GetPageSize()
		_, _, _, bottom := pdf.GetMargins()
		if pdf.GetY()+height > pageHeight-bottom {
			pdf.AddPage()
		}
		x, y := pdf.GetXY()
		for i := range data.Headers {
			pdf.Rect(x+float64(i)*colWidth, y, colWidth, height, "D")
			pdf.SetXY(x+float64(i)*colWidth+1, y+1)
			pdf.MultiCell(colWidth-2, lineHeight, strings.Join(wrapped[i], "\n"), "", "L", false)
		}
		pdf.SetXY(x, y+height)
	}

	if len(data.Notes) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 8)
		for _, note := range data.Notes {
			pdf.MultiCell(0, lineHeight, note, "", "L", false)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
