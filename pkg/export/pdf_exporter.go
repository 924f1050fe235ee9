package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// numericColumns lists header names that hold money or quantities and
// should be right-aligned in billing documents.
var numericColumns = map[string]bool{
	"Amount":   true,
	"Rate":     true,
	"Quantity": true,
	"Balance":  true,
}

// PDFExporter renders datasets into billing-style PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with a title band, a shaded table and a
// generation footer.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6,
			fmt.Sprintf("Generated %s  -  page %d", time.Now().UTC().Format("2006-01-02 15:04 UTC"), pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.SetFillColor(235, 240, 248)
		pdf.CellFormat(0, 10, title, "", 1, "C", true, 0, "")
		pdf.Ln(4)
	}

	colWidth := 190.0 / float64(len(data.Headers))

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(220, 226, 235)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetFillColor(247, 249, 252)
	for i, row := range data.Rows {
		shade := i%2 == 1
		for _, header := range data.Headers {
			align := "L"
			if numericColumns[header] {
				align = "R"
			}
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, align, shade, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
