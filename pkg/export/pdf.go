package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/go-pdf/fpdf"
)

const (
	marginLeft   = 15.0
	marginTop    = 15.0
	marginRight  = 15.0
	marginBottom = 15.0
)

// PDFReport holds what goes into a forecast PDF.
type PDFReport struct {
	Title     string
	Forecast  *brief.Forecast
	Audiences []brief.Audience
	Duration  int
	Generated time.Time
}

// ForecastPDF renders one table per preset followed by the selected audiences.
func ForecastPDF(w io.Writer, r PDFReport) error {
	if r.Duration <= 0 {
		r.Duration = DefaultDuration
	}
	if r.Title == "" {
		r.Title = "Forecast"
	}
	if r.Generated.IsZero() {
		r.Generated = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetTitle(r.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - marginLeft - marginRight

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(contentWidth, 10, tr(r.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "I", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(contentWidth, 6, fmt.Sprintf("Generated: %s", r.Generated.Format("2 January 2006")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	geoWidth := contentWidth * 0.4
	numWidth := contentWidth * 0.3
	if r.Forecast != nil {
		for _, p := range r.Forecast.Presets {
			pdf.SetFont("Arial", "B", 12)
			pdf.SetTextColor(0, 51, 102)
			pdf.CellFormat(contentWidth, 8, tr(fmt.Sprintf("%s (%d days)", p.Preset, r.Duration)), "", 1, "L", false, 0, "")

			pdf.SetFillColor(245, 247, 250)
			pdf.SetDrawColor(200, 200, 200)
			pdf.SetFont("Arial", "B", 9)
			pdf.SetTextColor(50, 50, 50)
			pdf.CellFormat(geoWidth, 7, ForecastHeader[0], "1", 0, "L", true, 0, "")
			pdf.CellFormat(numWidth, 7, "User Reach (Mn)", "1", 0, "R", true, 0, "")
			pdf.CellFormat(numWidth, 7, "Impressions (Mn)", "1", 1, "R", true, 0, "")

			pdf.SetFont("Arial", "", 9)
			for _, row := range p.Rows {
				pdf.CellFormat(geoWidth, 6, tr(row.Geo), "1", 0, "L", false, 0, "")
				pdf.CellFormat(numWidth, 6, Number(row.User), "1", 0, "R", false, 0, "")
				pdf.CellFormat(numWidth, 6, Number(row.Impr), "1", 1, "R", false, 0, "")
			}
			pdf.Ln(5)
		}
	}

	if len(r.Audiences) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(0, 51, 102)
		pdf.CellFormat(contentWidth, 8, "Selected audiences", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(50, 50, 50)
		for _, a := range r.Audiences {
			name := a.Name
			if name == "" {
				name = a.ABVR
			}
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(contentWidth, 5, tr(name), "", 1, "L", false, 0, "")
			if a.Description != "" {
				pdf.SetFont("Arial", "", 9)
				pdf.MultiCell(contentWidth, 5, tr(a.Description), "", "L", false)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
