package interfaces

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"decoder-ledger/internal/expiry"
	reportapp "decoder-ledger/internal/reports/application"
)

const (
	reportTitle = "Reporte de Estado de Cuentas"
	lineHeight  = 6.0
)

var (
	reportColumns = []string{"Cliente / Alias", "Habitaciones", "Vencimiento(s)", "Estado"}
	reportWidths  = []float64{70, 40, 40, 30}
)

// StatusLabel returns the Spanish label printed for a status.
func StatusLabel(status expiry.Status) string {
	switch status {
	case expiry.StatusExpired:
		return "Vencido"
	case expiry.StatusExpiringSoon:
		return "Por Vencer"
	case expiry.StatusActive:
		return "Activo"
	default:
		return "Sin Fecha"
	}
}

func statusColor(status expiry.Status) (int, int, int) {
	switch status {
	case expiry.StatusExpired:
		return 198, 40, 40
	case expiry.StatusExpiringSoon:
		return 239, 108, 0
	case expiry.StatusActive:
		return 46, 125, 50
	default:
		return 97, 97, 97
	}
}

// BuildStatusReportPDF renders the account status report.
func BuildStatusReportPDF(lines []reportapp.StatusLine, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(false, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, tr(reportTitle))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Fecha de generación: %s", generated.Format("02/01/2006 15:04"))))
	pdf.Ln(8)

	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(26, 35, 126)
		pdf.SetTextColor(255, 255, 255)
		for i, column := range reportColumns {
			pdf.CellFormat(reportWidths[i], 7, tr(column), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i, line := range lines {
		rows := len(line.Cutoffs)
		if rows == 0 {
			rows = 1
		}
		height := lineHeight * float64(rows)
		x, y := pdf.GetXY()
		if y+height > pageHeight-bottom {
			pdf.AddPage()
			header()
			x, y = pdf.GetXY()
		}
		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 245)

		pdf.CellFormat(reportWidths[0], height, tr(line.Name), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(reportWidths[1], height, tr(strings.Join(line.Rooms, ", ")), "1", 0, "L", fill, 0, "")
		pdf.SetXY(x+reportWidths[0]+reportWidths[1], y)
		cutoffs := strings.Join(line.Cutoffs, "\n")
		if cutoffs == "" {
			cutoffs = "-"
		}
		pdf.MultiCell(reportWidths[2], lineHeight, cutoffs, "1", "C", fill)
		pdf.SetXY(x+reportWidths[0]+reportWidths[1]+reportWidths[2], y)

		r, g, b := statusColor(line.Status)
		pdf.SetTextColor(r, g, b)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(reportWidths[3], height, StatusLabel(line.Status), "1", 0, "C", fill, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 10)
		pdf.SetXY(x, y+height)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatusReportXLSX renders the account status report as a workbook.
func BuildStatusReportXLSX(lines []reportapp.StatusLine, generated time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "estado"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", reportTitle)
	_ = f.SetCellValue(sheet, "A2", "Fecha de generación")
	_ = f.SetCellValue(sheet, "B2", generated.Format("02/01/2006 15:04"))

	headers := append(append([]string{}, reportColumns...), "Días restantes")
	for i, title := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 4)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i, line := range lines {
		row := i + 5
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line.Name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), strings.Join(line.Rooms, ", "))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), strings.Join(line.Cutoffs, "\n"))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), StatusLabel(line.Status))
		if line.Status != expiry.StatusUnknown {
			_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), line.MinDaysLeft)
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 36)
	_ = f.SetColWidth(sheet, "B", "C", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
