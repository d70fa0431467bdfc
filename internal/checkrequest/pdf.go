package checkrequest

import (
	"bytes"
	"time"

	"github.com/jung-kurt/gofpdf"

	"decoder-ledger/internal/config"
)

const (
	minTableRows = 10
	rowHeight    = 6.0
	pageBottom   = 282.0
	footerHeight = 70.0
)

var (
	tableColumns = []string{"Concepto o Descripción de Pago", "Factura No.", "Cuenta de Gasto", "Total a Pagar"}
	tableWidths  = []float64{100, 28, 30, 24}
)

// BuildPDF renders the check request form. The line-item table is padded to
// ten rows and continues on new pages when the items do not fit.
func BuildPDF(letterhead config.Letterhead, summary Summary, date time.Time) ([]byte, error) {
	if len(summary.Lines) == 0 {
		return nil, ErrEmptyRequest
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(false, 15)
	pdf.AddPage()

	blue := func() { pdf.SetTextColor(0, 0, 255) }
	black := func() { pdf.SetTextColor(0, 0, 0) }
	centered := func(y float64, text string) {
		pdf.SetXY(10, y-5)
		pdf.CellFormat(190, 6, tr(text), "", 0, "C", false, 0, "")
	}

	// Header
	pdf.SetFont("Helvetica", "B", 16)
	centered(20, letterhead.Company)
	pdf.SetFont("Helvetica", "B", 12)
	centered(26, letterhead.TaxID)
	pdf.SetFont("Helvetica", "B", 14)
	centered(34, letterhead.Title)

	// Request date and accounting box
	y := 50.0
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(14, y, "Fecha de Solicitud:")
	pdf.Rect(50, y-5, 40, 7, "D")
	pdf.Text(52, y, date.Format("02/01/2006"))
	pdf.Rect(140, y-10, 60, 20, "D")
	pdf.SetFont("Helvetica", "", 8)
	pdf.Text(142, y-6, "CONTABILIDAD UNICAMENTE:")
	pdf.Text(142, y-1, "Fecha / Recibido por:")

	// Beneficiary
	y += 15
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Text(14, y, "Beneficiario (Girar el cheque a nombre de):")
	y += 8
	pdf.SetFont("Helvetica", "", 10)
	field := func(label, value string, lineEnd float64) {
		pdf.Text(14, y, tr(label))
		if value != "" {
			blue()
			pdf.SetFont("Helvetica", "B", 10)
			pdf.Text(60, y, tr(value))
			black()
			pdf.SetFont("Helvetica", "", 10)
		}
		pdf.Line(60, y+1, lineEnd, y+1)
		y += 6
	}
	field("R.I.F.:", letterhead.BeneficiaryTaxID, 100)
	field("Nombre del Proveedor:", letterhead.Beneficiary, 130)
	field("Dirección Proveedor:", letterhead.City, 130)
	field("Ciudad y País:", letterhead.Country, 100)
	pdf.Text(14, y, tr("Teléfonos:"))
	pdf.Text(120, y, "Fax:")

	// Amount and currency
	y += 10
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Text(14, y, tr("Monto a pagar y descripción del pago:"))
	y += 8
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(14, y, "Monto a Pagar:")
	pdf.SetFont("Helvetica", "B", 10)
	blue()
	pdf.SetXY(80, y-5)
	pdf.CellFormat(40, 6, summary.Total.StringFixed(2), "", 0, "R", false, 0, "")
	black()
	pdf.SetFont("Helvetica", "", 10)
	pdf.Line(80, y+1, 122, y+1)
	pdf.Rect(130, y-3, 4, 4, "D")
	pdf.Text(136, y, "Bolivares")
	pdf.Rect(130, y+2, 4, 4, "D")
	pdf.Text(136, y+5, "US Dollars")
	if summary.Currency == CurrencyForeign {
		pdf.Text(131, y+5, "x")
	} else {
		pdf.Text(131, y, "x")
	}

	y += 8
	pdf.Text(14, y, "Favor efectuar pago en la siguiente fecha:")
	pdf.Line(90, y+1, 130, y+1)
	y += 6
	pdf.Text(14, y, tr("Descripción general:"))
	blue()
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(60, y, tr(letterhead.Description))
	black()

	// Line items
	y += 6
	tableHeader := func() {
		pdf.SetXY(14, y)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(200, 255, 200)
		pdf.SetLineWidth(0.1)
		for i, column := range tableColumns {
			pdf.CellFormat(tableWidths[i], rowHeight+1, tr(column), "1", 0, "C", true, 0, "")
		}
		pdf.SetFont("Helvetica", "", 10)
		y += rowHeight + 1
	}
	tableHeader()

	rows := len(summary.Lines)
	if rows < minTableRows {
		rows = minTableRows
	}
	for i := 0; i < rows; i++ {
		if y+rowHeight > pageBottom {
			pdf.AddPage()
			y = 20
			tableHeader()
		}
		label, amount := "", ""
		if i < len(summary.Lines) {
			label = summary.Lines[i].Label
			amount = summary.Lines[i].Amount.StringFixed(2)
		}
		pdf.SetXY(14, y)
		pdf.CellFormat(tableWidths[0], rowHeight, tr(label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(tableWidths[1], rowHeight, "", "1", 0, "C", false, 0, "")
		pdf.CellFormat(tableWidths[2], rowHeight, "", "1", 0, "C", false, 0, "")
		pdf.CellFormat(tableWidths[3], rowHeight, amount, "1", 0, "R", false, 0, "")
		y += rowHeight
	}

	// Totals, instructions and signatures
	if y+footerHeight > pageBottom {
		pdf.AddPage()
		y = 20
	}
	y += 5
	pdf.SetFillColor(200, 255, 200)
	pdf.Rect(110, y, 40, 8, "F")
	pdf.Rect(110, y+8, 40, 8, "F")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(112, y+6, "Subtotal:")
	pdf.Text(112, y+14, "Total a Pagar:")
	blue()
	pdf.SetXY(150, y+1)
	pdf.CellFormat(40, 6, summary.Subtotal.StringFixed(2), "", 0, "R", false, 0, "")
	pdf.SetXY(150, y+9)
	pdf.CellFormat(40, 6, summary.Total.StringFixed(2), "", 0, "R", false, 0, "")
	black()

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(14, y+5, tr(letterhead.SpecialInstrLabel+":"))
	pdf.Line(60, y+6, 105, y+6)

	sigY := y + 30
	const boxWidth, boxHeight, gap = 50.0, 25.0, 10.0
	boxes := [][]string{
		{letterhead.RequestedByLabel + ":"},
		{letterhead.ApprovedByLabel + ":", letterhead.ApprovedByTitle},
		{letterhead.ControllerLabel + ":", letterhead.ControllerTitle},
	}
	pdf.SetFont("Helvetica", "", 7)
	for i, texts := range boxes {
		x := 14 + float64(i)*(boxWidth+gap)
		pdf.Rect(x, sigY, boxWidth, boxHeight, "D")
		for j, text := range texts {
			pdf.Text(x+5, sigY+5+float64(j)*5, tr(text))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
