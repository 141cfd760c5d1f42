// Package report renders settlement breakdowns as XLSX and PDF documents.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/payout-engine/settlement"
)

// Content types of the rendered documents.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

// Filename is the download name for a breakdown export.
func Filename(b settlement.Breakdown, ext string) string {
	return fmt.Sprintf("settlement-%s-%s_%s.%s", b.WorkerID, b.Period.Start, b.Period.End, ext)
}

// BuildBreakdownPDF renders a one-page summary followed by the contributing
// appointments and sales.
func BuildBreakdownPDF(b settlement.Breakdown) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Worker Settlement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	line := func(label, value string) {
		pdf.Cell(0, 6, tr(fmt.Sprintf("%s: %s", label, value)))
		pdf.Ln(5)
	}
	line("Worker", workerLabel(b.Worker))
	line("Period", fmt.Sprintf("%s to %s (%d days)", b.Period.Start, b.Period.End, b.Period.Days()))
	line("State", string(b.State))
	line("Created", b.CreatedAt.Format(time.RFC3339))
	if b.PaidAt != nil {
		line("Paid", b.PaidAt.Format(time.RFC3339))
	}

	pdf.Ln(4)
	line("Base amount", money(b.BaseAmount))
	line("Bonus amount", money(b.BonusAmount))
	line("Payable total", money(b.PayableTotal()))
	line("Appointments total (cached)", money(b.AppointmentsTotal))
	pdf.Ln(3)
	sg := b.Suggestion
	line("Sales total", fmt.Sprintf("%s (%d sales, average %s)", money(sg.SalesTotal), sg.SalesCount, money(sg.SalesAverage)))
	line("Appointments total", fmt.Sprintf("%s (%d appointments)", money(sg.AppointmentsTotal), sg.AppointmentsCount))
	line("Commission", fmt.Sprintf("%s at %s", money(sg.CommissionFromAppointments), sg.CommissionRate.String()))
	line("Suggested amount", fmt.Sprintf("%s (%s)", money(sg.SuggestedAmount), sg.Basis))
	if sg.Degraded() {
		line("Sales source", string(sg.SalesSource.Status))
		line("Appointments source", string(sg.AppointmentsSource.Status))
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Appointments")
	pdf.Ln(7)
	header := func(cols []string, widths []float64) {
		pdf.SetFont("Arial", "B", 10)
		for i, c := range cols {
			pdf.CellFormat(widths[i], 6, c, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
	}
	apptWidths := []float64{25, 15, 55, 60, 25}
	header([]string{"Date", "Time", "Client", "Service", "Price"}, apptWidths)
	for _, a := range sg.Appointments {
		pdf.CellFormat(apptWidths[0], 6, a.Date.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(apptWidths[1], 6, a.Time, "1", 0, "C", false, 0, "")
		pdf.CellFormat(apptWidths[2], 6, tr(a.ClientName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(apptWidths[3], 6, tr(a.ServiceName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(apptWidths[4], 6, money(a.Price), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Sales")
	pdf.Ln(7)
	saleWidths := []float64{35, 50, 50, 25, 25}
	header([]string{"Sold at", "Client", "Service", "Method", "Total"}, saleWidths)
	for _, s := range sg.Sales {
		pdf.CellFormat(saleWidths[0], 6, s.SoldAt.UTC().Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(saleWidths[1], 6, tr(s.ClientName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(saleWidths[2], 6, tr(s.ServiceName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(saleWidths[3], 6, s.PaymentMethod, "1", 0, "C", false, 0, "")
		pdf.CellFormat(saleWidths[4], 6, money(s.Total), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBreakdownXLSX renders a workbook with summary, appointments and
// sales sheets.
func BuildBreakdownXLSX(b settlement.Breakdown) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	apptSheet := "appointments"
	salesSheet := "sales"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(apptSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(salesSheet); err != nil {
		return nil, err
	}

	sg := b.Suggestion
	summary := [][2]any{
		{"Worker Settlement", ""},
		{"Settlement ID", string(b.ID)},
		{"Worker", workerLabel(b.Worker)},
		{"Period start", b.Period.Start.String()},
		{"Period end", b.Period.End.String()},
		{"State", string(b.State)},
		{"Base amount", amount(b.BaseAmount)},
		{"Bonus amount", amount(b.BonusAmount)},
		{"Payable total", amount(b.PayableTotal())},
		{"Appointments total (cached)", amount(b.AppointmentsTotal)},
		{"Sales total", amount(sg.SalesTotal)},
		{"Sales count", sg.SalesCount},
		{"Sales average", amount(sg.SalesAverage)},
		{"Appointments total", amount(sg.AppointmentsTotal)},
		{"Appointments count", sg.AppointmentsCount},
		{"Commission rate", amount(sg.CommissionRate)},
		{"Commission", amount(sg.CommissionFromAppointments)},
		{"Suggested amount", amount(sg.SuggestedAmount)},
		{"Basis", string(sg.Basis)},
		{"Sales source", string(sg.SalesSource.Status)},
		{"Appointments source", string(sg.AppointmentsSource.Status)},
	}
	for i, row := range summary {
		r := i + 1
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), row[1])
	}

	writeRow(f, apptSheet, 1, "Date", "Time", "Client", "Service", "Price")
	for i, a := range sg.Appointments {
		writeRow(f, apptSheet, i+2, a.Date.String(), a.Time, a.ClientName, a.ServiceName, amount(a.Price))
	}

	writeRow(f, salesSheet, 1, "Sold at", "Client", "Service", "Payment method", "Total")
	for i, s := range sg.Sales {
		writeRow(f, salesSheet, i+2, s.SoldAt.UTC().Format("2006-01-02 15:04"), s.ClientName, s.ServiceName, s.PaymentMethod, amount(s.Total))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			continue
		}
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func workerLabel(w settlement.Worker) string {
	name := w.FullName()
	if name == "" {
		return string(w.ID)
	}
	if w.Email != "" {
		return fmt.Sprintf("%s <%s>", name, w.Email)
	}
	return name
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// amount is the spreadsheet cell value for d. Cells are numeric so
// operators can total them; the exact value lives in the database.
func amount(d decimal.Decimal) float64 { return d.InexactFloat64() }
