package reconciliation

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

// ExportFormat is a downloadable rendering of a Report.
type ExportFormat string

const (
	ExportXLSX ExportFormat = "xlsx"
	ExportPDF  ExportFormat = "pdf"
)

// ParseExportFormat defaults to xlsx when value is blank.
func ParseExportFormat(value string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(value))) {
	case "", ExportXLSX:
		return ExportXLSX, nil
	case ExportPDF:
		return ExportPDF, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "format must be xlsx or pdf").WithDetails(map[string]any{"format": value})
}

func (f ExportFormat) ContentType() string {
	if f == ExportPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename is what the download is saved as, e.g. reconciliation-<station>-2026-03-01.xlsx.
func (f ExportFormat) Filename(report *Report) string {
	return fmt.Sprintf("reconciliation-%s-%s.%s", report.GasStationID, report.Date, f)
}

// Export renders report in the requested format.
func Export(report *Report, format ExportFormat) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("report required")
	}
	switch format {
	case ExportXLSX:
		return buildXLSX(report)
	case ExportPDF:
		return buildPDF(report)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

var exportColumns = []string{
	"Tank", "Stock open", "In", "Sales", "Pump test", "Out",
	"Stock by calculation", "Tank reading", "Variance", "Estimated loss", "Loss",
}

func exportCells(row Row) []string {
	loss := "no"
	if row.Loss {
		loss = "yes"
	}
	return []string{
		row.TankName,
		liters(row.StockOpen),
		liters(row.TotalIn),
		liters(row.Sales),
		liters(row.PumpTest),
		liters(row.TotalOut),
		liters(row.StockByCalculation),
		optionalLiters(row.TankReading),
		optionalLiters(row.Variance),
		optionalLiters(row.EstimatedLoss),
		loss,
	}
}

// xlsxValues keeps liters numeric so owners can sum columns in the sheet.
func xlsxValues(row Row) []any {
	num := func(d *decimal.Decimal) any {
		if d == nil {
			return ""
		}
		return d.Round(2).InexactFloat64()
	}
	return []any{
		row.TankName,
		num(&row.StockOpen),
		num(&row.TotalIn),
		num(&row.Sales),
		num(&row.PumpTest),
		num(&row.TotalOut),
		num(&row.StockByCalculation),
		num(row.TankReading),
		num(row.Variance),
		num(row.EstimatedLoss),
		row.Loss,
	}
}

func liters(d decimal.Decimal) string { return d.StringFixed(2) }

func optionalLiters(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return liters(*d)
}

func buildXLSX(report *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "reconciliation"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	_ = f.SetCellValue(sheet, "A1", "Daily tank reconciliation")
	_ = f.SetCellValue(sheet, "A2", "Gas station")
	_ = f.SetCellValue(sheet, "B2", report.GasStationID.String())
	_ = f.SetCellValue(sheet, "A3", "Operational date")
	_ = f.SetCellValue(sheet, "B3", report.Date)

	const headerRow = 5
	header := make([]any, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", headerRow), &header); err != nil {
		return nil, err
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, headerRow, headerRow, bold)
	}

	for i, row := range report.Rows {
		values := xlsxValues(row)
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", headerRow+1+i), &values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var pdfWidths = []float64{40, 22, 22, 22, 22, 22, 30, 26, 22, 26, 12}

func buildPDF(report *Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Daily tank reconciliation")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Gas station: %s", report.GasStationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Operational date: %s", report.Date))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s - %s", report.WindowStart.Format("2006-01-02 15:04"), report.WindowEnd.Format("2006-01-02 15:04")))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 8)
	for i, title := range exportColumns {
		pdf.CellFormat(pdfWidths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range report.Rows {
		for i, cell := range exportCells(row) {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(pdfWidths[i], 6, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
