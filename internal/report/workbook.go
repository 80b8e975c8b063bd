// Package report renders a results view as an XLSX workbook and formats
// money for display.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"receivables-conciliation-backend/internal/services/rows"
)

const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"

	// built-in "#,##0.00"
	numFmtMoney = 4
)

var resultsHeader = []any{
	"Status", "Name", "Tax ID", "Receivable value", "Payment value", "Difference", "Date", "Confidence",
}

// WriteWorkbook writes view as a workbook with a results sheet holding the
// visible rows and a summary sheet with totals and the service summary.
func WriteWorkbook(w io.Writer, view rows.View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return err
	}
	if err := writeResults(f, view.Rows); err != nil {
		return fmt.Errorf("results sheet: %w", err)
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, view); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeResults(f *excelize.File, rs []rows.Row) error {
	if err := f.SetSheetRow(ResultsSheet, "A1", &resultsHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(ResultsSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, r := range rs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		line := []any{
			r.Status.String(),
			r.DisplayName,
			r.TaxID,
			money(r.ReceivableValue),
			money(r.PaymentValue),
			money(r.ValueDifference),
			dateCell(r),
			confidenceCell(r),
		}
		if err := f.SetSheetRow(ResultsSheet, cell, &line); err != nil {
			return err
		}
	}

	if len(rs) > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
		if err != nil {
			return err
		}
		last := fmt.Sprintf("F%d", len(rs)+1)
		if err := f.SetCellStyle(ResultsSheet, "D2", last, style); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(ResultsSheet, "B", "B", 36); err != nil {
		return err
	}
	return f.SetColWidth(ResultsSheet, "C", "G", 18)
}

func writeSummary(f *excelize.File, view rows.View) error {
	s := view.Summary
	lines := [][]any{
		{"Rows shown", view.RowCount},
		{"Rows total", view.RowCountAll},
		{"Receivable value (shown)", view.Totals.ReceivableValue.InexactFloat64()},
		{"Payment value (shown)", view.Totals.PaymentValue.InexactFloat64()},
		{"Pending value (shown)", view.Totals.PendingValue.InexactFloat64()},
		{"Receivable value (all)", view.TotalsAll.ReceivableValue.InexactFloat64()},
		{"Payment value (all)", view.TotalsAll.PaymentValue.InexactFloat64()},
		{"Pending value (all)", view.TotalsAll.PendingValue.InexactFloat64()},
		{"Total receivables", s.TotalReceivables},
		{"Total payments", s.TotalPayments},
		{"Matched", s.MatchedCount},
		{"Unmatched receivables", s.UnmatchedReceivablesCount},
		{"Unmatched payments", s.UnmatchedPaymentsCount},
		{"Match rate (%)", s.MatchRate.InexactFloat64()},
	}
	for i, line := range lines {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &line); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "B3", "B8", style); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "A", 28)
}

// money leaves absent values as empty cells.
func money(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

func dateCell(r rows.Row) any {
	if !r.Date.Present() {
		return nil
	}
	return r.Date.String()
}

func confidenceCell(r rows.Row) any {
	if r.Confidence == nil {
		return nil
	}
	return *r.Confidence
}
