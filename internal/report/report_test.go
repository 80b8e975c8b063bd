package report

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/services/rows"
)

func str(s string) *string { return &s }

func sampleView() rows.View {
	res := &conciliation.Result{
		Summary: conciliation.ReconciliationSummary{
			TotalReceivables: 2,
			TotalPayments:    2,
			MatchedCount:     1,
			MatchRate:        decimal.RequireFromString("50"),
		},
		Matches: []conciliation.Match{{
			DebtorName:      str("ACME LTDA"),
			DebtorTaxID:     str("12.345.678/0001-90"),
			ReceivableValue: decimal.NewFromInt(100),
			PaymentValue:    decimal.NewFromInt(98),
			PaymentDate:     conciliation.NewDate(2024, 3, 2),
			Confidence:      80,
		}},
		UnmatchedReceivables: []conciliation.UnmatchedReceivable{
			{DebtorName: str("Beta SA"), FaceValue: decimal.NewFromInt(40)},
		},
		UnmatchedPayments: []conciliation.UnmatchedPayment{
			{PayerName: str("Gamma"), Amount: decimal.NewFromInt(7)},
		},
	}
	return rows.Build(res, rows.Query{})
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleView()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ResultsSheet, SummarySheet}, f.GetSheetList())

	got, err := f.GetRows(ResultsSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "Status", got[0][0])
	assert.Equal(t, []string{"matched", "ACME LTDA", "12.345.678/0001-90", "100", "98", "-2", "2024-03-02", "80"}, got[1])
	assert.Equal(t, "pending_receivable", got[2][0])
	assert.Equal(t, "40", got[2][3])
	assert.Equal(t, "unlinked_payment", got[3][0])
	assert.Equal(t, "7", got[3][4])

	summary, err := f.GetRows(SummarySheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rows total", "3"}, summary[1])
	assert.Equal(t, []string{"Pending value (all)", "40"}, summary[7])
	assert.Equal(t, []string{"Match rate (%)", "50"}, summary[13])
}

func TestWriteWorkbook_EmptyView(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, rows.View{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMoney(t *testing.T) {
	br := NewMoney("pt-BR")
	assert.Equal(t, "1.234,50", br.Format(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "-4,50", br.Format(decimal.RequireFromString("-4.5")))

	us := NewMoney("en-US")
	assert.Equal(t, "1,234.57", us.Format(decimal.RequireFromString("1234.567")))

	assert.Equal(t, "", br.FormatNull(decimal.NullDecimal{}))
	assert.Equal(t, "0,00", NewMoney("???").FormatNull(decimal.NewNullDecimal(decimal.Zero)))
}
