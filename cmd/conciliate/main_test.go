package main

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/report"
	"receivables-conciliation-backend/internal/services/rows"
)

func TestPrintView(t *testing.T) {
	name := "ACME LTDA"
	res := &conciliation.Result{
		Summary: conciliation.ReconciliationSummary{
			TotalReceivables:          3,
			TotalPayments:             1,
			MatchedCount:              1,
			UnmatchedReceivablesCount: 2,
			MatchRate:                 decimal.RequireFromString("33.33"),
		},
		Matches: []conciliation.Match{{
			DebtorName:      &name,
			ReceivableValue: decimal.RequireFromString("1234.5"),
			PaymentValue:    decimal.RequireFromString("1234.5"),
			Confidence:      90,
		}},
		UnmatchedReceivables: []conciliation.UnmatchedReceivable{
			{FaceValue: decimal.RequireFromString("10")},
			{FaceValue: decimal.RequireFromString("20")},
		},
	}

	var out bytes.Buffer
	printView(&out, rows.Build(res, rows.Query{Status: rows.All}), 2, report.NewMoney("pt-BR"))
	got := out.String()

	assert.Contains(t, got, "ACME LTDA")
	assert.Contains(t, got, "1.234,50")
	assert.Contains(t, got, "90% (high)")
	assert.Contains(t, got, "... 1 more rows")
	assert.Contains(t, got, "Pending value:    30,00")
	// the service's rate is printed as received
	assert.Contains(t, got, "Match rate: 33.33%")
}
