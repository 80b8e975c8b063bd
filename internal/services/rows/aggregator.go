// Package rows turns a conciliation result into the table the operator
// browses: one uniform row per match, pending receivable and unlinked
// payment, plus filtering, search and totals over any row set.
//
// Every function here is pure. Rows are rebuilt from the payload on each
// call and never patched in place.
package rows

import (
	"strings"

	"github.com/shopspring/decimal"

	"receivables-conciliation-backend/internal/conciliation"
)

// UnknownName is shown when a row carries neither a name nor a tax id.
const UnknownName = "—"

// Row is one line of the results table.
//
// Matched rows carry both values and a confidence; pending rows carry only
// ReceivableValue; unlinked rows carry only PaymentValue. ValueDifference
// is set only on matched rows whose values differ.
type Row struct {
	Status          Status              `json:"status"`
	DisplayName     string              `json:"display_name"`
	TaxID           string              `json:"tax_id"`
	ReceivableValue decimal.NullDecimal `json:"receivable_value"`
	PaymentValue    decimal.NullDecimal `json:"payment_value"`
	ValueDifference decimal.NullDecimal `json:"value_difference"`
	Date            *conciliation.Date  `json:"date"`
	Confidence      *int                `json:"confidence"`
}

// ConfidenceLevel returns the display band of a matched row; ok is false
// for rows without a confidence.
func (r Row) ConfidenceLevel() (ConfidenceLevel, bool) {
	if r.Confidence == nil {
		return "", false
	}
	return ClassifyConfidence(*r.Confidence), true
}

// Unify emits matches, then pending receivables, then unlinked payments,
// each in input order. len(result) == len(matches)+len(receivables)+len(payments).
func Unify(
	matches []conciliation.Match,
	receivables []conciliation.UnmatchedReceivable,
	payments []conciliation.UnmatchedPayment,
) []Row {
	out := make([]Row, 0, len(matches)+len(receivables)+len(payments))

	for _, m := range matches {
		out = append(out, fromMatch(m))
	}
	for _, r := range receivables {
		out = append(out, Row{
			Status:          StatusPendingReceivable,
			DisplayName:     displayName(r.DebtorName, r.DebtorTaxID),
			TaxID:           conciliation.Str(r.DebtorTaxID),
			ReceivableValue: present(r.FaceValue),
			Date:            presentDate(r.DueDate),
		})
	}
	for _, p := range payments {
		out = append(out, Row{
			Status:       StatusUnlinkedPayment,
			DisplayName:  displayName(p.PayerName, p.PayerTaxID),
			TaxID:        conciliation.Str(p.PayerTaxID),
			PaymentValue: present(p.Amount),
			Date:         presentDate(p.Date),
		})
	}

	return out
}

// UnifyResult is Unify over a whole conciliation payload.
func UnifyResult(res *conciliation.Result) []Row {
	if res == nil {
		return []Row{}
	}
	return Unify(res.Matches, res.UnmatchedReceivables, res.UnmatchedPayments)
}

func fromMatch(m conciliation.Match) Row {
	confidence := m.Confidence

	row := Row{
		Status:          StatusMatched,
		DisplayName:     displayName(firstName(m.DebtorName, m.PayerName), m.DebtorTaxID),
		TaxID:           conciliation.Str(m.DebtorTaxID),
		ReceivableValue: present(m.ReceivableValue),
		PaymentValue:    present(m.PaymentValue),
		Confidence:      &confidence,
	}

	// zero difference stays absent so rounding noise is never displayed
	if diff := m.PaymentValue.Sub(m.ReceivableValue); !diff.IsZero() {
		row.ValueDifference = present(diff)
	}

	if m.PaymentDate.Present() {
		row.Date = m.PaymentDate
	} else {
		row.Date = presentDate(m.DueDate)
	}

	return row
}

// Filter keeps rows of the requested status in their original order.
func Filter(rows []Row, f StatusFilter) []Row {
	want, ok := f.Status()
	if !ok {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Status == want {
			out = append(out, r)
		}
	}
	return out
}

// Search is a case-insensitive substring match on display name or tax id.
// A blank query returns rows unchanged.
func Search(rows []Row, query string) []Row {
	q := normalize(query)
	if q == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(normalize(r.DisplayName), q) || strings.Contains(normalize(r.TaxID), q) {
			out = append(out, r)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func displayName(name, taxID *string) string {
	if n := strings.TrimSpace(conciliation.Str(name)); n != "" {
		return n
	}
	if id := strings.TrimSpace(conciliation.Str(taxID)); id != "" {
		return id
	}
	return UnknownName
}

func firstName(names ...*string) *string {
	for _, n := range names {
		if strings.TrimSpace(conciliation.Str(n)) != "" {
			return n
		}
	}
	return nil
}

func present(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func presentDate(d *conciliation.Date) *conciliation.Date {
	if d.Present() {
		return d
	}
	return nil
}
