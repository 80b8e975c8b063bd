package rows

import (
	"strconv"

	"github.com/shopspring/decimal"

	"receivables-conciliation-backend/internal/conciliation"
)

// Totals are sums over whatever row set they were computed from.
type Totals struct {
	ReceivableValue decimal.Decimal `json:"total_receivable_value"`
	PaymentValue    decimal.Decimal `json:"total_payment_value"`
	PendingValue    decimal.Decimal `json:"total_pending_value"`
}

func AggregateTotals(rows []Row) Totals {
	t := Totals{
		ReceivableValue: decimal.Zero,
		PaymentValue:    decimal.Zero,
		PendingValue:    decimal.Zero,
	}
	for _, r := range rows {
		if r.ReceivableValue.Valid {
			t.ReceivableValue = t.ReceivableValue.Add(r.ReceivableValue.Decimal)
		}
		if r.PaymentValue.Valid {
			t.PaymentValue = t.PaymentValue.Add(r.PaymentValue.Decimal)
		}
		if r.Status == StatusPendingReceivable && r.ReceivableValue.Valid {
			t.PendingValue = t.PendingValue.Add(r.ReceivableValue.Decimal)
		}
	}
	return t
}

// StatusStats counts and sums rows per status.
type StatusStats struct {
	Total       int             `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	MatchedCount int             `json:"matched_count"`
	MatchedSum   decimal.Decimal `json:"matched_sum"`

	PendingCount int             `json:"pending_count"`
	PendingSum   decimal.Decimal `json:"pending_sum"`

	UnlinkedCount int             `json:"unlinked_count"`
	UnlinkedSum   decimal.Decimal `json:"unlinked_sum"`
}

// Stats buckets rows by status. Matched rows contribute their receivable
// value, unlinked rows their payment value.
func Stats(rows []Row) StatusStats {
	stats := StatusStats{
		TotalAmount: decimal.Zero,
		MatchedSum:  decimal.Zero,
		PendingSum:  decimal.Zero,
		UnlinkedSum: decimal.Zero,
	}
	for _, r := range rows {
		stats.Total++
		switch r.Status {
		case StatusMatched:
			stats.MatchedCount++
			stats.MatchedSum = stats.MatchedSum.Add(r.ReceivableValue.Decimal)
			stats.TotalAmount = stats.TotalAmount.Add(r.ReceivableValue.Decimal)
		case StatusPendingReceivable:
			stats.PendingCount++
			stats.PendingSum = stats.PendingSum.Add(r.ReceivableValue.Decimal)
			stats.TotalAmount = stats.TotalAmount.Add(r.ReceivableValue.Decimal)
		case StatusUnlinkedPayment:
			stats.UnlinkedCount++
			stats.UnlinkedSum = stats.UnlinkedSum.Add(r.PaymentValue.Decimal)
			stats.TotalAmount = stats.TotalAmount.Add(r.PaymentValue.Decimal)
		}
	}
	return stats
}

// ConfidenceLevel is the display band of a match confidence.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

func ClassifyConfidence(confidence int) ConfidenceLevel {
	switch {
	case confidence >= 75:
		return ConfidenceHigh
	case confidence >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Paginate slices rows starting at the opaque cursor. The cursor is the
// offset of the first row to return, as produced by a previous call.
func Paginate(rows []Row, cursor string, limit int) (page []Row, nextCursor string, hasMore bool) {
	start := 0
	if cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
			start = n
		}
	}
	if start >= len(rows) {
		return []Row{}, "", false
	}
	if limit <= 0 {
		return rows[start:], "", false
	}

	end := start + limit
	if end >= len(rows) {
		return rows[start:], "", false
	}
	return rows[start:end], strconv.Itoa(end), true
}

// Query selects the visible subset of a result.
type Query struct {
	Status StatusFilter
	Search string
}

// View is a result reshaped for display.
type View struct {
	Rows        []Row                              `json:"rows"`
	Totals      Totals                             `json:"totals"`
	TotalsAll   Totals                             `json:"totals_all"`
	Summary     conciliation.ReconciliationSummary `json:"summary"`
	RowCount    int                                `json:"row_count"`
	RowCountAll int                                `json:"row_count_all"`
}

// Build unifies res, applies q, and totals both the visible and the full set.
func Build(res *conciliation.Result, q Query) View {
	all := UnifyResult(res)
	visible := Search(Filter(all, q.Status), q.Search)

	v := View{
		Rows:        visible,
		Totals:      AggregateTotals(visible),
		TotalsAll:   AggregateTotals(all),
		RowCount:    len(visible),
		RowCountAll: len(all),
	}
	if res != nil {
		v.Summary = res.Summary
	}
	return v
}
