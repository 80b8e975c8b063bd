// Package conciliation holds the payloads exchanged with the remote
// conciliation service: upload summaries, match results and auth records.
package conciliation

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// File is a batch of records handed to the upload gateway.
type File struct {
	Name    string
	Content io.Reader
}

// RowError is a non-fatal parse failure for a single input row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"error"`
}

// BatchSummary counts what the service parsed out of one uploaded file.
type BatchSummary struct {
	ReceivablesCount int        `json:"receivables_count"`
	PaymentsCount    int        `json:"payments_count"`
	Errors           []RowError `json:"errors"`
}

type ParsedReceivable struct {
	DebtorTaxID *string         `json:"debtor_cnpj"`
	DebtorName  *string         `json:"debtor_name"`
	FaceValue   decimal.Decimal `json:"face_value"`
	DueDate     *Date           `json:"due_date"`
	Status      string          `json:"status"`
}

type ParsedPayment struct {
	PayerTaxID *string         `json:"payer_cnpj"`
	PayerName  *string         `json:"payer_name"`
	Amount     decimal.Decimal `json:"amount"`
	Date       *Date           `json:"date"`
}

// UploadResult is the upload gateway response. SessionToken is the same
// token that was sent, or a freshly issued one for a first upload.
type UploadResult struct {
	SessionToken string             `json:"session_token"`
	Summary      BatchSummary       `json:"summary"`
	Receivables  []ParsedReceivable `json:"receivables"`
	Payments     []ParsedPayment    `json:"payments"`
}

// Match pairs a receivable with the payment believed to settle it.
type Match struct {
	ReceivableID    string          `json:"receivable_id"`
	PaymentID       string          `json:"payment_id"`
	DebtorTaxID     *string         `json:"debtor_cnpj"`
	DebtorName      *string         `json:"debtor_name"`
	PayerName       *string         `json:"payer_name"`
	ReceivableValue decimal.Decimal `json:"receivable_value"`
	PaymentValue    decimal.Decimal `json:"payment_value"`
	DueDate         *Date           `json:"due_date"`
	PaymentDate     *Date           `json:"payment_date"`
	Confidence      int             `json:"confidence"`
}

type UnmatchedReceivable struct {
	ID          string          `json:"id"`
	DebtorTaxID *string         `json:"debtor_cnpj"`
	DebtorName  *string         `json:"debtor_name"`
	FaceValue   decimal.Decimal `json:"face_value"`
	DueDate     *Date           `json:"due_date"`
}

type UnmatchedPayment struct {
	ID         string          `json:"id"`
	PayerTaxID *string         `json:"payer_cnpj"`
	PayerName  *string         `json:"payer_name"`
	Amount     decimal.Decimal `json:"amount"`
	Date       *Date           `json:"date"`
}

// ReconciliationSummary is displayed as-is; MatchRate is computed by the
// service and never derived locally.
type ReconciliationSummary struct {
	TotalReceivables          int             `json:"total_receivables"`
	TotalPayments             int             `json:"total_payments"`
	MatchedCount              int             `json:"matched"`
	UnmatchedReceivablesCount int             `json:"unmatched_receivables"`
	UnmatchedPaymentsCount    int             `json:"unmatched_payments"`
	MatchRate                 decimal.Decimal `json:"match_rate"`
}

// Result is the conciliation gateway response.
type Result struct {
	RunID                string                `json:"run_id"`
	Summary              ReconciliationSummary `json:"summary"`
	Matches              []Match               `json:"matches"`
	UnmatchedReceivables []UnmatchedReceivable `json:"unmatched_receivables"`
	UnmatchedPayments    []UnmatchedPayment    `json:"unmatched_payments"`
}

const (
	MinConfidence = 0
	MaxConfidence = 100
)

// Validate rejects payloads the row table cannot display.
func (r *Result) Validate() error {
	for i, m := range r.Matches {
		if m.Confidence < MinConfidence || m.Confidence > MaxConfidence {
			return fmt.Errorf("%w: match %d confidence %d out of range", ErrInvalidPayload, i, m.Confidence)
		}
		if m.ReceivableValue.IsNegative() || m.PaymentValue.IsNegative() {
			return fmt.Errorf("%w: match %d has a negative amount", ErrInvalidPayload, i)
		}
	}
	for i, rec := range r.UnmatchedReceivables {
		if rec.FaceValue.IsNegative() {
			return fmt.Errorf("%w: receivable %d has a negative face value", ErrInvalidPayload, i)
		}
	}
	for i, p := range r.UnmatchedPayments {
		if p.Amount.IsNegative() {
			return fmt.Errorf("%w: payment %d has a negative amount", ErrInvalidPayload, i)
		}
	}
	return nil
}

// User is the account record returned by the auth endpoints.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`
	Plan           string `json:"plan"`
}

type LinkedData struct {
	Receivables int `json:"receivables"`
	Payments    int `json:"payments"`
}

type AuthResult struct {
	Token      string      `json:"token"`
	User       User        `json:"user"`
	LinkedData *LinkedData `json:"linked_data,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration optionally carries an anonymous session token so the
// records uploaded under it are linked to the new organization.
type Registration struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	SessionToken *string `json:"session_token,omitempty"`
}

// Str returns the pointed-to string or "".
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
