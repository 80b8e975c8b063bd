package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Money formats amounts with the grouping and decimal separators of a locale.
type Money struct {
	printer *message.Printer
}

// NewMoney returns a formatter for the BCP 47 tag; an unparseable tag
// falls back to Brazilian Portuguese.
func NewMoney(tag string) Money {
	lang, err := language.Parse(tag)
	if err != nil {
		lang = language.BrazilianPortuguese
	}
	return Money{printer: message.NewPrinter(lang)}
}

// Format renders d with two decimals.
func (m Money) Format(d decimal.Decimal) string {
	return m.printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatNull renders an absent amount as "".
func (m Money) FormatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return m.Format(d.Decimal)
}
