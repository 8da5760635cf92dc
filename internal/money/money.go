// Package money renders amounts for display in the terminal's locale.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
	symbol  string
	scale   int
}

func NewFormatter(locale, currencyCode string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", currencyCode, err)
	}

	p := message.NewPrinter(tag)
	symbol := p.Sprint(currency.Symbol(unit))
	if symbol == "" {
		symbol = unit.String()
	}
	scale, _ := currency.Standard.Rounding(unit)

	return &Formatter{printer: p, unit: unit, symbol: symbol, scale: scale}, nil
}

func (f *Formatter) Currency() string {
	return f.unit.String()
}

// Format returns the amount with the currency symbol and locale digit grouping.
func (f *Formatter) Format(amount decimal.Decimal) string {
	rounded := amount.Round(int32(f.scale)).InexactFloat64()
	return f.printer.Sprintf("%s %v", f.symbol, number.Decimal(rounded, number.Scale(f.scale)))
}

// Plain returns the amount at the currency's scale without symbol or grouping.
func (f *Formatter) Plain(amount decimal.Decimal) string {
	return amount.StringFixed(int32(f.scale))
}
