package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MinReferenceLength is the shortest accepted transfer reference, after trimming.
const MinReferenceLength = 6

type PaymentMethod string

const (
	PaymentMethodNone     PaymentMethod = ""
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCash || m == PaymentMethodCard || m == PaymentMethodTransfer
}

func (m PaymentMethod) String() string {
	return string(m)
}

// ParsePaymentMethod accepts the method name case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return PaymentMethodNone, ErrUnknownMethod
	}
	return m, nil
}

type CardType string

const (
	CardTypeDebit  CardType = "debit"
	CardTypeCredit CardType = "credit"
)

func (t CardType) IsValid() bool {
	return t == CardTypeDebit || t == CardTypeCredit
}

// PaymentDetails is the active payment variant. Only the fields of Method are meaningful.
type PaymentDetails struct {
	Method          PaymentMethod   `json:"method"`
	CashReceived    decimal.Decimal `json:"cash_received"`
	CardType        CardType        `json:"card_type,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
}

func (d PaymentDetails) Equal(o PaymentDetails) bool {
	return d.Method == o.Method &&
		d.CashReceived.Equal(o.CashReceived) &&
		d.CardType == o.CardType &&
		d.ReferenceNumber == o.ReferenceNumber
}
