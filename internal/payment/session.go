// Package payment holds the payment method selected for the active sale and validates it.
package payment

import (
	"strings"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

// Session is the payment side of one transaction. Exactly one method variant is active;
// switching methods discards the fields of the previous one.
type Session struct {
	details domain.PaymentDetails
}

func NewSession() *Session {
	return &Session{details: domain.PaymentDetails{CashReceived: decimal.Zero}}
}

// Restore rebuilds a session from persisted details, keeping only the active variant's fields.
func Restore(details domain.PaymentDetails) *Session {
	s := NewSession()
	if !details.Method.IsValid() {
		return s
	}
	s.details.Method = details.Method
	switch details.Method {
	case domain.PaymentMethodCash:
		if !details.CashReceived.IsNegative() {
			s.details.CashReceived = details.CashReceived
		}
	case domain.PaymentMethodCard:
		s.details.CardType = details.CardType
	case domain.PaymentMethodTransfer:
		s.details.ReferenceNumber = strings.TrimSpace(details.ReferenceNumber)
	}
	return s
}

func (s *Session) Method() domain.PaymentMethod {
	return s.details.Method
}

func (s *Session) Details() domain.PaymentDetails {
	return s.details
}

// SelectMethod activates a method. Selecting the active method again keeps its fields.
func (s *Session) SelectMethod(method domain.PaymentMethod) error {
	if !method.IsValid() {
		return domain.ErrUnknownMethod
	}
	if method == s.details.Method {
		return nil
	}
	s.details = domain.PaymentDetails{Method: method, CashReceived: decimal.Zero}
	return nil
}

func (s *Session) SetCashReceived(amount decimal.Decimal) error {
	if s.details.Method != domain.PaymentMethodCash {
		return domain.ErrMethodMismatch
	}
	if amount.IsNegative() {
		return domain.ErrNegativeAmount
	}
	s.details.CashReceived = amount
	return nil
}

func (s *Session) SetCardType(cardType domain.CardType) error {
	if s.details.Method != domain.PaymentMethodCard {
		return domain.ErrMethodMismatch
	}
	s.details.CardType = cardType
	return nil
}

// SetReferenceNumber stores the transfer reference trimmed of surrounding whitespace.
func (s *Session) SetReferenceNumber(ref string) error {
	if s.details.Method != domain.PaymentMethodTransfer {
		return domain.ErrMethodMismatch
	}
	s.details.ReferenceNumber = strings.TrimSpace(ref)
	return nil
}

// Validate reports whether the session can pay total. It returns nil when valid.
func (s *Session) Validate(total decimal.Decimal) error {
	return Validate(s.details, total)
}

// ComputeChange returns cash received minus total for cash payments; it is negative when the
// cash does not cover the total. Other methods give no change.
func (s *Session) ComputeChange(total decimal.Decimal) decimal.Decimal {
	if s.details.Method != domain.PaymentMethodCash {
		return decimal.Zero
	}
	return s.details.CashReceived.Sub(total)
}

func (s *Session) Reset() {
	s.details = domain.PaymentDetails{CashReceived: decimal.Zero}
}

// Validate applies the per-method rules to a set of payment details.
func Validate(details domain.PaymentDetails, total decimal.Decimal) error {
	switch details.Method {
	case domain.PaymentMethodCash:
		if details.CashReceived.LessThan(total) {
			return domain.ErrInsufficientCash
		}
	case domain.PaymentMethodCard:
		if !details.CardType.IsValid() {
			return domain.ErrCardTypeRequired
		}
	case domain.PaymentMethodTransfer:
		if len([]rune(strings.TrimSpace(details.ReferenceNumber))) < domain.MinReferenceLength {
			return domain.ErrReferenceTooShort
		}
	case domain.PaymentMethodNone:
		return domain.ErrMethodRequired
	default:
		return domain.ErrUnknownMethod
	}
	return nil
}
