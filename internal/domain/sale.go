package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MethodDetails is the variant-specific payload of a sale:
// cash received and change for cash, card type for card, reference for transfer.
type MethodDetails struct {
	CashReceived *decimal.Decimal `json:"cash_received,omitempty"`
	Change       *decimal.Decimal `json:"change,omitempty"`
	CardType     CardType         `json:"card_type,omitempty"`
	Reference    string           `json:"reference,omitempty"`
}

// SaleRequest is the outbound sale record built at checkout.
// TransactionID is stable across retries of the same cart.
type SaleRequest struct {
	TransactionID string          `json:"transaction_id"`
	TerminalID    string          `json:"terminal_id"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Method        PaymentMethod   `json:"method"`
	MethodDetails MethodDetails   `json:"method_details"`
	Timestamp     time.Time       `json:"timestamp"`
}

type Sale struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	TransactionID string          `json:"transaction_id"`
	TerminalID    string          `json:"terminal_id"`
	CashierID     string          `json:"cashier_id"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Method        PaymentMethod   `json:"method"`
	MethodDetails MethodDetails   `json:"method_details"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SaleReceipt struct {
	Code      string           `json:"code"`
	Total     decimal.Decimal  `json:"total"`
	Method    PaymentMethod    `json:"method"`
	Change    *decimal.Decimal `json:"change,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func (s *Sale) Receipt() *SaleReceipt {
	return &SaleReceipt{
		Code:      s.Code,
		Total:     s.Total,
		Method:    s.Method,
		Change:    s.MethodDetails.Change,
		CreatedAt: s.CreatedAt,
	}
}
