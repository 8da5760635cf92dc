package domain

import "time"

// TerminalSession is the persisted state of the transaction open on a terminal.
// Version grows by one with every save; a save is only accepted on top of Version-1.
type TerminalSession struct {
	TerminalID    string         `json:"terminal_id"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Items         []LineItem     `json:"items"`
	Payment       PaymentDetails `json:"payment"`
	Status        CheckoutStatus `json:"status"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
