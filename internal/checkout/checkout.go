// Package checkout composes the cart and the payment session of a terminal, gates checkout
// and assembles the outbound sale request.
package checkout

import (
	"context"
	"time"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/payment"
)

// SaleSubmitter sends a sale to the sales ledger. It returns the receipt with the sale code.
type SaleSubmitter interface {
	Submit(ctx context.Context, req domain.SaleRequest) (*domain.SaleReceipt, error)
}

// CanCheckout is false for an empty cart; otherwise it is the payment validity for the subtotal.
func CanCheckout(c *cart.Store, p *payment.Session) bool {
	return CheckoutError(c, p) == nil
}

// CheckoutError returns the reason checkout is blocked, or nil.
func CheckoutError(c *cart.Store, p *payment.Session) error {
	if c.IsEmpty() {
		return domain.ErrEmptyCart
	}
	return p.Validate(c.Subtotal())
}

// BuildSaleRequest assembles the sale record. It fails with ErrNotReady when checkout is blocked.
func BuildSaleRequest(c *cart.Store, p *payment.Session, terminalID, transactionID string, now time.Time) (domain.SaleRequest, error) {
	if err := CheckoutError(c, p); err != nil {
		return domain.SaleRequest{}, errNotReady(err)
	}

	total := c.Subtotal()
	details := p.Details()

	var md domain.MethodDetails
	switch details.Method {
	case domain.PaymentMethodCash:
		received := details.CashReceived
		change := p.ComputeChange(total)
		md.CashReceived = &received
		md.Change = &change
	case domain.PaymentMethodCard:
		md.CardType = details.CardType
	case domain.PaymentMethodTransfer:
		md.Reference = details.ReferenceNumber
	}

	return domain.SaleRequest{
		TransactionID: transactionID,
		TerminalID:    terminalID,
		Items:         c.Items(),
		Total:         total,
		Method:        details.Method,
		MethodDetails: md,
		Timestamp:     now.UTC(),
	}, nil
}

type notReadyError struct {
	reason error
}

func errNotReady(reason error) error {
	return &notReadyError{reason: reason}
}

func (e *notReadyError) Error() string {
	return domain.ErrNotReady.Error() + ": " + e.reason.Error()
}

// Unwrap exposes both ErrNotReady and the blocking reason to errors.Is.
func (e *notReadyError) Unwrap() []error {
	return []error{domain.ErrNotReady, e.reason}
}
