package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/fjod/go_pos/internal/checkout")

// Coordinator owns the transaction open on one terminal.
//
// Mutations are serialised. While a submission is in flight every mutation and any second
// submit is rejected with ErrSubmitInProgress; a failed submission keeps the cart intact.
type Coordinator struct {
	mu            sync.Mutex
	terminalID    string
	transactionID string
	cart          *cart.Store
	payment       *payment.Session
	status        domain.CheckoutStatus
	lastErr       error
	createdAt     time.Time
	version       int64 // revision of the session last saved or restored

	now   func() time.Time
	newID func() string
}

func NewCoordinator(terminalID string) *Coordinator {
	return &Coordinator{
		terminalID: terminalID,
		cart:       cart.NewStore(),
		payment:    payment.NewSession(),
		status:     domain.CheckoutStatusEmpty,
		createdAt:  time.Now(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// RestoreCoordinator rebuilds a coordinator from a persisted session.
// A session persisted mid-submission is restored as failed so the cashier can retry it.
func RestoreCoordinator(s *domain.TerminalSession) *Coordinator {
	c := NewCoordinator(s.TerminalID)
	c.transactionID = s.TransactionID
	c.version = s.Version
	c.cart = cart.Restore(s.Items)
	c.payment = payment.Restore(s.Payment)
	if !s.CreatedAt.IsZero() {
		c.createdAt = s.CreatedAt
	}

	switch s.Status {
	case domain.CheckoutStatusSubmitting, domain.CheckoutStatusFailed:
		if !c.cart.IsEmpty() {
			c.status = domain.CheckoutStatusFailed
			return c
		}
	}
	c.status = c.derivedStatus()
	return c
}

func (c *Coordinator) TerminalID() string {
	return c.terminalID
}

func (c *Coordinator) AddItem(product domain.Product, stock domain.StockInfo) error {
	return c.mutate(func() error {
		return c.cart.AddItem(product, stock)
	})
}

func (c *Coordinator) SetQuantity(productID int64, quantity int, stock domain.StockInfo) error {
	return c.mutate(func() error {
		return c.cart.SetQuantity(productID, quantity, stock)
	})
}

// IncrementQuantity returns the number of units actually added or removed.
func (c *Coordinator) IncrementQuantity(productID int64, delta int, stock domain.StockInfo) (int, error) {
	var applied int
	err := c.mutate(func() error {
		var err error
		applied, err = c.cart.IncrementQuantity(productID, delta, stock)
		return err
	})
	return applied, err
}

func (c *Coordinator) RemoveItem(productID int64) error {
	return c.mutate(func() error {
		c.cart.RemoveItem(productID)
		return nil
	})
}

func (c *Coordinator) SelectMethod(method domain.PaymentMethod) error {
	return c.mutate(func() error {
		return c.payment.SelectMethod(method)
	})
}

func (c *Coordinator) SetCashReceived(amount decimal.Decimal) error {
	return c.mutate(func() error {
		return c.payment.SetCashReceived(amount)
	})
}

func (c *Coordinator) SetCardType(cardType domain.CardType) error {
	return c.mutate(func() error {
		return c.payment.SetCardType(cardType)
	})
}

func (c *Coordinator) SetReferenceNumber(ref string) error {
	return c.mutate(func() error {
		return c.payment.SetReferenceNumber(ref)
	})
}

// PaymentUpdate selects a method and sets at most one field of it.
type PaymentUpdate struct {
	Method       domain.PaymentMethod
	CashReceived *decimal.Decimal
	CardType     *domain.CardType
	Reference    *string
}

// SetPayment applies the update as one mutation. When the field is rejected the previous
// payment details are put back, including those of a method the update switched away from.
func (c *Coordinator) SetPayment(u PaymentUpdate) error {
	return c.mutate(func() error {
		before := c.payment.Details()
		if err := applyPayment(c.payment, u); err != nil {
			c.payment = payment.Restore(before)
			return err
		}
		return nil
	})
}

func applyPayment(p *payment.Session, u PaymentUpdate) error {
	if err := p.SelectMethod(u.Method); err != nil {
		return err
	}
	switch {
	case u.CashReceived != nil:
		return p.SetCashReceived(*u.CashReceived)
	case u.CardType != nil:
		return p.SetCardType(*u.CardType)
	case u.Reference != nil:
		return p.SetReferenceNumber(*u.Reference)
	}
	return nil
}

func (c *Coordinator) CanCheckout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CanCheckout(c.cart, c.payment)
}

// CheckoutError returns why checkout is blocked, or nil.
func (c *Coordinator) CheckoutError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CheckoutError(c.cart, c.payment)
}

func (c *Coordinator) BuildSaleRequest() (domain.SaleRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildSaleRequest()
}

func (c *Coordinator) buildSaleRequest() (domain.SaleRequest, error) {
	if c.transactionID == "" && !c.cart.IsEmpty() {
		c.transactionID = c.newID()
	}
	return BuildSaleRequest(c.cart, c.payment, c.terminalID, c.transactionID, c.now())
}

// OnSubmitSuccess clears the transaction after the sale was accepted.
func (c *Coordinator) OnSubmitSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// CompleteTransaction clears the transaction when transactionID is the one open here and no
// submission is running. It reports whether the terminal was cleared.
func (c *Coordinator) CompleteTransaction(transactionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if transactionID == "" || c.transactionID != transactionID || c.status == domain.CheckoutStatusSubmitting {
		return false
	}
	c.reset()
	return true
}

// Cancel discards the open transaction.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == domain.CheckoutStatusSubmitting {
		return domain.ErrSubmitInProgress
	}
	c.reset()
	return nil
}

// Submit builds the sale request and hands it to the submitter. Only one submission may be in
// flight; the lock is not held while the submitter runs. Errors from the submitter are returned
// as-is and are never retried here.
func (c *Coordinator) Submit(ctx context.Context, submitter SaleSubmitter) (*domain.SaleReceipt, error) {
	ctx, span := tracer.Start(ctx, "checkout.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("pos.terminal_id", c.terminalID))

	c.mu.Lock()
	if c.status == domain.CheckoutStatusSubmitting {
		c.mu.Unlock()
		return nil, domain.ErrSubmitInProgress
	}
	req, err := c.buildSaleRequest()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := c.setStatus(domain.CheckoutStatusSubmitting); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.lastErr = nil
	c.mu.Unlock()

	span.SetAttributes(
		attribute.String("pos.transaction_id", req.TransactionID),
		attribute.String("pos.total", req.Total.StringFixed(2)),
	)
	receipt, submitErr := submitter.Submit(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if submitErr != nil {
		c.status = domain.CheckoutStatusFailed
		c.lastErr = submitErr
		span.RecordError(submitErr)
		span.SetStatus(codes.Error, submitErr.Error())
		return nil, submitErr
	}

	c.status = domain.CheckoutStatusCompleted
	c.reset()
	return receipt, nil
}

// View is a consistent read of the transaction.
type View struct {
	TerminalID    string
	TransactionID string
	Status        domain.CheckoutStatus
	Items         []domain.LineItem
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
	Payment       domain.PaymentDetails
	Change        decimal.Decimal
	CanCheckout   bool
	Blocker       error
	LastError     error
}

func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	subtotal := c.cart.Subtotal()
	blocker := CheckoutError(c.cart, c.payment)
	return View{
		TerminalID:    c.terminalID,
		TransactionID: c.transactionID,
		Status:        c.status,
		Items:         c.cart.Items(),
		Subtotal:      subtotal,
		Total:         subtotal,
		Payment:       c.payment.Details(),
		Change:        c.payment.ComputeChange(subtotal),
		CanCheckout:   blocker == nil,
		Blocker:       blocker,
		LastError:     c.lastErr,
	}
}

// Snapshot returns the persistable state of the transaction as the next revision.
func (c *Coordinator) Snapshot() *domain.TerminalSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &domain.TerminalSession{
		TerminalID:    c.terminalID,
		TransactionID: c.transactionID,
		Items:         c.cart.Items(),
		Payment:       c.payment.Details(),
		Status:        c.status,
		Version:       c.version + 1,
		CreatedAt:     c.createdAt,
		UpdatedAt:     c.now(),
	}
}

func (c *Coordinator) Status() domain.CheckoutStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) Version() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *Coordinator) markSaved(version int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = max(c.version, version)
}

// outdatedBy reports whether the stored session s (nil when there is none) was written by
// someone else after this coordinator was last saved or restored. A coordinator in the middle
// of a submission is never outdated.
func (c *Coordinator) outdatedBy(s *domain.TerminalSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == domain.CheckoutStatusSubmitting {
		return false
	}
	if s == nil {
		return c.version > 0
	}
	return s.Version > c.version
}

func (c *Coordinator) mutate(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == domain.CheckoutStatusSubmitting {
		return domain.ErrSubmitInProgress
	}
	if c.status != domain.CheckoutStatusFailed {
		if err := fn(); err != nil {
			return err
		}
		return c.setStatus(c.derivedStatus())
	}

	items, details := c.cart.Items(), c.payment.Details()
	if err := fn(); err != nil {
		return err
	}
	// an edit that changed nothing stays failed and keeps the transaction id for the retry
	if domain.SameItems(items, c.cart.Items()) && details.Equal(c.payment.Details()) {
		return nil
	}
	// corrected content after a failure is a new attempt
	c.transactionID = ""
	c.lastErr = nil
	return c.setStatus(c.derivedStatus())
}

func (c *Coordinator) derivedStatus() domain.CheckoutStatus {
	switch {
	case c.cart.IsEmpty():
		return domain.CheckoutStatusEmpty
	case c.payment.Method() == domain.PaymentMethodNone:
		return domain.CheckoutStatusBuilding
	case c.payment.Validate(c.cart.Subtotal()) == nil:
		return domain.CheckoutStatusReady
	default:
		return domain.CheckoutStatusMethodSelected
	}
}

func (c *Coordinator) setStatus(next domain.CheckoutStatus) error {
	if next == c.status {
		return nil
	}
	if !domain.CanTransitionTo(c.status, next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, c.status, next)
	}
	c.status = next
	return nil
}

func (c *Coordinator) reset() {
	c.cart.Clear()
	c.payment.Reset()
	c.transactionID = ""
	c.lastErr = nil
	c.createdAt = c.now()
	c.status = domain.CheckoutStatusEmpty
}
