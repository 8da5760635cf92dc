package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	terminals Terminals
	submitter checkout.SaleSubmitter
	money     *money.Formatter
	log       *zap.Logger
	timeout   time.Duration
}

func NewCheckoutHandler(terminals Terminals, submitter checkout.SaleSubmitter, formatter *money.Formatter, log *zap.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		terminals: terminals,
		submitter: submitter,
		money:     formatter,
		log:       log,
		timeout:   timeout,
	}
}

// PaymentRequestDTO selects the method and sets the fields of that method.
// Fields of another method are rejected.
type PaymentRequestDTO struct {
	Method       string           `json:"method"`
	CashReceived *decimal.Decimal `json:"cash_received"`
	CardType     *string          `json:"card_type"`
	Reference    *string          `json:"reference"`
}

type CheckoutResultResponse struct {
	Receipt ReceiptResponse  `json:"receipt"`
	Cart    CheckoutResponse `json:"cart"`
}

func (h *CheckoutHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	terminalID, ok := terminalIDParam(w, r)
	if !ok {
		return
	}

	var req PaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	apply, err := req.changes()
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	view, err := h.terminals.Update(ctx, terminalID, apply)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutResponse(view, h.money))
}

// changes validates the request up front; the update is then applied as one mutation.
func (req PaymentRequestDTO) changes() (func(*checkout.Coordinator) error, error) {
	if strings.TrimSpace(req.Method) == "" {
		return nil, domain.ErrMethodRequired
	}
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, req.Method)
	}

	if req.CashReceived != nil && method != domain.PaymentMethodCash ||
		req.CardType != nil && method != domain.PaymentMethodCard ||
		req.Reference != nil && method != domain.PaymentMethodTransfer {
		return nil, domain.ErrMethodMismatch
	}
	if req.CashReceived != nil && req.CashReceived.IsNegative() {
		return nil, domain.ErrNegativeAmount
	}

	update := checkout.PaymentUpdate{
		Method:       method,
		CashReceived: req.CashReceived,
		Reference:    req.Reference,
	}
	if req.CardType != nil {
		cardType := domain.CardType(strings.ToLower(strings.TrimSpace(*req.CardType)))
		if !cardType.IsValid() {
			return nil, fmt.Errorf("%w: %q is not debit or credit", domain.ErrCardTypeRequired, *req.CardType)
		}
		update.CardType = &cardType
	}

	return func(c *checkout.Coordinator) error {
		return c.SetPayment(update)
	}, nil
}

func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	terminalID, ok := terminalIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.terminals.View(ctx, terminalID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutResponse(view, h.money))
}

// Submit sends the terminal's sale. A failed submission keeps the cart so it can be retried.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	terminalID, ok := terminalIDParam(w, r)
	if !ok {
		return
	}

	receipt, view, err := h.terminals.Submit(ctx, terminalID, h.submitter)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, CheckoutResultResponse{
		Receipt: toReceiptResponse(receipt, h.money),
		Cart:    toCheckoutResponse(view, h.money),
	})
}
