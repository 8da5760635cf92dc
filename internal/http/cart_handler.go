package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/logger"
	"github.com/fjod/go_pos/internal/money"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxTerminalIDLength = 64

// Terminals gives access to the transaction open on each terminal.
type Terminals interface {
	View(ctx context.Context, terminalID string) (checkout.View, error)
	Update(ctx context.Context, terminalID string, fn func(*checkout.Coordinator) error) (checkout.View, error)
	Submit(ctx context.Context, terminalID string, submitter checkout.SaleSubmitter) (*domain.SaleReceipt, checkout.View, error)
}

type CartHandler struct {
	catalog   Catalog
	terminals Terminals
	money     *money.Formatter
	log       *zap.Logger
	timeout   time.Duration
}

func NewCartHandler(catalog Catalog, terminals Terminals, formatter *money.Formatter, log *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		catalog:   catalog,
		terminals: terminals,
		money:     formatter,
		log:       log,
		timeout:   timeout,
	}
}

// AddItemRequestDTO names the product by id or by code/barcode.
type AddItemRequestDTO struct {
	ProductID int64  `json:"product_id"`
	Code      string `json:"code"`
}

type UpdateQuantityRequestDTO struct {
	Quantity json.Number `json:"quantity"`
}

type IncrementRequestDTO struct {
	Delta json.Number `json:"delta"`
}

type IncrementResponse struct {
	Applied int          `json:"applied"`
	Cart    CartResponse `json:"cart"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, h.cartResponse(ctx, view))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	terminalID, ok := terminalIDParam(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.ProductID <= 0 && req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive or a code must be given")
		return
	}

	var (
		product *domain.Product
		stock   domain.StockInfo
		err     error
	)
	if req.ProductID > 0 {
		product, stock, err = h.catalog.StockInfo(ctx, req.ProductID)
	} else {
		product, err = h.catalog.Lookup(ctx, req.Code)
		if err == nil {
			stock = product.StockInfo()
		}
	}
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	view, err := h.terminals.Update(ctx, terminalID, func(c *checkout.Coordinator) error {
		return c.AddItem(*product, stock)
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.cartResponse(ctx, view))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	terminalID, ok := terminalIDParam(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// a fractional or non-numeric quantity is a validation error, not a malformed body
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			handleError(w, r, h.log, fmt.Errorf("%w: %v", domain.ErrInvalidQuantity, err))
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	quantity, err := cart.ParseQuantity(req.Quantity.String())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	stock, err := h.stockFor(ctx, productID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	view, err := h.terminals.Update(ctx, terminalID, func(c *checkout.Coordinator) error {
		return c.SetQuantity(productID, quantity, stock)
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(ctx, view))
}

// Increment adds delta units to a line; a missing delta counts as one more unit.
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	terminalID, ok := terminalIDParam(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req IncrementRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Delta == "" {
		req.Delta = "1"
	}
	delta, err := cart.ParseQuantity(req.Delta.String())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	stock, err := h.stockFor(ctx, productID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	var applied int
	view, err := h.terminals.Update(ctx, terminalID, func(c *checkout.Coordinator) error {
		var err error
		applied, err = c.IncrementQuantity(productID, delta, stock)
		return err
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, IncrementResponse{Applied: applied, Cart: h.cartResponse(ctx, view)})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	terminalID, ok := terminalIDParam(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.terminals.Update(ctx, terminalID, func(c *checkout.Coordinator) error {
		return c.RemoveItem(productID)
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(ctx, view))
}

// Cancel discards the open transaction of the terminal.
func (h *CartHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	terminalID, ok := terminalIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.terminals.Update(ctx, terminalID, func(c *checkout.Coordinator) error {
		return c.Cancel()
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	logger.FromContext(ctx, h.log).Info("transaction cancelled", zap.String("terminal_id", terminalID))
	respondJSON(w, http.StatusOK, h.cartResponse(ctx, view))
}

// stockFor returns the latest stock snapshot of a product. A product gone from the
// catalogue has no stock left, so its line can only be removed. Any line held above its
// stock can only be set to a quantity within the stock, or removed.
func (h *CartHandler) stockFor(ctx context.Context, productID int64) (domain.StockInfo, error) {
	levels, err := h.catalog.StockLevels(ctx, []int64{productID})
	if err != nil {
		return domain.StockInfo{}, err
	}
	if info, ok := levels[productID]; ok {
		return info, nil
	}
	return domain.StockInfo{ProductID: productID}, nil
}

func (h *CartHandler) cartResponse(ctx context.Context, view checkout.View) CartResponse {
	ids := make([]int64, len(view.Items))
	for i, item := range view.Items {
		ids[i] = item.ProductID
	}

	var levels map[int64]domain.StockInfo
	if len(ids) > 0 {
		var err error
		levels, err = h.catalog.StockLevels(ctx, ids)
		if err != nil {
			logger.FromContext(ctx, h.log).Warn("failed to read stock levels for cart view", zap.Error(err))
		}
	}
	return toCartResponse(view, levels, h.money)
}

func terminalIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "terminal_id")
	if id == "" || len(id) > maxTerminalIDLength || strings.IndexFunc(id, invalidTerminalRune) >= 0 {
		respondError(w, http.StatusBadRequest, "invalid_terminal_id", "terminal_id must be 1-64 letters, digits, '-' or '_'")
		return "", false
	}
	return id, true
}

func invalidTerminalRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		return false
	}
	return true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
