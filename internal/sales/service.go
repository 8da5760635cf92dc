// Package sales records completed sales in the ledger and takes their stock out of the shared
// stock ledger and the local inventory.
package sales

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/inventory"
	"github.com/fjod/go_pos/internal/logger"
	"github.com/fjod/go_pos/internal/payment"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type SaleRepository interface {
	CreateSale(ctx context.Context, sale *domain.Sale) error
	GetSaleByCode(ctx context.Context, code string) (*domain.Sale, error)
	GetSaleByTransactionID(ctx context.Context, transactionID string) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]*domain.Sale, error)
	SeedStock(ctx context.Context, levels map[int64]int) error
	StockLevels(ctx context.Context, productIDs []int64) (map[int64]int, error)
}

type Inventory interface {
	Reserve(transactionID string, items []inventory.ReservationItem) (*inventory.Reservation, error)
	Confirm(reservationID string) error
	Release(reservationID string) error
	SetStock(productID int64, quantity int) error
}

type Catalog interface {
	Product(ctx context.Context, id int64) (*domain.Product, error)
}

// StockWriter mirrors ledger stock into the catalogue.
type StockWriter interface {
	SetStock(ctx context.Context, productID int64, stock int) error
}

type Service struct {
	repo      SaleRepository
	inventory Inventory
	catalog   Catalog
	stock     StockWriter
	log       *zap.Logger
}

func NewService(repo SaleRepository, inv Inventory, cat Catalog, stock StockWriter, log *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		inventory: inv,
		catalog:   cat,
		stock:     stock,
		log:       log,
	}
}

// Submit records a sale. Submitting the same transaction again returns the receipt of the
// sale already recorded for it.
func (s *Service) Submit(ctx context.Context, req domain.SaleRequest) (*domain.SaleReceipt, error) {
	if err := validateRequest(req); err != nil {
		return nil, badRequest(fmt.Errorf("%w: %w", ErrInvalidSale, err))
	}

	cashierID, ok := auth.CashierFromContext(ctx)
	if !ok {
		return nil, &SubmitError{Status: http.StatusUnauthorized, Code: "unauthorized", Err: ErrCashierRequired}
	}

	log := logger.FromContext(ctx, s.log).With(
		zap.String("transaction_id", req.TransactionID),
		zap.String("terminal_id", req.TerminalID),
	)

	existing, err := s.repo.GetSaleByTransactionID(ctx, req.TransactionID)
	switch {
	case err == nil:
		log.Info("sale already recorded, returning existing receipt", zap.String("sale_code", existing.Code))
		return s.replay(existing, req)
	case !errors.Is(err, ErrSaleNotFound):
		return nil, fmt.Errorf("failed to look up transaction: %w", err)
	}

	if err := s.checkPrices(ctx, req.Items); err != nil {
		return nil, err
	}

	reservation, err := s.inventory.Reserve(req.TransactionID, reservationItems(req.Items))
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrInsufficientStock):
			return nil, conflict("insufficient_stock", err)
		case errors.Is(err, inventory.ErrProductNotFound):
			return nil, conflict("product_unavailable", err)
		}
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	sale := &domain.Sale{
		ID:            uuid.New(),
		TransactionID: req.TransactionID,
		TerminalID:    req.TerminalID,
		CashierID:     cashierID,
		Items:         req.Items,
		Total:         req.Total,
		Method:        req.Method,
		MethodDetails: req.MethodDetails,
	}
	if err := s.repo.CreateSale(ctx, sale); err != nil {
		s.release(log, reservation.ID)
		if errors.Is(err, ErrStockExhausted) {
			s.syncStock(ctx, log, req.Items)
			return nil, conflict("insufficient_stock", err)
		}
		if errors.Is(err, ErrDuplicateSale) {
			// a concurrent submit of the same transaction won
			existing, getErr := s.repo.GetSaleByTransactionID(ctx, req.TransactionID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrent sale: %w", getErr)
			}
			return s.replay(existing, req)
		}
		return nil, fmt.Errorf("failed to record sale: %w", err)
	}

	if err := s.inventory.Confirm(reservation.ID); err != nil {
		log.Error("failed to confirm stock reservation", zap.String("reservation_id", reservation.ID), zap.Error(err))
	}
	s.syncStock(ctx, log, req.Items)

	log.Info("sale recorded",
		zap.String("sale_code", sale.Code),
		zap.String("cashier_id", cashierID),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("method", sale.Method.String()))
	return sale.Receipt(), nil
}

// SyncStock copies the ledger level of the given products into the local inventory and the
// catalogue. Units reserved locally stay reserved.
func (s *Service) SyncStock(ctx context.Context, productIDs []int64) error {
	levels, err := s.repo.StockLevels(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("failed to read stock levels: %w", err)
	}

	var errs []error
	for id, quantity := range levels {
		if err := s.inventory.SetStock(id, quantity); err != nil {
			errs = append(errs, fmt.Errorf("inventory stock of product %d: %w", id, err))
		}
		if err := s.stock.SetStock(ctx, id, quantity); err != nil {
			errs = append(errs, fmt.Errorf("catalogue stock of product %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// SeedStock adds the products the ledger does not know yet and then loads the ledger level of
// every given product. Levels already in the ledger win over the ones passed in.
func (s *Service) SeedStock(ctx context.Context, levels map[int64]int) error {
	if err := s.repo.SeedStock(ctx, levels); err != nil {
		return fmt.Errorf("failed to seed stock ledger: %w", err)
	}
	return s.SyncStock(ctx, slices.Collect(maps.Keys(levels)))
}

func (s *Service) GetSale(ctx context.Context, code string) (*domain.Sale, error) {
	return s.repo.GetSaleByCode(ctx, code)
}

// RecentSales lists the latest sales, newest first. The limit is clamped to [1, MaxListLimit].
func (s *Service) RecentSales(ctx context.Context, limit int) ([]*domain.Sale, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	return s.repo.ListSales(ctx, limit)
}

func (s *Service) replay(existing *domain.Sale, req domain.SaleRequest) (*domain.SaleReceipt, error) {
	if existing.TerminalID != req.TerminalID || !existing.Total.Equal(req.Total) {
		return nil, conflict("duplicate_transaction", ErrDuplicateSale)
	}
	return existing.Receipt(), nil
}

func (s *Service) checkPrices(ctx context.Context, items []domain.LineItem) error {
	for _, item := range items {
		product, err := s.catalog.Product(ctx, item.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return conflict("product_unavailable", fmt.Errorf("product %d: %w", item.ProductID, err))
		}
		if err != nil {
			return fmt.Errorf("failed to load product %d: %w", item.ProductID, err)
		}
		if !product.Price.Equal(item.UnitPrice) {
			return conflict("price_changed", fmt.Errorf("product %d: %w", item.ProductID, ErrPriceChanged))
		}
	}
	return nil
}

// syncStock is SyncStock for the products of a sale. The sale stands either way, so failures
// are only logged.
func (s *Service) syncStock(ctx context.Context, log *zap.Logger, items []domain.LineItem) {
	if err := s.SyncStock(ctx, productIDs(items)); err != nil {
		log.Error("failed to sync stock from ledger", zap.Error(err))
	}
}

func (s *Service) release(log *zap.Logger, reservationID string) {
	if err := s.inventory.Release(reservationID); err != nil {
		log.Error("failed to release stock reservation", zap.String("reservation_id", reservationID), zap.Error(err))
	}
}

func validateRequest(req domain.SaleRequest) error {
	if req.TransactionID == "" {
		return errors.New("transaction id is required")
	}
	if req.TerminalID == "" {
		return errors.New("terminal id is required")
	}
	if len(req.Items) == 0 {
		return domain.ErrEmptyCart
	}

	seen := make(map[int64]struct{}, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("product %d: %w", item.ProductID, domain.ErrInvalidQuantity)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("product %d: %w", item.ProductID, domain.ErrNegativeAmount)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrDuplicateLine)
		}
		seen[item.ProductID] = struct{}{}
	}

	if !req.Total.Equal(domain.SumItems(req.Items)) {
		return ErrTotalMismatch
	}

	details := domain.PaymentDetails{
		Method:          req.Method,
		CardType:        req.MethodDetails.CardType,
		ReferenceNumber: req.MethodDetails.Reference,
	}
	if req.Method == domain.PaymentMethodCash {
		if req.MethodDetails.CashReceived == nil {
			return domain.ErrInsufficientCash
		}
		details.CashReceived = *req.MethodDetails.CashReceived
		if change := req.MethodDetails.Change; change != nil && !change.Equal(details.CashReceived.Sub(req.Total)) {
			return ErrChangeMismatch
		}
	}
	return payment.Validate(details, req.Total)
}

func reservationItems(items []domain.LineItem) []inventory.ReservationItem {
	out := make([]inventory.ReservationItem, len(items))
	for i, item := range items {
		out[i] = inventory.ReservationItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}

func productIDs(items []domain.LineItem) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ProductID
	}
	return out
}
