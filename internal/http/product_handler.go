package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/money"
	"go.uber.org/zap"
)

// Catalog is the product read side used by the handlers.
type Catalog interface {
	Products(ctx context.Context) ([]*domain.Product, error)
	Lookup(ctx context.Context, code string) (*domain.Product, error)
	StockInfo(ctx context.Context, id int64) (*domain.Product, domain.StockInfo, error)
	StockLevels(ctx context.Context, ids []int64) (map[int64]domain.StockInfo, error)
}

type ProductHandler struct {
	catalog Catalog
	money   *money.Formatter
	log     *zap.Logger
	timeout time.Duration
}

func NewProductHandler(catalog Catalog, formatter *money.Formatter, log *zap.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		money:   formatter,
		log:     log,
		timeout: timeout,
	}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Products(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	resp := ProductsResponse{
		Products: make([]ProductResponse, len(products)),
		Currency: h.money.Currency(),
	}
	for i, p := range products {
		resp.Products[i] = toProductResponse(p, h.money)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Lookup finds a product by its code or barcode, as typed or scanned at the terminal.
func (h *ProductHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "code query parameter is required")
		return
	}

	p, err := h.catalog.Lookup(ctx, code)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p, h.money))
}
