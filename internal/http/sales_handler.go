package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/money"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SalesReader reads recorded sales.
type SalesReader interface {
	GetSale(ctx context.Context, code string) (*domain.Sale, error)
	RecentSales(ctx context.Context, limit int) ([]*domain.Sale, error)
}

type SalesHandler struct {
	sales   SalesReader
	money   *money.Formatter
	log     *zap.Logger
	timeout time.Duration
}

func NewSalesHandler(sales SalesReader, formatter *money.Formatter, log *zap.Logger, timeout time.Duration) *SalesHandler {
	return &SalesHandler{
		sales:   sales,
		money:   formatter,
		log:     log,
		timeout: timeout,
	}
}

func (h *SalesHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sale, err := h.sales.GetSale(ctx, chi.URLParam(r, "code"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toSaleResponse(sale, h.money))
}

// List returns the most recent sales, newest first.
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = v
	}

	sales, err := h.sales.RecentSales(ctx, limit)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	resp := SalesResponse{Sales: make([]SaleResponse, len(sales))}
	for i, s := range sales {
		resp.Sales[i] = toSaleResponse(s, h.money)
	}
	respondJSON(w, http.StatusOK, resp)
}
