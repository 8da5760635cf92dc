package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/sales"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts a domain or service error into its HTTP status.
func handleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var submitErr *sales.SubmitError
	if errors.As(err, &submitErr) {
		if submitErr.Temporary() {
			log.Error("sale submission unavailable", zap.Error(err))
		}
		respondError(w, submitErr.Status, submitErr.Code, submitErr.Error())
		return
	}

	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, status, code, "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict, "out_of_stock"
	case errors.Is(err, domain.ErrMaxStockReached):
		return http.StatusConflict, "max_stock_reached"
	case errors.Is(err, domain.ErrSubmitInProgress):
		return http.StatusConflict, "submit_in_progress"
	case errors.Is(err, domain.ErrSessionConflict):
		return http.StatusConflict, "session_conflict"
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound, "item_not_found"
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, sales.ErrSaleNotFound):
		return http.StatusNotFound, "sale_not_found"
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, domain.ErrInsufficientCash):
		return http.StatusUnprocessableEntity, "insufficient_cash"
	case errors.Is(err, domain.ErrCardTypeRequired):
		return http.StatusUnprocessableEntity, "card_type_required"
	case errors.Is(err, domain.ErrReferenceTooShort):
		return http.StatusUnprocessableEntity, "reference_too_short"
	case errors.Is(err, domain.ErrMethodRequired):
		return http.StatusUnprocessableEntity, "method_required"
	case errors.Is(err, domain.ErrUnknownMethod):
		return http.StatusUnprocessableEntity, "unknown_method"
	case errors.Is(err, domain.ErrMethodMismatch):
		return http.StatusUnprocessableEntity, "method_mismatch"
	case errors.Is(err, domain.ErrNegativeAmount):
		return http.StatusUnprocessableEntity, "negative_amount"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, "invalid_quantity"
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusUnprocessableEntity, "not_ready"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
