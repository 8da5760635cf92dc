package sales

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_pos/internal/circuitbreaker"
	"github.com/fjod/go_pos/internal/domain"
	"go.uber.org/zap"
)

type Submitter interface {
	Submit(ctx context.Context, req domain.SaleRequest) (*domain.SaleReceipt, error)
}

// BreakerSubmitter fails fast with 503 while the ledger keeps failing.
// Rejections of the sale itself do not count as ledger failures.
type BreakerSubmitter struct {
	next    Submitter
	breaker *circuitbreaker.Breaker[*domain.SaleReceipt]
}

func NewBreakerSubmitter(next Submitter, settings circuitbreaker.Settings, log *zap.Logger) *BreakerSubmitter {
	settings.IsSuccessful = IsRejection
	return &BreakerSubmitter{
		next:    next,
		breaker: circuitbreaker.New[*domain.SaleReceipt](settings, log),
	}
}

func (b *BreakerSubmitter) Submit(ctx context.Context, req domain.SaleRequest) (*domain.SaleReceipt, error) {
	receipt, err := b.breaker.Execute(func() (*domain.SaleReceipt, error) {
		return b.next.Submit(ctx, req)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, &SubmitError{Status: http.StatusServiceUnavailable, Code: "sales_unavailable", Err: err}
	}
	return receipt, err
}

// IsRejection reports whether err is nil or a non-temporary rejection of the sale.
func IsRejection(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *SubmitError
	return errors.As(err, &se) && !se.Temporary()
}
