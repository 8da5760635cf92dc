package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/money"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Catalog        Catalog
	Terminals      Terminals
	Submitter      checkout.SaleSubmitter
	Sales          SalesReader
	Money          *money.Formatter
	Log            *zap.Logger
	CashierTokens  map[string]string
	JWTSecret      []byte
	RequestTimeout time.Duration
	MaxBodySize    int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	products := NewProductHandler(cfg.Catalog, cfg.Money, cfg.Log, cfg.RequestTimeout)
	carts := NewCartHandler(cfg.Catalog, cfg.Terminals, cfg.Money, cfg.Log, cfg.RequestTimeout)
	checkouts := NewCheckoutHandler(cfg.Terminals, cfg.Submitter, cfg.Money, cfg.Log, cfg.RequestTimeout)
	sales := NewSalesHandler(cfg.Sales, cfg.Money, cfg.Log, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodySize))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.CashierTokens, cfg.JWTSecret))

		r.Get("/products", products.List)
		r.Get("/products/lookup", products.Lookup)

		r.Route("/terminals/{terminal_id}", func(r chi.Router) {
			r.Get("/cart", carts.GetCart)
			r.Delete("/cart", carts.Cancel)
			r.Post("/cart/items", carts.AddItem)
			r.Put("/cart/items/{product_id}", carts.UpdateQuantity)
			r.Post("/cart/items/{product_id}/increment", carts.Increment)
			r.Delete("/cart/items/{product_id}", carts.RemoveItem)

			r.Put("/payment", checkouts.SetPayment)
			r.Get("/checkout", checkouts.GetCheckout)
			r.Post("/checkout", checkouts.Submit)
		})

		r.Get("/sales", sales.List)
		r.Get("/sales/{code}", sales.Get)
	})

	return r
}
