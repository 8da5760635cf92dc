package http

import (
	"time"

	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/money"
)

type ProductResponse struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Barcode      string `json:"barcode,omitempty"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Price        string `json:"price"`
	DisplayPrice string `json:"display_price"`
	Stock        int    `json:"stock"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
	Currency string            `json:"currency"`
}

type LineItemResponse struct {
	ProductID       int64  `json:"product_id"`
	Name            string `json:"name"`
	Category        string `json:"category,omitempty"`
	UnitPrice       string `json:"unit_price"`
	Quantity        int    `json:"quantity"`
	Subtotal        string `json:"subtotal"`
	DisplaySubtotal string `json:"display_subtotal"`
	AvailableStock  *int   `json:"available_stock,omitempty"`
	// OverCommitted marks a line holding more units than the latest stock snapshot.
	OverCommitted bool `json:"over_committed"`
}

type PaymentResponse struct {
	Method       domain.PaymentMethod `json:"method,omitempty"`
	CashReceived string               `json:"cash_received,omitempty"`
	CardType     domain.CardType      `json:"card_type,omitempty"`
	Reference    string               `json:"reference,omitempty"`
}

type CartResponse struct {
	TerminalID     string             `json:"terminal_id"`
	TransactionID  string             `json:"transaction_id,omitempty"`
	Status         string             `json:"status"`
	Items          []LineItemResponse `json:"items"`
	ItemCount      int                `json:"item_count"`
	Subtotal       string             `json:"subtotal"`
	Total          string             `json:"total"`
	DisplayTotal   string             `json:"display_total"`
	Payment        PaymentResponse    `json:"payment"`
	Change         string             `json:"change"`
	DisplayChange  string             `json:"display_change"`
	CanCheckout    bool               `json:"can_checkout"`
	BlockingReason string             `json:"blocking_reason,omitempty"`
	LastError      string             `json:"last_error,omitempty"`
	Currency       string             `json:"currency"`
}

type CheckoutResponse struct {
	TerminalID     string               `json:"terminal_id"`
	Status         string               `json:"status"`
	Total          string               `json:"total"`
	DisplayTotal   string               `json:"display_total"`
	Method         domain.PaymentMethod `json:"method,omitempty"`
	Change         string               `json:"change"`
	DisplayChange  string               `json:"display_change"`
	CanCheckout    bool                 `json:"can_checkout"`
	BlockingReason string               `json:"blocking_reason,omitempty"`
	BlockingCode   string               `json:"blocking_code,omitempty"`
}

type ReceiptResponse struct {
	Code          string               `json:"code"`
	Total         string               `json:"total"`
	DisplayTotal  string               `json:"display_total"`
	Method        domain.PaymentMethod `json:"method"`
	Change        string               `json:"change,omitempty"`
	DisplayChange string               `json:"display_change,omitempty"`
	CreatedAt     string               `json:"created_at"`
}

type SaleResponse struct {
	Code          string               `json:"code"`
	TransactionID string               `json:"transaction_id"`
	TerminalID    string               `json:"terminal_id"`
	CashierID     string               `json:"cashier_id"`
	Items         []domain.LineItem    `json:"items"`
	Total         string               `json:"total"`
	DisplayTotal  string               `json:"display_total"`
	Method        domain.PaymentMethod `json:"method"`
	MethodDetails domain.MethodDetails `json:"method_details"`
	CreatedAt     string               `json:"created_at"`
}

type SalesResponse struct {
	Sales []SaleResponse `json:"sales"`
}

func toProductResponse(p *domain.Product, f *money.Formatter) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		Code:         p.Code,
		Barcode:      p.Barcode,
		Name:         p.Name,
		Category:     p.Category,
		Price:        f.Plain(p.Price),
		DisplayPrice: f.Format(p.Price),
		Stock:        p.Stock,
	}
}

// toCartResponse renders the view. levels may be nil when stock could not be read.
func toCartResponse(v checkout.View, levels map[int64]domain.StockInfo, f *money.Formatter) CartResponse {
	items := make([]LineItemResponse, 0, len(v.Items))
	count := 0
	for _, item := range v.Items {
		line := LineItemResponse{
			ProductID:       item.ProductID,
			Name:            item.Name,
			Category:        item.Category,
			UnitPrice:       f.Plain(item.UnitPrice),
			Quantity:        item.Quantity,
			Subtotal:        f.Plain(item.Subtotal()),
			DisplaySubtotal: f.Format(item.Subtotal()),
		}
		if info, ok := levels[item.ProductID]; ok {
			available := info.AvailableStock
			line.AvailableStock = &available
			line.OverCommitted = item.Quantity > available
		}
		count += item.Quantity
		items = append(items, line)
	}

	resp := CartResponse{
		TerminalID:    v.TerminalID,
		TransactionID: v.TransactionID,
		Status:        string(v.Status),
		Items:         items,
		ItemCount:     count,
		Subtotal:      f.Plain(v.Subtotal),
		Total:         f.Plain(v.Total),
		DisplayTotal:  f.Format(v.Total),
		Payment:       toPaymentResponse(v.Payment, f),
		Change:        f.Plain(v.Change),
		DisplayChange: f.Format(v.Change),
		CanCheckout:   v.CanCheckout,
		Currency:      f.Currency(),
	}
	if v.Blocker != nil {
		resp.BlockingReason = v.Blocker.Error()
	}
	if v.LastError != nil {
		resp.LastError = v.LastError.Error()
	}
	return resp
}

func toPaymentResponse(d domain.PaymentDetails, f *money.Formatter) PaymentResponse {
	resp := PaymentResponse{Method: d.Method}
	switch d.Method {
	case domain.PaymentMethodCash:
		resp.CashReceived = f.Plain(d.CashReceived)
	case domain.PaymentMethodCard:
		resp.CardType = d.CardType
	case domain.PaymentMethodTransfer:
		resp.Reference = d.ReferenceNumber
	}
	return resp
}

func toCheckoutResponse(v checkout.View, f *money.Formatter) CheckoutResponse {
	resp := CheckoutResponse{
		TerminalID:    v.TerminalID,
		Status:        string(v.Status),
		Total:         f.Plain(v.Total),
		DisplayTotal:  f.Format(v.Total),
		Method:        v.Payment.Method,
		Change:        f.Plain(v.Change),
		DisplayChange: f.Format(v.Change),
		CanCheckout:   v.CanCheckout,
	}
	if v.Blocker != nil {
		_, resp.BlockingCode = classify(v.Blocker)
		resp.BlockingReason = v.Blocker.Error()
	}
	return resp
}

func toReceiptResponse(r *domain.SaleReceipt, f *money.Formatter) ReceiptResponse {
	resp := ReceiptResponse{
		Code:         r.Code,
		Total:        f.Plain(r.Total),
		DisplayTotal: f.Format(r.Total),
		Method:       r.Method,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.Change != nil {
		resp.Change = f.Plain(*r.Change)
		resp.DisplayChange = f.Format(*r.Change)
	}
	return resp
}

func toSaleResponse(s *domain.Sale, f *money.Formatter) SaleResponse {
	return SaleResponse{
		Code:          s.Code,
		TransactionID: s.TransactionID,
		TerminalID:    s.TerminalID,
		CashierID:     s.CashierID,
		Items:         s.Items,
		Total:         f.Plain(s.Total),
		DisplayTotal:  f.Format(s.Total),
		Method:        s.Method,
		MethodDetails: s.MethodDetails,
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
	}
}
