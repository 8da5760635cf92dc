package session

import (
	"fmt"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

// Money is stored as decimal strings so amounts round-trip exactly.

type sessionDocument struct {
	TerminalID    string          `bson:"terminal_id"`
	TransactionID string          `bson:"transaction_id,omitempty"`
	Items         []itemDocument  `bson:"items"`
	Payment       paymentDocument `bson:"payment"`
	Status        string          `bson:"status"`
	Version       int64           `bson:"version"`
	CreatedAt     time.Time       `bson:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at"`
}

type itemDocument struct {
	ProductID int64  `bson:"product_id"`
	Name      string `bson:"name"`
	UnitPrice string `bson:"unit_price"`
	Quantity  int    `bson:"quantity"`
	Category  string `bson:"category,omitempty"`
}

type paymentDocument struct {
	Method          string `bson:"method,omitempty"`
	CashReceived    string `bson:"cash_received,omitempty"`
	CardType        string `bson:"card_type,omitempty"`
	ReferenceNumber string `bson:"reference_number,omitempty"`
}

func toDocument(s *domain.TerminalSession) sessionDocument {
	items := make([]itemDocument, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, itemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.String(),
			Quantity:  item.Quantity,
			Category:  item.Category,
		})
	}

	payment := paymentDocument{
		Method:          string(s.Payment.Method),
		CardType:        string(s.Payment.CardType),
		ReferenceNumber: s.Payment.ReferenceNumber,
	}
	if s.Payment.Method == domain.PaymentMethodCash {
		payment.CashReceived = s.Payment.CashReceived.String()
	}

	return sessionDocument{
		TerminalID:    s.TerminalID,
		TransactionID: s.TransactionID,
		Items:         items,
		Payment:       payment,
		Status:        string(s.Status),
		Version:       s.Version,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func fromDocument(d sessionDocument) (*domain.TerminalSession, error) {
	items := make([]domain.LineItem, 0, len(d.Items))
	for _, item := range d.Items {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price of product %d: %w", item.ProductID, err)
		}
		items = append(items, domain.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: price,
			Quantity:  item.Quantity,
			Category:  item.Category,
		})
	}

	cash := decimal.Zero
	if d.Payment.CashReceived != "" {
		var err error
		cash, err = decimal.NewFromString(d.Payment.CashReceived)
		if err != nil {
			return nil, fmt.Errorf("invalid cash received: %w", err)
		}
	}

	return &domain.TerminalSession{
		TerminalID:    d.TerminalID,
		TransactionID: d.TransactionID,
		Items:         items,
		Payment: domain.PaymentDetails{
			Method:          domain.PaymentMethod(d.Payment.Method),
			CashReceived:    cash,
			CardType:        domain.CardType(d.Payment.CardType),
			ReferenceNumber: d.Payment.ReferenceNumber,
		},
		Status:    domain.CheckoutStatus(d.Status),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}
