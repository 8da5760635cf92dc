// Package inventory holds the authoritative stock of the store and the reservations taken
// against it while a sale is being recorded.
package inventory

import (
	"errors"
	"time"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation has expired")
	ErrInvalidStatus       = errors.New("invalid reservation status for this operation")
	ErrInvalidQuantity     = errors.New("reservation quantity must be positive")
)

type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "reserved"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusReleased  ReservationStatus = "released"
	StatusExpired   ReservationStatus = "expired"
)

type ReservationItem struct {
	ProductID int64
	Quantity  int
}

// Reservation holds stock for one sale until it is confirmed, released or expires.
type Reservation struct {
	ID            string
	TransactionID string
	Items         []ReservationItem
	Status        ReservationStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

type Level struct {
	ProductID int64
	Total     int // on hand
	Reserved  int // held by pending sales
}

func (l Level) Available() int {
	return l.Total - l.Reserved
}

// Store defines the inventory operations used by the sales service and the catalog.
type Store interface {
	// GetStock returns the levels of the given products; unknown products are skipped.
	GetStock(productIDs []int64) ([]Level, error)

	// Reserve holds stock for all items or for none of them.
	Reserve(transactionID string, items []ReservationItem) (*Reservation, error)

	// Confirm deducts the reserved stock permanently.
	Confirm(reservationID string) error

	// Release returns the reserved stock to the available pool.
	Release(reservationID string) error

	SetStock(productID int64, quantity int) error

	Close() error
}
