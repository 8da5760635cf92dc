package inventory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultReservationTTL is how long a reservation is valid before auto-expiring
	DefaultReservationTTL = 5 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 30 * time.Second
)

// MemoryStore implements Store with in-memory storage
type MemoryStore struct {
	mu           sync.RWMutex
	stocks       map[int64]*Level        // productID -> level
	reservations map[string]*Reservation // reservationID -> reservation
	ttl          time.Duration
	now          func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

// NewMemoryStore creates a store whose reservations expire after ttl.
// A non-positive ttl falls back to DefaultReservationTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	s := &MemoryStore{
		stocks:       make(map[int64]*Level),
		reservations: make(map[string]*Reservation),
		ttl:          ttl,
		now:          time.Now,
		stopCleanup:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireReservations()
		case <-s.stopCleanup:
			return
		}
	}
}

// expireReservations returns the stock of reservations past their TTL and forgets settled ones.
func (s *MemoryStore) expireReservations() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, reservation := range s.reservations {
		switch {
		case reservation.Status == StatusReserved && reservation.IsExpired(now):
			reservation.Status = StatusExpired
			for _, item := range reservation.Items {
				s.stocks[item.ProductID].Reserved -= item.Quantity
			}
		case reservation.Status != StatusReserved && now.Sub(reservation.ExpiresAt) > s.ttl:
			delete(s.reservations, id)
		}
	}
}

func (s *MemoryStore) GetStock(productIDs []int64) ([]Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Level, 0, len(productIDs))
	for _, id := range productIDs {
		if stock, exists := s.stocks[id]; exists {
			result = append(result, *stock)
		}
	}
	return result, nil
}

// Available returns the unreserved stock of a product.
func (s *MemoryStore) Available(productID int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stock, exists := s.stocks[productID]
	if !exists {
		return 0, false
	}
	return stock.Available(), true
}

// Reserve creates a reservation for a sale. Lines of the same product are merged.
func (s *MemoryStore) Reserve(transactionID string, items []ReservationItem) (*Reservation, error) {
	merged := mergeItems(items)

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate all items have sufficient stock
	for _, item := range merged {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		stock, exists := s.stocks[item.ProductID]
		if !exists {
			return nil, ErrProductNotFound
		}
		if stock.Available() < item.Quantity {
			return nil, ErrInsufficientStock
		}
	}

	for _, item := range merged {
		s.stocks[item.ProductID].Reserved += item.Quantity
	}

	now := s.now()
	reservation := &Reservation{
		ID:            uuid.New().String(),
		TransactionID: transactionID,
		Items:         merged,
		Status:        StatusReserved,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	s.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (s *MemoryStore) Confirm(reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[reservationID]
	if !exists {
		return ErrReservationNotFound
	}

	if reservation.Status != StatusReserved {
		return ErrInvalidStatus
	}

	if reservation.IsExpired(s.now()) {
		return ErrReservationExpired
	}

	// Deduct from total stock (reserved already holds the quantity)
	for _, item := range reservation.Items {
		stock := s.stocks[item.ProductID]
		stock.Total -= item.Quantity
		stock.Reserved -= item.Quantity
	}

	reservation.Status = StatusConfirmed
	return nil
}

func (s *MemoryStore) Release(reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[reservationID]
	if !exists {
		return ErrReservationNotFound
	}

	if reservation.Status != StatusReserved {
		return ErrInvalidStatus
	}

	for _, item := range reservation.Items {
		s.stocks[item.ProductID].Reserved -= item.Quantity
	}

	reservation.Status = StatusReleased
	return nil
}

// SetStock sets the on-hand stock of a product. Units already reserved stay reserved.
func (s *MemoryStore) SetStock(productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stock, exists := s.stocks[productID]; exists {
		stock.Total = quantity
		return nil
	}
	s.stocks[productID] = &Level{
		ProductID: productID,
		Total:     quantity,
	}
	return nil
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}

func mergeItems(items []ReservationItem) []ReservationItem {
	merged := make([]ReservationItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
