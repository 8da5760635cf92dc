package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_pos/internal/domain"
)

type ProductRepository interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetByCode(ctx context.Context, code string) (*domain.Product, error)
}

// StockSource reports live availability. Products it does not know keep their catalogue stock.
type StockSource interface {
	Available(productID int64) (int, bool)
}

// StockSeeder receives the catalogue stock at start-up.
type StockSeeder interface {
	SeedStock(ctx context.Context, levels map[int64]int) error
}

// Service reads products with their stock replaced by the live availability.
type Service struct {
	repo  ProductRepository
	stock StockSource
}

func NewService(repo ProductRepository, stock StockSource) *Service {
	return &Service{repo: repo, stock: stock}
}

func (s *Service) Products(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		s.applyStock(p)
	}
	return products, nil
}

func (s *Service) Product(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.applyStock(p)
	return p, nil
}

// Lookup finds a product by code or barcode.
func (s *Service) Lookup(ctx context.Context, code string) (*domain.Product, error) {
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.applyStock(p)
	return p, nil
}

// StockInfo returns the product together with its current stock snapshot.
func (s *Service) StockInfo(ctx context.Context, id int64) (*domain.Product, domain.StockInfo, error) {
	p, err := s.Product(ctx, id)
	if err != nil {
		return nil, domain.StockInfo{}, err
	}
	return p, p.StockInfo(), nil
}

// StockLevels returns the stock snapshot of each requested product that exists.
func (s *Service) StockLevels(ctx context.Context, ids []int64) (map[int64]domain.StockInfo, error) {
	levels := make(map[int64]domain.StockInfo, len(ids))
	for _, id := range ids {
		if _, ok := levels[id]; ok {
			continue
		}
		_, info, err := s.StockInfo(ctx, id)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				continue
			}
			return nil, err
		}
		levels[id] = info
	}
	return levels, nil
}

// SeedInventory hands the catalogue stock of every product to the seeder.
func (s *Service) SeedInventory(ctx context.Context, seeder StockSeeder) (int, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	levels := make(map[int64]int, len(products))
	for _, p := range products {
		levels[p.ID] = p.Stock
	}
	if err := seeder.SeedStock(ctx, levels); err != nil {
		return 0, fmt.Errorf("failed to seed stock: %w", err)
	}
	return len(products), nil
}

func (s *Service) applyStock(p *domain.Product) {
	if s.stock == nil {
		return
	}
	if available, ok := s.stock.Available(p.ID); ok {
		p.Stock = max(available, 0)
	}
}
