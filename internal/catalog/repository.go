// Package catalog serves the product catalogue and the stock snapshot shown to cashiers.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; ":memory:" databases also live on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `id, code, barcode, name, category, price, stock, created_at`

func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByCode finds a product by its catalogue code or its barcode.
func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE code = $1 OR (barcode <> '' AND barcode = $1)
		ORDER BY id
		LIMIT 1
	`
	return r.getOne(ctx, query, code)
}

// SetStock overwrites the stock level of a product.
func (r *Repository) SetStock(ctx context.Context, productID int64, stock int) error {
	if stock < 0 {
		return ErrInsufficientStock
	}
	res, err := r.db.ExecContext(ctx, `UPDATE products SET stock = $1 WHERE id = $2`, stock, productID)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var product *domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		product = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func scanProduct(rows *sql.Rows) (*domain.Product, error) {
	p := &domain.Product{}
	err := rows.Scan(
		&p.ID,
		&p.Code,
		&p.Barcode,
		&p.Name,
		&p.Category,
		&p.Price,
		&p.Stock,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return p, nil
}
