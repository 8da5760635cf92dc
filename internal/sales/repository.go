package sales

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

var (
	ErrSaleNotFound  = errors.New("sale not found")
	ErrDuplicateSale = errors.New("sale already recorded for this transaction")
	// ErrStockExhausted means the shared stock ledger cannot cover the sale, typically because
	// another instance sold the units first.
	ErrStockExhausted = errors.New("not enough stock left in the ledger")
)

// EventSaleCompleted is the outbox event type written with every sale.
const EventSaleCompleted = "sale.completed"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "sales_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// CreateSale records the sale, takes its units out of the stock ledger and writes its
// sale.completed outbox event in one transaction. The generated code and creation time are
// written back to sale.
func (r *Repository) CreateSale(ctx context.Context, sale *domain.Sale) error {
	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal sale items: %w", err)
	}
	detailsJSON, err := json.Marshal(sale.MethodDetails)
	if err != nil {
		return fmt.Errorf("failed to marshal method details: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO sales (id, transaction_id, terminal_id, cashier_id, items, total, method, method_details)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING code, created_at`

	err = tx.QueryRowContext(ctx, query,
		sale.ID,
		sale.TransactionID,
		sale.TerminalID,
		sale.CashierID,
		itemsJSON,
		sale.Total,
		sale.Method,
		detailsJSON,
	).Scan(&sale.Code, &sale.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSale
		}
		return fmt.Errorf("insert sale: %w", err)
	}

	if err := takeStock(ctx, tx, sale.Items); err != nil {
		return err
	}

	payload, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("failed to marshal sale event: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		sale.Code, EventSaleCompleted, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sale: %w", err)
	}
	return nil
}

// takeStock decrements the ledger row of every sold product, locking rows in product order so
// concurrent sales cannot deadlock. A product without enough units fails the whole sale.
func takeStock(ctx context.Context, tx *sql.Tx, items []domain.LineItem) error {
	quantities := make(map[int64]int, len(items))
	for _, item := range items {
		quantities[item.ProductID] += item.Quantity
	}

	for _, id := range slices.Sorted(maps.Keys(quantities)) {
		res, err := tx.ExecContext(ctx,
			`UPDATE stock_levels SET quantity = quantity - $1, updated_at = NOW()
			 WHERE product_id = $2 AND quantity >= $1`,
			quantities[id], id)
		if err != nil {
			return fmt.Errorf("take stock of product %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("take stock of product %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("product %d: %w", id, ErrStockExhausted)
		}
	}
	return nil
}

// SeedStock adds ledger rows for products the ledger does not know yet. Existing rows keep
// their level, so restarting an instance never resets stock sold elsewhere.
func (r *Repository) SeedStock(ctx context.Context, levels map[int64]int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range slices.Sorted(maps.Keys(levels)) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stock_levels (product_id, quantity) VALUES ($1, $2)
			 ON CONFLICT (product_id) DO NOTHING`,
			id, max(levels[id], 0))
		if err != nil {
			return fmt.Errorf("seed stock of product %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock seed: %w", err)
	}
	return nil
}

// StockLevels returns the ledger level of the given products. Products without a ledger row
// are left out.
func (r *Repository) StockLevels(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, quantity FROM stock_levels WHERE product_id = ANY($1)`,
		pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[int64]int, len(productIDs))
	for rows.Next() {
		var id int64
		var quantity int
		if err := rows.Scan(&id, &quantity); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		levels[id] = quantity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return levels, nil
}

const saleColumns = `id, code, transaction_id, terminal_id, cashier_id, items, total, method, method_details, created_at`

func (r *Repository) GetSaleByCode(ctx context.Context, code string) (*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE code = $1`
	return scanSale(r.db.QueryRowContext(ctx, query, code))
}

func (r *Repository) GetSaleByTransactionID(ctx context.Context, transactionID string) (*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE transaction_id = $1`
	return scanSale(r.db.QueryRowContext(ctx, query, transactionID))
}

// ListSales returns the most recent sales first.
func (r *Repository) ListSales(ctx context.Context, limit int) ([]*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales ORDER BY created_at DESC, code DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []*domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sales, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events
	          WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		var payload []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var itemsJSON, detailsJSON []byte
	err := row.Scan(
		&sale.ID,
		&sale.Code,
		&sale.TransactionID,
		&sale.TerminalID,
		&sale.CashierID,
		&itemsJSON,
		&sale.Total,
		&sale.Method,
		&detailsJSON,
		&sale.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sale: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return nil, fmt.Errorf("unmarshal sale items: %w", err)
	}
	if err := json.Unmarshal(detailsJSON, &sale.MethodDetails); err != nil {
		return nil, fmt.Errorf("unmarshal method details: %w", err)
	}
	return &sale, nil
}
