package sales

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *Repository {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations(creds))
	return repo
}

func newSale(transactionID string) *domain.Sale {
	req := cashRequest()
	return &domain.Sale{
		ID:            uuid.New(),
		TransactionID: transactionID,
		TerminalID:    req.TerminalID,
		CashierID:     "ana",
		Items:         req.Items,
		Total:         req.Total,
		Method:        req.Method,
		MethodDetails: req.MethodDetails,
	}
}

func TestRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, repo.SeedStock(ctx, map[int64]int{1: 100, 2: 100}))

	t.Run("create assigns code and writes outbox", func(t *testing.T) {
		sale := newSale("tx-1")
		require.NoError(t, repo.CreateSale(ctx, sale))
		assert.Equal(t, "S-000001", sale.Code)
		assert.False(t, sale.CreatedAt.IsZero())

		events, err := repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "S-000001", events[0].AggregateID)
		assert.Equal(t, EventSaleCompleted, events[0].EventType)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
		assert.Equal(t, "tx-1", payload["transaction_id"])

		require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
		events, err = repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("duplicate transaction", func(t *testing.T) {
		err := repo.CreateSale(ctx, newSale("tx-1"))
		assert.ErrorIs(t, err, ErrDuplicateSale)

		events, err := repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("get by code and transaction", func(t *testing.T) {
		byCode, err := repo.GetSaleByCode(ctx, "S-000001")
		require.NoError(t, err)
		assert.Equal(t, "tx-1", byCode.TransactionID)
		assert.True(t, byCode.Total.Equal(*dec("41.00")))
		require.Len(t, byCode.Items, 2)
		assert.True(t, byCode.Items[1].UnitPrice.Equal(*dec("5.50")))
		require.NotNil(t, byCode.MethodDetails.Change)
		assert.True(t, byCode.MethodDetails.Change.Equal(*dec("9.00")))

		byTx, err := repo.GetSaleByTransactionID(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, byCode.ID, byTx.ID)

		_, err = repo.GetSaleByCode(ctx, "S-999999")
		assert.ErrorIs(t, err, ErrSaleNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		require.NoError(t, repo.CreateSale(ctx, newSale("tx-2")))
		require.NoError(t, repo.CreateSale(ctx, newSale("tx-3")))

		sales, err := repo.ListSales(ctx, 2)
		require.NoError(t, err)
		require.Len(t, sales, 2)
		assert.Equal(t, "tx-3", sales[0].TransactionID)
		assert.Equal(t, "tx-2", sales[1].TransactionID)
	})

	t.Run("sales take stock from the ledger", func(t *testing.T) {
		// three sales of 3 × product 1 and 2 × product 2 so far
		levels, err := repo.StockLevels(ctx, []int64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, map[int64]int{1: 91, 2: 94}, levels)
	})

	t.Run("seeding keeps existing levels", func(t *testing.T) {
		require.NoError(t, repo.SeedStock(ctx, map[int64]int{1: 100, 3: 4}))

		levels, err := repo.StockLevels(ctx, []int64{1, 3})
		require.NoError(t, err)
		assert.Equal(t, map[int64]int{1: 91, 3: 4}, levels)
	})

	t.Run("short ledger stock fails the whole sale", func(t *testing.T) {
		sale := newSale("tx-4")
		sale.Items = []domain.LineItem{
			{ProductID: 1, Name: "Widget", UnitPrice: *dec("10.00"), Quantity: 1},
			{ProductID: 3, Name: "Gizmo", UnitPrice: *dec("1.00"), Quantity: 5},
		}
		sale.Total = *dec("15.00")
		err := repo.CreateSale(ctx, sale)
		assert.ErrorIs(t, err, ErrStockExhausted)

		_, err = repo.GetSaleByTransactionID(ctx, "tx-4")
		assert.ErrorIs(t, err, ErrSaleNotFound)
		levels, err := repo.StockLevels(ctx, []int64{1, 3})
		require.NoError(t, err)
		assert.Equal(t, map[int64]int{1: 91, 3: 4}, levels)
	})

	t.Run("product without ledger row", func(t *testing.T) {
		sale := newSale("tx-5")
		sale.Items = []domain.LineItem{{ProductID: 42, Name: "Unknown", UnitPrice: *dec("1.00"), Quantity: 1}}
		sale.Total = *dec("1.00")
		assert.ErrorIs(t, repo.CreateSale(ctx, sale), ErrStockExhausted)
	})

	t.Run("total keeps every decimal place", func(t *testing.T) {
		sale := newSale("tx-6")
		sale.Items = []domain.LineItem{{ProductID: 2, Name: "Gadget", UnitPrice: *dec("0.125"), Quantity: 3}}
		sale.Total = *dec("0.375")
		require.NoError(t, repo.CreateSale(ctx, sale))

		stored, err := repo.GetSaleByTransactionID(ctx, "tx-6")
		require.NoError(t, err)
		assert.True(t, stored.Total.Equal(*dec("0.375")), stored.Total.String())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := repo.GetSaleByCode(cctx, "S-000001")
		assert.Error(t, err)
	})
}
