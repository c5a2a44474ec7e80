package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/trading_simulator/data/repository/memory"
	"github.com/KotFed0t/trading_simulator/data/repository/repositorytest"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repositorytest.Store {
		return memory.New()
	})
}

func TestOperationsOutsideTransactionWaitForIt(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	user, err := m.InsertUser(ctx, "alice", decimal.NewFromInt(100))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.WithinTransaction(ctx, func(ctx context.Context) error {
			close(entered)
			<-release
			return m.DebitUserBalance(ctx, user.ID, decimal.NewFromInt(60))
		})
	}()
	<-entered

	debited := make(chan error, 1)
	go func() {
		debited <- m.DebitUserBalance(ctx, user.ID, decimal.NewFromInt(60))
	}()

	select {
	case <-debited:
		t.Fatal("debit ran while a transaction held the store")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	assert.Error(t, <-debited)
}

func TestRollbackRestoresTouchedRowsOnly(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	alice, err := m.InsertUser(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	stock, err := m.InsertStock(ctx, "AAPL", "Apple", decimal.NewFromInt(10), 50)
	require.NoError(t, err)
	require.NoError(t, m.InsertPriceHistory(ctx, stock.ID, decimal.NewFromInt(10), time.Now()))
	require.NoError(t, m.UpsertHolding(ctx, model.Holding{UserID: alice.ID, StockID: stock.ID, Quantity: 3, AverageBuyPrice: decimal.NewFromInt(10)}))
	first, err := m.InsertTransaction(ctx, model.Transaction{UserID: alice.ID, StockID: stock.ID, Quantity: 3, Price: decimal.NewFromInt(10), Type: model.TransactionBuy})
	require.NoError(t, err)

	errAbort := errors.New("abort")
	err = m.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.InsertUser(ctx, "bob", decimal.NewFromInt(1000)); err != nil {
			return err
		}
		if err := m.DebitUserBalance(ctx, alice.ID, decimal.NewFromInt(100)); err != nil {
			return err
		}
		if err := m.DebitUserBalance(ctx, alice.ID, decimal.NewFromInt(100)); err != nil {
			return err
		}
		if err := m.UpdateStockPrice(ctx, stock.ID, decimal.NewFromInt(12)); err != nil {
			return err
		}
		if err := m.InsertPriceHistory(ctx, stock.ID, decimal.NewFromInt(12), time.Now()); err != nil {
			return err
		}
		if err := m.DeleteHolding(ctx, alice.ID, stock.ID); err != nil {
			return err
		}
		if _, err := m.InsertTransaction(ctx, model.Transaction{UserID: alice.ID, StockID: stock.ID, Quantity: 3, Price: decimal.NewFromInt(12), Type: model.TransactionSell}); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	got, err := m.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.Balance), got.Balance.String())

	gotStock, err := m.GetStock(ctx, stock.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(gotStock.CurrentPrice))

	history, err := m.GetPriceHistory(ctx, stock.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	holding, err := m.GetHoldingForUpdate(ctx, alice.ID, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), holding.Quantity)

	txs, err := m.GetTransactionsByUser(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, first.ID, txs[0].ID)

	users, err := m.GetUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	// identifiers handed out inside the aborted transaction are free again
	bob, err := m.InsertUser(ctx, "bob", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, alice.ID+1, bob.ID)
	second, err := m.InsertTransaction(ctx, model.Transaction{UserID: bob.ID, StockID: stock.ID, Quantity: 1, Price: decimal.NewFromInt(10), Type: model.TransactionBuy})
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
}
