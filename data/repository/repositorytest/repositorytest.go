// Package repositorytest holds the behaviour every ledger store implementation must share.
package repositorytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/KotFed0t/trading_simulator/data/repository"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/KotFed0t/trading_simulator/internal/service/priceService"
	"github.com/KotFed0t/trading_simulator/internal/service/tradingService"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Store interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	InsertUser(ctx context.Context, username string, balance decimal.Decimal) (model.User, error)
	GetUser(ctx context.Context, userID int64) (model.User, error)
	GetUserForUpdate(ctx context.Context, userID int64) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUsers(ctx context.Context) ([]model.User, error)
	CreditUserBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	DebitUserBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	IncreaseUserLoan(ctx context.Context, userID int64, amount, limit decimal.Decimal) error

	InsertStock(ctx context.Context, symbol, name string, price decimal.Decimal, quantity int64) (model.Stock, error)
	GetStock(ctx context.Context, stockID int64) (model.Stock, error)
	GetStockForUpdate(ctx context.Context, stockID int64) (model.Stock, error)
	GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error)
	GetStocks(ctx context.Context, limit int) ([]model.Stock, error)
	DecreaseStockQuantity(ctx context.Context, stockID, quantity int64) error
	IncreaseStockQuantity(ctx context.Context, stockID, quantity int64) error
	UpdateStockPrice(ctx context.Context, stockID int64, price decimal.Decimal) error

	InsertPriceHistory(ctx context.Context, stockID int64, price decimal.Decimal, recordedAt time.Time) error
	GetPriceHistory(ctx context.Context, stockID int64, limit int) ([]model.PriceHistory, error)
	GetStartPrices(ctx context.Context) (map[int64]decimal.Decimal, error)

	GetHoldingForUpdate(ctx context.Context, userID, stockID int64) (model.Holding, error)
	UpsertHolding(ctx context.Context, holding model.Holding) error
	DeleteHolding(ctx context.Context, userID, stockID int64) error
	GetHoldingPositions(ctx context.Context, userID int64) ([]model.HoldingPosition, error)

	InsertTransaction(ctx context.Context, transaction model.Transaction) (model.Transaction, error)
	GetTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
}

// Run executes the shared suite. newStore must return an empty store for every call.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("guarded updates", func(t *testing.T) { testGuardedUpdates(t, newStore(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("panic rolls back", func(t *testing.T) { testPanicRollsBack(t, newStore(t)) })
	t.Run("concurrent debits", func(t *testing.T) { testConcurrentDebits(t, newStore(t)) })
	t.Run("trades race price updates", func(t *testing.T) { testTradesRacePriceUpdates(t, newStore(t)) })
	t.Run("stocks and history", func(t *testing.T) { testStocksAndHistory(t, newStore(t)) })
	t.Run("holdings", func(t *testing.T) { testHoldings(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()

	alice, err := s.InsertUser(ctx, "alice", dec("10000"))
	require.NoError(t, err)
	assert.Positive(t, alice.ID)
	assert.True(t, dec("10000").Equal(alice.Balance))
	assert.True(t, alice.LoanAmount.IsZero())

	_, err = s.InsertUser(ctx, "alice", dec("10000"))
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = s.GetUser(ctx, alice.ID+100)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.InsertUser(ctx, "bob", dec("10000"))
	require.NoError(t, err)

	users, err := s.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}

func testGuardedUpdates(t *testing.T, s Store) {
	ctx := context.Background()

	user, err := s.InsertUser(ctx, "alice", dec("100"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.DebitUserBalance(ctx, user.ID, dec("100.01")), repository.ErrConditionNotMet)
	require.NoError(t, s.DebitUserBalance(ctx, user.ID, dec("100")))
	require.NoError(t, s.CreditUserBalance(ctx, user.ID, dec("0.5")))

	require.NoError(t, s.IncreaseUserLoan(ctx, user.ID, dec("99999.5"), dec("100000")))
	assert.ErrorIs(t, s.IncreaseUserLoan(ctx, user.ID, dec("1"), dec("100000")), repository.ErrConditionNotMet)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, dec("100000").Equal(got.Balance), got.Balance.String())
	assert.True(t, dec("99999.5").Equal(got.LoanAmount), got.LoanAmount.String())

	stock, err := s.InsertStock(ctx, "AAPL", "Apple", dec("50"), 5)
	require.NoError(t, err)

	assert.ErrorIs(t, s.DecreaseStockQuantity(ctx, stock.ID, 6), repository.ErrConditionNotMet)
	require.NoError(t, s.DecreaseStockQuantity(ctx, stock.ID, 5))
	require.NoError(t, s.IncreaseStockQuantity(ctx, stock.ID, 2))

	gotStock, err := s.GetStock(ctx, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gotStock.AvailableQuantity)
}

func testRollback(t *testing.T, s Store) {
	ctx := context.Background()

	user, err := s.InsertUser(ctx, "alice", dec("10000"))
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = s.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.DebitUserBalance(ctx, user.ID, dec("1500")); err != nil {
			return err
		}
		if _, err := s.InsertUser(ctx, "carol", dec("10000")); err != nil {
			return err
		}
		// nested units join the outer one
		if err := s.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := s.InsertStock(ctx, "AAPL", "Apple", dec("10"), 1)
			return err
		}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, dec("10000").Equal(got.Balance))

	_, err = s.GetUserByUsername(ctx, "carol")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetStockBySymbol(ctx, "AAPL")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = s.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.DebitUserBalance(ctx, user.ID, dec("1500"))
	})
	require.NoError(t, err)

	got, err = s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, dec("8500").Equal(got.Balance))
}

func testPanicRollsBack(t *testing.T, s Store) {
	ctx := context.Background()

	user, err := s.InsertUser(ctx, "alice", dec("10000"))
	require.NoError(t, err)

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.DebitUserBalance(ctx, user.ID, dec("1500")); err != nil {
				return err
			}
			if _, err := s.InsertStock(ctx, "AAPL", "Apple", dec("10"), 1); err != nil {
				return err
			}
			panic("boom")
		})
	})

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, dec("10000").Equal(got.Balance), got.Balance.String())
	_, err = s.GetStockBySymbol(ctx, "AAPL")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// the store is usable again: nothing is left locked
	done := make(chan error, 1)
	go func() {
		done <- s.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := s.GetUserForUpdate(ctx, user.ID); err != nil {
				return err
			}
			return s.DebitUserBalance(ctx, user.ID, dec("1500"))
		})
	}()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transaction after a panic did not finish")
	}

	got, err = s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, dec("8500").Equal(got.Balance), got.Balance.String())
}

func testConcurrentDebits(t *testing.T, s Store) {
	ctx := context.Background()

	user, err := s.InsertUser(ctx, "alice", dec("100"))
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rejected int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTransaction(ctx, func(ctx context.Context) error {
				u, err := s.GetUserForUpdate(ctx, user.ID)
				if err != nil {
					return err
				}
				if u.Balance.LessThan(dec("30")) {
					return repository.ErrConditionNotMet
				}
				return s.DebitUserBalance(ctx, user.ID, dec("30"))
			})
			if err != nil {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers-3, rejected)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(got.Balance), got.Balance.String())
}

func testStocksAndHistory(t *testing.T, s Store) {
	ctx := context.Background()

	var ids []int64
	for _, symbol := range []string{"AAA", "BBB", "CCC"} {
		stock, err := s.InsertStock(ctx, symbol, symbol+" corp", dec("10"), 100)
		require.NoError(t, err)
		ids = append(ids, stock.ID)
	}

	_, err := s.InsertStock(ctx, "AAA", "again", dec("10"), 1)
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	latest, err := s.GetStocks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "CCC", latest[0].Symbol)
	assert.Equal(t, "BBB", latest[1].Symbol)

	all, err := s.GetStocks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertPriceHistory(ctx, ids[0], dec("10"), start))
	require.NoError(t, s.InsertPriceHistory(ctx, ids[0], dec("10.5"), start.Add(5*time.Minute)))
	require.NoError(t, s.InsertPriceHistory(ctx, ids[0], dec("9.98"), start.Add(10*time.Minute)))
	require.NoError(t, s.InsertPriceHistory(ctx, ids[1], dec("20"), start))
	require.NoError(t, s.UpdateStockPrice(ctx, ids[0], dec("9.98")))

	history, err := s.GetPriceHistory(ctx, ids[0], 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, dec("9.98").Equal(history[0].Price))
	assert.True(t, dec("10.5").Equal(history[1].Price))
	assert.True(t, history[0].RecordedAt.After(history[1].RecordedAt))

	startPrices, err := s.GetStartPrices(ctx)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(startPrices[ids[0]]))
	assert.True(t, dec("20").Equal(startPrices[ids[1]]))
	_, ok := startPrices[ids[2]]
	assert.False(t, ok)

	stock, err := s.GetStockBySymbol(ctx, "AAA")
	require.NoError(t, err)
	assert.True(t, dec("9.98").Equal(stock.CurrentPrice))
}

func testHoldings(t *testing.T, s Store) {
	ctx := context.Background()

	user, err := s.InsertUser(ctx, "alice", dec("10000"))
	require.NoError(t, err)
	msft, err := s.InsertStock(ctx, "MSFT", "Microsoft", dec("80"), 100)
	require.NoError(t, err)
	aapl, err := s.InsertStock(ctx, "AAPL", "Apple", dec("50"), 100)
	require.NoError(t, err)

	_, err = s.GetHoldingForUpdate(ctx, user.ID, aapl.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.UpsertHolding(ctx, model.Holding{UserID: user.ID, StockID: aapl.ID, Quantity: 10, AverageBuyPrice: dec("40")}))
	require.NoError(t, s.UpsertHolding(ctx, model.Holding{UserID: user.ID, StockID: aapl.ID, Quantity: 15, AverageBuyPrice: dec("43.3333")}))
	require.NoError(t, s.UpsertHolding(ctx, model.Holding{UserID: user.ID, StockID: msft.ID, Quantity: 1, AverageBuyPrice: dec("80")}))

	holding, err := s.GetHoldingForUpdate(ctx, user.ID, aapl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), holding.Quantity)
	assert.True(t, dec("43.3333").Equal(holding.AverageBuyPrice))

	positions, err := s.GetHoldingPositions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.True(t, dec("50").Equal(positions[0].CurrentPrice))
	assert.Equal(t, "MSFT", positions[1].Symbol)

	require.NoError(t, s.DeleteHolding(ctx, user.ID, aapl.ID))
	_, err = s.GetHoldingForUpdate(ctx, user.ID, aapl.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testTransactions(t *testing.T, s Store) {
	ctx := context.Background()

	user, err := s.InsertUser(ctx, "alice", dec("10000"))
	require.NoError(t, err)
	stock, err := s.InsertStock(ctx, "AAPL", "Apple", dec("50"), 100)
	require.NoError(t, err)

	first, err := s.InsertTransaction(ctx, model.Transaction{UserID: user.ID, StockID: stock.ID, Quantity: 10, Price: dec("50"), Type: model.TransactionBuy})
	require.NoError(t, err)
	assert.Positive(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := s.InsertTransaction(ctx, model.Transaction{UserID: user.ID, StockID: stock.ID, Quantity: 4, Price: dec("55.5"), Type: model.TransactionSell})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	txs, err := s.GetTransactionsByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, second.ID, txs[0].ID)
	assert.Equal(t, model.TransactionSell, txs[0].Type)
	assert.True(t, dec("55.5").Equal(txs[0].Price))

	txs, err = s.GetTransactionsByUser(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		service.ErrInsufficientFunds,
		service.ErrInsufficientSupply,
		service.ErrInsufficientHoldings,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// testTradesRacePriceUpdates runs buys and sells against one stock while its price keeps moving.
func testTradesRacePriceUpdates(t *testing.T, s Store) {
	ctx := context.Background()

	const (
		supply       = 200
		traders      = 4
		tradesEach   = 20
		priceUpdates = 5
	)

	trading := tradingService.New(s)
	prices := priceService.New(s, nil)

	stock, err := trading.RegisterStock(ctx, "RACE", "Race corp", dec("50"), supply)
	require.NoError(t, err)

	userIDs := make([]int64, 0, traders)
	for i := range traders {
		user, err := trading.CreateUser(ctx, fmt.Sprintf("trader%d", i))
		require.NoError(t, err)
		userIDs = append(userIDs, user.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	fail := func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	for _, userID := range userIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tradesEach {
				var err error
				if i%3 == 2 {
					_, err = trading.ExecuteSell(ctx, userID, stock.ID, 1)
				} else {
					_, err = trading.ExecuteBuy(ctx, userID, stock.ID, 2)
				}
				if err != nil && !isBusinessError(err) {
					fail(fmt.Errorf("user %d trade %d: %w", userID, i, err))
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range priceUpdates {
			if err := prices.UpdateStockPrices(ctx); err != nil {
				fail(fmt.Errorf("price update: %w", err))
			}
		}
	}()

	wg.Wait()
	require.Empty(t, failures)

	history, err := s.GetPriceHistory(ctx, stock.ID, 1000)
	require.NoError(t, err)
	assert.Len(t, history, 1+priceUpdates)

	got, err := s.GetStock(ctx, stock.ID)
	require.NoError(t, err)
	assert.False(t, got.CurrentPrice.LessThan(model.MinStockPrice), got.CurrentPrice.String())
	assert.False(t, got.CurrentPrice.GreaterThan(model.MaxStockPrice), got.CurrentPrice.String())
	assert.True(t, history[0].Price.Equal(got.CurrentPrice))

	var held int64
	for _, userID := range userIDs {
		var heldByUser int64
		positions, err := s.GetHoldingPositions(ctx, userID)
		require.NoError(t, err)
		for _, p := range positions {
			if p.StockID == stock.ID {
				heldByUser += p.Quantity
			}
		}

		var traded int64
		txs, err := s.GetTransactionsByUser(ctx, userID, 1000)
		require.NoError(t, err)
		for _, tx := range txs {
			if tx.StockID != stock.ID {
				continue
			}
			if tx.Type == model.TransactionBuy {
				traded += tx.Quantity
			} else {
				traded -= tx.Quantity
			}
		}

		assert.Equal(t, traded, heldByUser, "user %d", userID)
		held += heldByUser
	}

	assert.Equal(t, int64(supply), got.AvailableQuantity+held)
}
