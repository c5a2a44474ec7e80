package tradingService_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KotFed0t/trading_simulator/data/repository/memory"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/KotFed0t/trading_simulator/internal/service/tradingService"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setup(t *testing.T) (*tradingService.TradingService, *memory.Memory) {
	t.Helper()
	repo := memory.New()
	return tradingService.New(repo), repo
}

func TestAliceBuysAndSellsAAPL(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	alice, err := svc.CreateUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, alice.Balance.Equal(dec("10000")))
	assert.True(t, alice.LoanAmount.IsZero())

	aapl, err := svc.RegisterStock(ctx, "AAPL", "Apple Inc.", dec("150.0"), 1000)
	require.NoError(t, err)

	buy, err := svc.ExecuteBuy(ctx, alice.ID, aapl.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionBuy, buy.Type)
	assert.Equal(t, int64(10), buy.Quantity)
	assert.True(t, buy.Price.Equal(dec("150")))

	user, err := svc.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(dec("8500")), "balance %s", user.Balance)

	stock, err := svc.GetStock(ctx, aapl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(990), stock.AvailableQuantity)

	holding, err := repo.GetHoldingForUpdate(ctx, alice.ID, aapl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), holding.Quantity)
	assert.True(t, holding.AverageBuyPrice.Equal(dec("150")))

	txs, err := svc.GetUserTransactions(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	sell, err := svc.ExecuteSell(ctx, alice.ID, aapl.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionSell, sell.Type)

	user, err = svc.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(dec("9250")), "balance %s", user.Balance)

	holding, err = repo.GetHoldingForUpdate(ctx, alice.ID, aapl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), holding.Quantity)
	assert.True(t, holding.AverageBuyPrice.Equal(dec("150")))

	stock, err = svc.GetStock(ctx, aapl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(995), stock.AvailableQuantity)

	txs, err = svc.GetUserTransactions(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, sell.ID, txs[0].ID)
}

func TestRejectedBuyLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	user, err := svc.CreateUser(ctx, "bob")
	require.NoError(t, err)
	stock, err := svc.RegisterStock(ctx, "XYZ", "Xyz", dec("100"), 1000)
	require.NoError(t, err)

	_, err = svc.ExecuteBuy(ctx, user.ID, stock.ID, 101)
	require.ErrorIs(t, err, service.ErrInsufficientFunds)

	user, err = svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(dec("10000")))

	stock, err = svc.GetStock(ctx, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stock.AvailableQuantity)

	_, err = repo.GetHoldingForUpdate(ctx, user.ID, stock.ID)
	assert.Error(t, err)

	txs, err := svc.GetUserTransactions(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestAveragePriceIsWeightedOnBuyAndKeptOnSell(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	user, err := svc.CreateUser(ctx, "carol")
	require.NoError(t, err)
	stock, err := svc.RegisterStock(ctx, "ABC", "Abc", dec("10"), 100)
	require.NoError(t, err)

	_, err = svc.ExecuteBuy(ctx, user.ID, stock.ID, 10)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStockPrice(ctx, stock.ID, dec("20")))

	_, err = svc.ExecuteBuy(ctx, user.ID, stock.ID, 30)
	require.NoError(t, err)

	holding, err := repo.GetHoldingForUpdate(ctx, user.ID, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), holding.Quantity)
	// (10*10 + 30*20) / 40
	assert.True(t, holding.AverageBuyPrice.Equal(dec("17.5")), "avg %s", holding.AverageBuyPrice)

	require.NoError(t, repo.UpdateStockPrice(ctx, stock.ID, dec("5")))

	_, err = svc.ExecuteSell(ctx, user.ID, stock.ID, 15)
	require.NoError(t, err)

	holding, err = repo.GetHoldingForUpdate(ctx, user.ID, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), holding.Quantity)
	assert.True(t, holding.AverageBuyPrice.Equal(dec("17.5")))
}

func TestSharesAreConservedAndHoldingRemovedAtZero(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	user, err := svc.CreateUser(ctx, "dave")
	require.NoError(t, err)
	stock, err := svc.RegisterStock(ctx, "CON", "Conservation", dec("3.5"), 50)
	require.NoError(t, err)

	type step struct {
		buy bool
		qty int64
	}
	steps := []step{{true, 10}, {true, 5}, {false, 7}, {true, 2}, {false, 4}, {false, 6}}

	var net int64
	for _, st := range steps {
		if st.buy {
			_, err = svc.ExecuteBuy(ctx, user.ID, stock.ID, st.qty)
			net += st.qty
		} else {
			_, err = svc.ExecuteSell(ctx, user.ID, stock.ID, st.qty)
			net -= st.qty
		}
		require.NoError(t, err)

		current, err := svc.GetStock(ctx, stock.ID)
		require.NoError(t, err)

		var held int64
		holding, err := repo.GetHoldingForUpdate(ctx, user.ID, stock.ID)
		if err == nil {
			held = holding.Quantity
		}
		assert.Equal(t, net, held)
		assert.Equal(t, int64(50), current.AvailableQuantity+held)
	}

	require.Equal(t, int64(0), net)
	_, err = repo.GetHoldingForUpdate(ctx, user.ID, stock.ID)
	assert.Error(t, err, "holding must be deleted once it reaches zero")

	user, err = svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(dec("10000")), "price never moved, balance %s", user.Balance)
}

func TestConcurrentBuysCannotOversell(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	stock, err := svc.RegisterStock(ctx, "RARE", "Rare", dec("10"), 5)
	require.NoError(t, err)

	first, err := svc.CreateUser(ctx, "first")
	require.NoError(t, err)
	second, err := svc.CreateUser(ctx, "second")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.ExecuteBuy(ctx, userID, stock.ID, 3)
		}()
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, service.ErrInsufficientSupply)
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	stock, err = svc.GetStock(ctx, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stock.AvailableQuantity)
}

func TestIssueLoan(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	user, err := svc.CreateUser(ctx, "erin")
	require.NoError(t, err)

	tests := []struct {
		name        string
		userID      int64
		amount      decimal.Decimal
		wantErr     error
		wantBalance string
		wantLoan    string
	}{
		{name: "zero amount", userID: user.ID, amount: decimal.Zero, wantErr: service.ErrInvalidArgument},
		{name: "negative amount", userID: user.ID, amount: dec("-5"), wantErr: service.ErrInvalidArgument},
		{name: "unknown user", userID: 999, amount: dec("10"), wantErr: service.ErrNotFound},
		{name: "first loan", userID: user.ID, amount: dec("60000"), wantBalance: "70000", wantLoan: "60000"},
		{name: "up to ceiling", userID: user.ID, amount: dec("40000"), wantBalance: "110000", wantLoan: "100000"},
		{name: "over ceiling", userID: user.ID, amount: dec("0.01"), wantErr: service.ErrLimitExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IssueLoan(ctx, tt.userID, tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Balance.Equal(dec(tt.wantBalance)), "balance %s", got.Balance)
			assert.True(t, got.LoanAmount.Equal(dec(tt.wantLoan)), "loan %s", got.LoanAmount)
		})
	}

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.LoanAmount.Equal(model.MaxLoanAmount))
}

func TestTradeErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	user, err := svc.CreateUser(ctx, "frank")
	require.NoError(t, err)
	stock, err := svc.RegisterStock(ctx, "ERR", "Errors", dec("2"), 10)
	require.NoError(t, err)
	_, err = svc.ExecuteBuy(ctx, user.ID, stock.ID, 4)
	require.NoError(t, err)

	tests := []struct {
		name    string
		sell    bool
		userID  int64
		stockID int64
		qty     int64
		wantErr error
	}{
		{name: "buy zero", userID: user.ID, stockID: stock.ID, qty: 0, wantErr: service.ErrInvalidArgument},
		{name: "buy unknown user", userID: 404, stockID: stock.ID, qty: 1, wantErr: service.ErrNotFound},
		{name: "buy unknown stock", userID: user.ID, stockID: 404, qty: 1, wantErr: service.ErrNotFound},
		{name: "buy over supply", userID: user.ID, stockID: stock.ID, qty: 7, wantErr: service.ErrInsufficientSupply},
		{name: "sell negative", sell: true, userID: user.ID, stockID: stock.ID, qty: -1, wantErr: service.ErrInvalidArgument},
		{name: "sell unknown user", sell: true, userID: 404, stockID: stock.ID, qty: 1, wantErr: service.ErrNotFound},
		{name: "sell unknown stock", sell: true, userID: user.ID, stockID: 404, qty: 1, wantErr: service.ErrNotFound},
		{name: "sell more than held", sell: true, userID: user.ID, stockID: stock.ID, qty: 5, wantErr: service.ErrInsufficientHoldings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sell {
				_, err = svc.ExecuteSell(ctx, tt.userID, tt.stockID, tt.qty)
			} else {
				_, err = svc.ExecuteBuy(ctx, tt.userID, tt.stockID, tt.qty)
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	other, err := svc.CreateUser(ctx, "grace")
	require.NoError(t, err)
	_, err = svc.ExecuteSell(ctx, other.ID, stock.ID, 1)
	assert.ErrorIs(t, err, service.ErrInsufficientHoldings)
}

func TestRegistrationErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.CreateUser(ctx, "heidi")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "heidi")
	assert.ErrorIs(t, err, service.ErrDuplicateKey)
	_, err = svc.CreateUser(ctx, "   ")
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	_, err = svc.RegisterStock(ctx, "dup", "Dup", dec("1"), 1)
	require.NoError(t, err)
	_, err = svc.RegisterStock(ctx, "DUP", "Dup again", dec("1"), 1)
	assert.ErrorIs(t, err, service.ErrDuplicateKey)
	_, err = svc.RegisterStock(ctx, "", "Blank", dec("1"), 1)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = svc.RegisterStock(ctx, "NEG", "Negative", dec("-1"), 1)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = svc.RegisterStock(ctx, "NEGQ", "Negative qty", dec("1"), -1)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	_, err = svc.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, service.ErrNotFound)
	stock, err := svc.GetStockBySymbol(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "DUP", stock.Symbol)
}

func TestGetStockHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	stock, err := svc.RegisterStock(ctx, "HIST", "History", dec("42.42"), 10)
	require.NoError(t, err)

	history, err := svc.GetStockHistory(ctx, stock.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Price.Equal(dec("42.42")))

	_, err = svc.GetStockHistory(ctx, 999, 10)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

type countingCache struct {
	userFlushes  int
	stockFlushes int
}

func (c *countingCache) FlushUserBoards(context.Context) error {
	c.userFlushes++
	return nil
}

func (c *countingCache) FlushStockBoards(context.Context) error {
	c.stockFlushes++
	return nil
}

func TestSuccessfulWritesInvalidateBoards(t *testing.T) {
	ctx := context.Background()
	boards := &countingCache{}
	svc := tradingService.New(memory.New(), tradingService.WithCache(boards))

	alice, err := svc.CreateUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, boards.userFlushes)
	assert.Equal(t, 0, boards.stockFlushes)

	aapl, err := svc.RegisterStock(ctx, "AAPL", "Apple", dec("50"), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, boards.userFlushes)
	assert.Equal(t, 1, boards.stockFlushes)

	_, err = svc.IssueLoan(ctx, alice.ID, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, 2, boards.userFlushes)

	_, err = svc.ExecuteBuy(ctx, alice.ID, aapl.ID, 2)
	require.NoError(t, err)
	_, err = svc.ExecuteSell(ctx, alice.ID, aapl.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, boards.userFlushes)
	assert.Equal(t, 3, boards.stockFlushes)

	// rejected operations change nothing and keep the boards
	_, err = svc.CreateUser(ctx, "alice")
	require.ErrorIs(t, err, service.ErrDuplicateKey)
	_, err = svc.RegisterStock(ctx, "AAPL", "Apple", dec("50"), 10)
	require.ErrorIs(t, err, service.ErrDuplicateKey)
	_, err = svc.IssueLoan(ctx, alice.ID, model.MaxLoanAmount)
	require.ErrorIs(t, err, service.ErrLimitExceeded)
	_, err = svc.ExecuteBuy(ctx, alice.ID, aapl.ID, 100)
	require.ErrorIs(t, err, service.ErrInsufficientSupply)
	_, err = svc.ExecuteSell(ctx, alice.ID, aapl.ID, 5)
	require.ErrorIs(t, err, service.ErrInsufficientHoldings)
	assert.Equal(t, 4, boards.userFlushes)
	assert.Equal(t, 3, boards.stockFlushes)
}

func TestRegisterStockRecordsStartPriceWithServiceClock(t *testing.T) {
	ctx := context.Background()
	listedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := tradingService.New(memory.New(), tradingService.WithClock(func() time.Time { return listedAt }))

	stock, err := svc.RegisterStock(ctx, "AAPL", "Apple", dec("50"), 10)
	require.NoError(t, err)

	history, err := svc.GetStockHistory(ctx, stock.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, listedAt.Equal(history[0].RecordedAt), history[0].RecordedAt.String())
	assert.True(t, dec("50").Equal(history[0].Price))
}
