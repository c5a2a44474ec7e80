package simulationService_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/KotFed0t/trading_simulator/data/repository/memory"
	"github.com/KotFed0t/trading_simulator/internal/externalApi"
	"github.com/KotFed0t/trading_simulator/internal/model/moexModel"
	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/KotFed0t/trading_simulator/internal/service/simulationService"
	"github.com/KotFed0t/trading_simulator/internal/service/tradingService"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotes struct {
	quotes []moexModel.StockInfo
	err    error
}

func (q *stubQuotes) GetStocksInfo(context.Context) ([]moexModel.StockInfo, error) {
	return q.quotes, q.err
}

func (q *stubQuotes) GetStockInfo(_ context.Context, ticker string) (moexModel.StockInfo, error) {
	for _, quote := range q.quotes {
		if quote.Ticker == ticker {
			return quote, nil
		}
	}
	return moexModel.StockInfo{}, externalApi.ErrNotFound
}

type capturingRunner struct {
	name string
	fn   func(ctx context.Context) error
}

func (r *capturingRunner) NewOneTimeJob(name string, fn func(ctx context.Context) error) error {
	r.name, r.fn = name, fn
	return nil
}

func newService(repo *memory.Memory, quotes simulationService.QuoteProvider, runner simulationService.JobRunner) *simulationService.SimulationService {
	return simulationService.New(tradingService.New(repo), repo, quotes, runner, rand.New(rand.NewPCG(1, 2)))
}

func TestSimulateKeepsLedgerConsistent(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := newService(repo, nil, nil)

	require.NoError(t, svc.Simulate(ctx, 3, 25))
	require.NoError(t, svc.Simulate(ctx, 3, 25), "second run reuses users and stocks")

	users, err := repo.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i, user := range users {
		assert.Equal(t, fmt.Sprintf("sim_user_%d", i+1), user.Username)
		assert.False(t, user.Balance.IsNegative())
	}

	stocks, err := repo.GetStocks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stocks, 5)

	held := map[int64]int64{}
	trades := 0
	for _, user := range users {
		positions, err := repo.GetHoldingPositions(ctx, user.ID)
		require.NoError(t, err)
		for _, p := range positions {
			assert.Positive(t, p.Quantity)
			held[p.StockID] += p.Quantity
		}

		txs, err := repo.GetTransactionsByUser(ctx, user.ID, 1000)
		require.NoError(t, err)
		trades += len(txs)
	}
	assert.Positive(t, trades)

	for _, stock := range stocks {
		assert.Equal(t, int64(1000), stock.AvailableQuantity+held[stock.ID], "shares of %s are conserved", stock.Symbol)
	}
}

func TestSimulateSeedsStocksFromQuotes(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	quotes := &stubQuotes{quotes: []moexModel.StockInfo{
		{Ticker: "SBER", Shortname: "Sber", Active: true, Price: decimal.RequireFromString("301.5")},
		{Ticker: "HALT", Shortname: "Halted", Active: false, Price: decimal.RequireFromString("10")},
		{Ticker: "ZERO", Shortname: "No price", Active: true, Price: decimal.Zero},
		{Ticker: "PENNY", Shortname: "Penny", Active: true, Price: decimal.RequireFromString("0.456")},
		{Ticker: "MID", Shortname: "Mid", Active: true, Price: decimal.RequireFromString("42.424")},
	}}
	svc := newService(repo, quotes, nil)

	require.NoError(t, svc.Simulate(ctx, 1, 1))

	stocks, err := repo.GetStocks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stocks, 3)

	prices := map[string]decimal.Decimal{}
	for _, s := range stocks {
		prices[s.Symbol] = s.CurrentPrice
	}
	assert.True(t, prices["SBER"].Equal(decimal.NewFromInt(100)))
	assert.True(t, prices["PENNY"].Equal(decimal.NewFromInt(1)))
	assert.True(t, prices["MID"].Equal(decimal.RequireFromString("42.42")))
}

func TestSimulateFallsBackToDefaultStocks(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := newService(repo, &stubQuotes{err: errors.New("moex is down")}, nil)

	require.NoError(t, svc.Simulate(ctx, 1, 1))

	stocks, err := repo.GetStocks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, stocks, 5)
}

func TestRunTradingSimulationSchedulesJob(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	runner := &capturingRunner{}
	svc := newService(repo, nil, runner)

	require.NoError(t, svc.RunTradingSimulation(0, -1))
	assert.Contains(t, runner.name, "5x10")
	require.NotNil(t, runner.fn)

	users, err := repo.GetUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "nothing runs until the job fires")

	require.NoError(t, runner.fn(ctx))

	users, err = repo.GetUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 5)
}

func TestRegisterQuotedStock(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	quotes := &stubQuotes{quotes: []moexModel.StockInfo{
		{Ticker: "LKOH", Shortname: "Lukoil", Active: true, Price: decimal.RequireFromString("7000")},
		{Ticker: "HALT", Shortname: "Halted", Active: false, Price: decimal.RequireFromString("10")},
	}}
	svc := newService(repo, quotes, nil)

	stock, err := svc.RegisterQuotedStock(ctx, "LKOH", 50)
	require.NoError(t, err)
	assert.Equal(t, "LKOH", stock.Symbol)
	assert.True(t, stock.CurrentPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(50), stock.AvailableQuantity)

	_, err = svc.RegisterQuotedStock(ctx, "NOPE", 1)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = svc.RegisterQuotedStock(ctx, "HALT", 1)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	noQuotes := newService(repo, nil, nil)
	_, err = noQuotes.RegisterQuotedStock(ctx, "LKOH", 1)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestSimulationRejectsOversizedCounts(t *testing.T) {
	tests := []struct {
		name      string
		numUsers  int
		numTrades int
	}{
		{name: "huge user count", numUsers: 1 << 62, numTrades: 1},
		{name: "users over max", numUsers: simulationService.MaxUsers + 1, numTrades: 1},
		{name: "trades over max", numUsers: 1, numTrades: simulationService.MaxTrades + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := memory.New()
			runner := &capturingRunner{}
			svc := newService(repo, nil, runner)

			err := svc.RunTradingSimulation(tt.numUsers, tt.numTrades)
			require.ErrorIs(t, err, service.ErrInvalidArgument)
			assert.Nil(t, runner.fn, "nothing is scheduled")

			err = svc.Simulate(ctx, tt.numUsers, tt.numTrades)
			require.ErrorIs(t, err, service.ErrInvalidArgument)

			users, err := repo.GetUsers(ctx)
			require.NoError(t, err)
			assert.Empty(t, users)
		})
	}
}
