package priceService_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/trading_simulator/data/repository/memory"
	"github.com/KotFed0t/trading_simulator/internal/service/priceService"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNextPrice(t *testing.T) {
	tests := []struct {
		name   string
		price  string
		factor float64
		want   string
	}{
		{name: "unchanged", price: "50", factor: 1, want: "50"},
		{name: "up five percent", price: "50", factor: 1.05, want: "52.5"},
		{name: "down five percent", price: "50", factor: 0.95, want: "47.5"},
		{name: "rounded to cents", price: "33.33", factor: 1.01, want: "33.66"},
		{name: "clamped to floor", price: "1.00", factor: 0.95, want: "1"},
		{name: "clamped to ceiling", price: "99.50", factor: 1.05, want: "100"},
		{name: "registered above ceiling", price: "150", factor: 0.95, want: "100"},
		{name: "registered below floor", price: "0.10", factor: 1.05, want: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := priceService.NextPrice(dec(tt.price), tt.factor)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestNextPriceStaysInBounds(t *testing.T) {
	prices := []string{"0.01", "1", "1.02", "37.77", "99.99", "100", "100.01", "5000"}
	for _, p := range prices {
		for i := 0; i < 200; i++ {
			got := priceService.NextPrice(dec(p), priceService.UniformFactor())
			assert.True(t, got.GreaterThanOrEqual(dec("1")), "price %s -> %s", p, got)
			assert.True(t, got.LessThanOrEqual(dec("100")), "price %s -> %s", p, got)
		}
	}
}

func TestUniformFactorRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		f := priceService.UniformFactor()
		assert.GreaterOrEqual(t, f, 0.95)
		assert.LessOrEqual(t, f, 1.05)
	}
}

func seedStocks(t *testing.T, repo *memory.Memory, prices ...string) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, len(prices))
	for i, p := range prices {
		stock, err := repo.InsertStock(ctx, string(rune('A'+i)), "stock", dec(p), 10)
		require.NoError(t, err)
		require.NoError(t, repo.InsertPriceHistory(ctx, stock.ID, stock.CurrentPrice, stock.CreatedAt))
		ids = append(ids, stock.ID)
	}
	return ids
}

type flushCounter struct {
	calls     int
	userCalls int
}

func (c *flushCounter) FlushStockBoards(context.Context) error {
	c.calls++
	return nil
}

func (c *flushCounter) FlushUserBoards(context.Context) error {
	c.userCalls++
	return nil
}

func TestUpdateStockPricesAppendsOneRowPerStock(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	ids := seedStocks(t, repo, "10", "99.9", "1.01")

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cache := &flushCounter{}
	svc := priceService.New(repo, cache,
		priceService.WithFactorFunc(func() float64 { return 1.05 }),
		priceService.WithClock(func() time.Time { return at }),
	)

	require.NoError(t, svc.UpdateStockPrices(ctx))
	assert.Equal(t, 1, cache.calls)
	assert.Equal(t, 1, cache.userCalls)

	want := []string{"10.5", "100", "1.06"}
	for i, id := range ids {
		stock, err := repo.GetStock(ctx, id)
		require.NoError(t, err)
		assert.True(t, stock.CurrentPrice.Equal(dec(want[i])), "stock %d price %s", id, stock.CurrentPrice)

		history, err := repo.GetPriceHistory(ctx, id, 100)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.True(t, history[0].Price.Equal(stock.CurrentPrice))
		assert.Equal(t, at, history[0].RecordedAt)
	}
}

type failingRepo struct {
	*memory.Memory
	failStockID int64
}

func (r *failingRepo) UpdateStockPrice(ctx context.Context, stockID int64, price decimal.Decimal) error {
	if stockID == r.failStockID {
		return errors.New("boom")
	}
	return r.Memory.UpdateStockPrice(ctx, stockID, price)
}

func TestUpdateStockPricesIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	ids := seedStocks(t, mem, "20", "30", "40")
	repo := &failingRepo{Memory: mem, failStockID: ids[1]}

	svc := priceService.New(repo, nil, priceService.WithFactorFunc(func() float64 { return 0.95 }))

	err := svc.UpdateStockPrices(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	first, err := mem.GetStock(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, first.CurrentPrice.Equal(dec("19")))

	failed, err := mem.GetStock(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, failed.CurrentPrice.Equal(dec("30")))
	history, err := mem.GetPriceHistory(ctx, ids[1], 100)
	require.NoError(t, err)
	assert.Len(t, history, 1, "failed stock keeps only its start price")

	last, err := mem.GetStock(ctx, ids[2])
	require.NoError(t, err)
	assert.True(t, last.CurrentPrice.Equal(dec("38")))
}
