package memory

import (
	"context"
	"time"

	"github.com/KotFed0t/trading_simulator/data/repository"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/shopspring/decimal"
)

func (m *Memory) InsertStock(ctx context.Context, symbol, name string, price decimal.Decimal, quantity int64) (model.Stock, error) {
	defer m.lock(ctx)()

	if _, ok := m.st.symbols[symbol]; ok {
		return model.Stock{}, repository.ErrAlreadyExists
	}

	stock := model.Stock{
		ID:                m.nextID(&m.st.lastStockID),
		Symbol:            symbol,
		Name:              name,
		CurrentPrice:      price,
		AvailableQuantity: quantity,
		CreatedAt:         m.now(),
	}
	saveKey(m, m.st.stocks, stock.ID)
	saveKey(m, m.st.symbols, symbol)
	m.st.stocks[stock.ID] = stock
	m.st.symbols[symbol] = stock.ID

	return stock, nil
}

func (m *Memory) GetStock(ctx context.Context, stockID int64) (model.Stock, error) {
	defer m.lock(ctx)()
	return m.getStock(stockID)
}

func (m *Memory) GetStockForUpdate(ctx context.Context, stockID int64) (model.Stock, error) {
	return m.GetStock(ctx, stockID)
}

func (m *Memory) GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error) {
	defer m.lock(ctx)()

	id, ok := m.st.symbols[symbol]
	if !ok {
		return model.Stock{}, repository.ErrNotFound
	}
	return m.getStock(id)
}

func (m *Memory) getStock(stockID int64) (model.Stock, error) {
	stock, ok := m.st.stocks[stockID]
	if !ok {
		return model.Stock{}, repository.ErrNotFound
	}
	return stock, nil
}

// GetStocks returns stocks newest first. IDs grow with registration time.
func (m *Memory) GetStocks(ctx context.Context, limit int) ([]model.Stock, error) {
	defer m.lock(ctx)()

	stocks := make([]model.Stock, 0, len(m.st.stocks))
	for id := m.st.lastStockID; id > 0; id-- {
		if limit > 0 && len(stocks) == limit {
			break
		}
		if stock, ok := m.st.stocks[id]; ok {
			stocks = append(stocks, stock)
		}
	}
	return stocks, nil
}

func (m *Memory) DecreaseStockQuantity(ctx context.Context, stockID, quantity int64) error {
	defer m.lock(ctx)()

	stock, ok := m.st.stocks[stockID]
	if !ok || stock.AvailableQuantity < quantity {
		return repository.ErrConditionNotMet
	}
	saveKey(m, m.st.stocks, stockID)
	stock.AvailableQuantity -= quantity
	m.st.stocks[stockID] = stock
	return nil
}

func (m *Memory) IncreaseStockQuantity(ctx context.Context, stockID, quantity int64) error {
	defer m.lock(ctx)()

	stock, ok := m.st.stocks[stockID]
	if !ok {
		return repository.ErrConditionNotMet
	}
	saveKey(m, m.st.stocks, stockID)
	stock.AvailableQuantity += quantity
	m.st.stocks[stockID] = stock
	return nil
}

func (m *Memory) UpdateStockPrice(ctx context.Context, stockID int64, price decimal.Decimal) error {
	defer m.lock(ctx)()

	stock, ok := m.st.stocks[stockID]
	if !ok {
		return repository.ErrConditionNotMet
	}
	saveKey(m, m.st.stocks, stockID)
	stock.CurrentPrice = price
	m.st.stocks[stockID] = stock
	return nil
}

func (m *Memory) InsertPriceHistory(ctx context.Context, stockID int64, price decimal.Decimal, recordedAt time.Time) error {
	defer m.lock(ctx)()

	if _, ok := m.st.stocks[stockID]; !ok {
		return repository.ErrNotFound
	}

	n := len(m.st.priceHistory)
	m.record(func() { m.st.priceHistory = m.st.priceHistory[:n] })
	m.st.priceHistory = append(m.st.priceHistory, model.PriceHistory{
		ID:         m.nextID(&m.st.lastPriceID),
		StockID:    stockID,
		Price:      price,
		RecordedAt: recordedAt,
	})
	return nil
}

// GetPriceHistory returns the most recent records first.
func (m *Memory) GetPriceHistory(ctx context.Context, stockID int64, limit int) ([]model.PriceHistory, error) {
	defer m.lock(ctx)()

	var history []model.PriceHistory
	for i := len(m.st.priceHistory) - 1; i >= 0 && len(history) < limit; i-- {
		if m.st.priceHistory[i].StockID == stockID {
			history = append(history, m.st.priceHistory[i])
		}
	}
	return history, nil
}

func (m *Memory) GetStartPrices(ctx context.Context) (map[int64]decimal.Decimal, error) {
	defer m.lock(ctx)()

	prices := make(map[int64]decimal.Decimal, len(m.st.stocks))
	for _, h := range m.st.priceHistory {
		if _, ok := prices[h.StockID]; !ok {
			prices[h.StockID] = h.Price
		}
	}
	return prices, nil
}
