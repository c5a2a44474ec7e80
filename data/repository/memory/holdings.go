package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/KotFed0t/trading_simulator/data/repository"
	"github.com/KotFed0t/trading_simulator/internal/model"
)

func (m *Memory) GetHoldingForUpdate(ctx context.Context, userID, stockID int64) (model.Holding, error) {
	defer m.lock(ctx)()

	holding, ok := m.st.holdings[holdingKey{userID: userID, stockID: stockID}]
	if !ok {
		return model.Holding{}, repository.ErrNotFound
	}
	return holding, nil
}

func (m *Memory) UpsertHolding(ctx context.Context, holding model.Holding) error {
	defer m.lock(ctx)()

	key := holdingKey{userID: holding.UserID, stockID: holding.StockID}
	existing, ok := m.st.holdings[key]
	if ok {
		holding.ID = existing.ID
	} else {
		holding.ID = m.nextID(&m.st.lastHoldingID)
	}
	saveKey(m, m.st.holdings, key)
	m.st.holdings[key] = holding
	return nil
}

func (m *Memory) DeleteHolding(ctx context.Context, userID, stockID int64) error {
	defer m.lock(ctx)()

	key := holdingKey{userID: userID, stockID: stockID}
	if _, ok := m.st.holdings[key]; !ok {
		return repository.ErrConditionNotMet
	}
	saveKey(m, m.st.holdings, key)
	delete(m.st.holdings, key)
	return nil
}

func (m *Memory) GetHoldingPositions(ctx context.Context, userID int64) ([]model.HoldingPosition, error) {
	defer m.lock(ctx)()

	var positions []model.HoldingPosition
	for key, holding := range m.st.holdings {
		if key.userID != userID {
			continue
		}
		stock := m.st.stocks[key.stockID]
		positions = append(positions, model.HoldingPosition{
			Holding:      holding,
			Symbol:       stock.Symbol,
			CurrentPrice: stock.CurrentPrice,
		})
	}

	slices.SortFunc(positions, func(a, b model.HoldingPosition) int {
		return cmp.Compare(a.Symbol, b.Symbol)
	})

	return positions, nil
}
