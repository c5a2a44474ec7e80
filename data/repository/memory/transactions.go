package memory

import (
	"context"

	"github.com/KotFed0t/trading_simulator/internal/model"
)

func (m *Memory) InsertTransaction(ctx context.Context, transaction model.Transaction) (model.Transaction, error) {
	defer m.lock(ctx)()

	transaction.ID = m.nextID(&m.st.lastTransactionID)
	transaction.CreatedAt = m.now()

	n := len(m.st.transactions)
	m.record(func() { m.st.transactions = m.st.transactions[:n] })
	m.st.transactions = append(m.st.transactions, transaction)
	return transaction, nil
}

// GetTransactionsByUser returns the user's trades, most recent first.
func (m *Memory) GetTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	defer m.lock(ctx)()

	var transactions []model.Transaction
	for i := len(m.st.transactions) - 1; i >= 0 && len(transactions) < limit; i-- {
		if m.st.transactions[i].UserID == userID {
			transactions = append(transactions, m.st.transactions[i])
		}
	}
	return transactions, nil
}
