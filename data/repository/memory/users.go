package memory

import (
	"context"

	"github.com/KotFed0t/trading_simulator/data/repository"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/shopspring/decimal"
)

func (m *Memory) InsertUser(ctx context.Context, username string, balance decimal.Decimal) (model.User, error) {
	defer m.lock(ctx)()

	if _, ok := m.st.usernames[username]; ok {
		return model.User{}, repository.ErrAlreadyExists
	}

	user := model.User{
		ID:         m.nextID(&m.st.lastUserID),
		Username:   username,
		Balance:    balance,
		LoanAmount: decimal.Zero,
		CreatedAt:  m.now(),
	}
	saveKey(m, m.st.users, user.ID)
	saveKey(m, m.st.usernames, username)
	m.st.users[user.ID] = user
	m.st.usernames[username] = user.ID

	return user, nil
}

func (m *Memory) GetUser(ctx context.Context, userID int64) (model.User, error) {
	defer m.lock(ctx)()
	return m.getUser(userID)
}

// GetUserForUpdate is GetUser: the transaction already holds the store lock.
func (m *Memory) GetUserForUpdate(ctx context.Context, userID int64) (model.User, error) {
	return m.GetUser(ctx, userID)
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	defer m.lock(ctx)()

	id, ok := m.st.usernames[username]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return m.getUser(id)
}

func (m *Memory) getUser(userID int64) (model.User, error) {
	user, ok := m.st.users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *Memory) GetUsers(ctx context.Context) ([]model.User, error) {
	defer m.lock(ctx)()

	users := make([]model.User, 0, len(m.st.users))
	for id := int64(1); id <= m.st.lastUserID; id++ {
		if user, ok := m.st.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (m *Memory) CreditUserBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	defer m.lock(ctx)()

	user, ok := m.st.users[userID]
	if !ok {
		return repository.ErrConditionNotMet
	}
	saveKey(m, m.st.users, userID)
	user.Balance = user.Balance.Add(amount)
	m.st.users[userID] = user
	return nil
}

func (m *Memory) DebitUserBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	defer m.lock(ctx)()

	user, ok := m.st.users[userID]
	if !ok || user.Balance.LessThan(amount) {
		return repository.ErrConditionNotMet
	}
	saveKey(m, m.st.users, userID)
	user.Balance = user.Balance.Sub(amount)
	m.st.users[userID] = user
	return nil
}

func (m *Memory) IncreaseUserLoan(ctx context.Context, userID int64, amount, limit decimal.Decimal) error {
	defer m.lock(ctx)()

	user, ok := m.st.users[userID]
	if !ok || user.LoanAmount.Add(amount).GreaterThan(limit) {
		return repository.ErrConditionNotMet
	}
	saveKey(m, m.st.users, userID)
	user.Balance = user.Balance.Add(amount)
	user.LoanAmount = user.LoanAmount.Add(amount)
	m.st.users[userID] = user
	return nil
}
