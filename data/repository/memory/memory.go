// Package memory is an in-process ledger store with the same method set as the postgres repository.
// A single mutex serializes transactions; every write inside one records how to undo itself.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/utils"
)

type txKey struct{}

type holdingKey struct {
	userID  int64
	stockID int64
}

type state struct {
	users        map[int64]model.User
	usernames    map[string]int64
	stocks       map[int64]model.Stock
	symbols      map[string]int64
	holdings     map[holdingKey]model.Holding
	priceHistory []model.PriceHistory
	transactions []model.Transaction

	lastUserID        int64
	lastStockID       int64
	lastHoldingID     int64
	lastPriceID       int64
	lastTransactionID int64
}

type Memory struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	// undo is non-nil only while a transaction holds mu
	undo []func()
}

func New() *Memory {
	return &Memory{
		st: &state{
			users:     make(map[int64]model.User),
			usernames: make(map[string]int64),
			stocks:    make(map[int64]model.Stock),
			symbols:   make(map[string]int64),
			holdings:  make(map[holdingKey]model.Holding),
		},
		now: time.Now,
	}
}

// WithinTransaction runs tFunc holding the store lock. Nested calls join the outer transaction.
// An error or a panic in tFunc reverts every write made by it.
func (m *Memory) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) (err error) {
	if m.inTx(ctx) {
		return tFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.undo = make([]func(), 0, 16)
	committed := false
	defer func() {
		if !committed {
			m.rollback()
		}
		m.undo = nil
	}()

	err = tFunc(context.WithValue(ctx, txKey{}, m))
	if err != nil {
		slog.Debug("memory transaction rolled back", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return err
	}

	committed = true
	return nil
}

func (m *Memory) rollback() {
	for i := len(m.undo) - 1; i >= 0; i-- {
		m.undo[i]()
	}
}

func (m *Memory) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Memory)
	return ok && owner == m
}

// lock acquires the store lock unless ctx already runs inside one of its transactions.
func (m *Memory) lock(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) record(undo func()) {
	if m.undo != nil {
		m.undo = append(m.undo, undo)
	}
}

// saveKey remembers the current value of key so a rollback can put it back.
func saveKey[K comparable, V any](m *Memory, mp map[K]V, key K) {
	if m.undo == nil {
		return
	}
	prev, existed := mp[key]
	m.undo = append(m.undo, func() {
		if existed {
			mp[key] = prev
		} else {
			delete(mp, key)
		}
	})
}

func (m *Memory) nextID(counter *int64) int64 {
	prev := *counter
	m.record(func() { *counter = prev })
	*counter++
	return *counter
}
