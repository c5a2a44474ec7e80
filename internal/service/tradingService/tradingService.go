package tradingService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/trading_simulator/data/repository"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryLimit      = 100
	DefaultTransactionsLimit = 50
)

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	InsertUser(ctx context.Context, username string, balance decimal.Decimal) (model.User, error)
	GetUser(ctx context.Context, userID int64) (model.User, error)
	GetUserForUpdate(ctx context.Context, userID int64) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	CreditUserBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	DebitUserBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	IncreaseUserLoan(ctx context.Context, userID int64, amount, limit decimal.Decimal) error

	InsertStock(ctx context.Context, symbol, name string, price decimal.Decimal, quantity int64) (model.Stock, error)
	GetStock(ctx context.Context, stockID int64) (model.Stock, error)
	GetStockForUpdate(ctx context.Context, stockID int64) (model.Stock, error)
	GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error)
	DecreaseStockQuantity(ctx context.Context, stockID, quantity int64) error
	IncreaseStockQuantity(ctx context.Context, stockID, quantity int64) error

	InsertPriceHistory(ctx context.Context, stockID int64, price decimal.Decimal, recordedAt time.Time) error
	GetPriceHistory(ctx context.Context, stockID int64, limit int) ([]model.PriceHistory, error)

	GetHoldingForUpdate(ctx context.Context, userID, stockID int64) (model.Holding, error)
	UpsertHolding(ctx context.Context, holding model.Holding) error
	DeleteHolding(ctx context.Context, userID, stockID int64) error

	InsertTransaction(ctx context.Context, transaction model.Transaction) (model.Transaction, error)
	GetTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
}

// Cache is told when leaderboards computed so far are out of date.
type Cache interface {
	FlushUserBoards(ctx context.Context) error
	FlushStockBoards(ctx context.Context) error
}

type Option func(s *TradingService)

func WithCache(cache Cache) Option {
	return func(s *TradingService) { s.cache = cache }
}

// WithClock sets the clock used for price history records.
func WithClock(now func() time.Time) Option {
	return func(s *TradingService) { s.now = now }
}

type TradingService struct {
	repo  Repository
	cache Cache
	now   func() time.Time
}

func New(repo Repository, opts ...Option) *TradingService {
	s := &TradingService{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TradingService) CreateUser(ctx context.Context, username string) (user model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.CreateUser"

	slog.Debug("CreateUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("CreateUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", user.ID))
	}()

	username = strings.TrimSpace(username)
	if username == "" {
		return model.User{}, fmt.Errorf("%w: username is empty", service.ErrInvalidArgument)
	}

	user, err = s.repo.InsertUser(ctx, username, model.InitialBalance)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.User{}, fmt.Errorf("%w: username %q is taken", service.ErrDuplicateKey, username)
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	s.flushUserBoards(ctx, op)

	return user, nil
}

// RegisterStock lists a new stock and records its start price.
func (s *TradingService) RegisterStock(ctx context.Context, symbol, name string, price decimal.Decimal, quantity int64) (stock model.Stock, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.RegisterStock"

	slog.Debug(
		"RegisterStock start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("symbol", symbol),
		slog.String("price", price.String()),
		slog.Int64("quantity", quantity),
	)
	defer func() {
		slog.Debug("RegisterStock finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stock.ID))
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	name = strings.TrimSpace(name)
	switch {
	case symbol == "":
		return model.Stock{}, fmt.Errorf("%w: symbol is empty", service.ErrInvalidArgument)
	case !price.IsPositive():
		return model.Stock{}, fmt.Errorf("%w: price must be positive", service.ErrInvalidArgument)
	case quantity < 0:
		return model.Stock{}, fmt.Errorf("%w: quantity must not be negative", service.ErrInvalidArgument)
	}
	if name == "" {
		name = symbol
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		stock, err = s.repo.InsertStock(ctx, symbol, name, price, quantity)
		if err != nil {
			return err
		}
		return s.repo.InsertPriceHistory(ctx, stock.ID, stock.CurrentPrice, s.now())
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.Stock{}, fmt.Errorf("%w: symbol %q is taken", service.ErrDuplicateKey, symbol)
		}
		slog.Error("failed to register stock", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Stock{}, err
	}

	s.flushStockBoards(ctx, op)

	return stock, nil
}

// IssueLoan credits amount to both balance and loan, up to model.MaxLoanAmount in total.
func (s *TradingService) IssueLoan(ctx context.Context, userID int64, amount decimal.Decimal) (user model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.IssueLoan"

	slog.Debug("IssueLoan start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("amount", amount.String()))
	defer func() {
		if err != nil {
			slog.Info("IssueLoan rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("IssueLoan finished", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	if !amount.IsPositive() {
		return model.User{}, fmt.Errorf("%w: loan amount must be positive", service.ErrInvalidArgument)
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err = s.repo.GetUserForUpdate(ctx, userID)
		if err != nil {
			return notFound(err, "user", userID)
		}

		if user.LoanAmount.Add(amount).GreaterThan(model.MaxLoanAmount) {
			return fmt.Errorf("%w: loan would reach %s, ceiling is %s", service.ErrLimitExceeded, user.LoanAmount.Add(amount), model.MaxLoanAmount)
		}

		err = s.repo.IncreaseUserLoan(ctx, userID, amount, model.MaxLoanAmount)
		if err != nil {
			if errors.Is(err, repository.ErrConditionNotMet) {
				return fmt.Errorf("%w: loan ceiling is %s", service.ErrLimitExceeded, model.MaxLoanAmount)
			}
			return err
		}

		user, err = s.repo.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		return model.User{}, err
	}

	s.flushUserBoards(ctx, op)

	return user, nil
}

func (s *TradingService) flushUserBoards(ctx context.Context, op string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.FlushUserBoards(ctx); err != nil {
		slog.Warn("can't flush user boards cache", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("op", op), slog.String("err", err.Error()))
	}
}

func (s *TradingService) flushStockBoards(ctx context.Context, op string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.FlushStockBoards(ctx); err != nil {
		slog.Warn("can't flush stock boards cache", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("op", op), slog.String("err", err.Error()))
	}
}

func notFound(err error, entity string, id any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %v", service.ErrNotFound, entity, id)
	}
	return err
}
