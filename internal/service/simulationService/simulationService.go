package simulationService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/KotFed0t/trading_simulator/internal/externalApi"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/model/moexModel"
	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/shopspring/decimal"
)

const (
	DefaultUsers  = 5
	DefaultTrades = 10
	MaxUsers      = 100
	MaxTrades     = 1000

	buyProbability  = 0.7
	maxTradeQty     = 10
	seedStockCount  = 5
	seedStockSupply = 1000
	usernamePattern = "sim_user_%d"
)

type seedStock struct {
	symbol string
	name   string
	price  decimal.Decimal
}

var defaultStocks = []seedStock{
	{symbol: "AAPL", name: "Apple Inc.", price: decimal.RequireFromString("95.50")},
	{symbol: "MSFT", name: "Microsoft Corp.", price: decimal.RequireFromString("88.20")},
	{symbol: "GOOGL", name: "Alphabet Inc.", price: decimal.RequireFromString("72.10")},
	{symbol: "AMZN", name: "Amazon.com Inc.", price: decimal.RequireFromString("64.75")},
	{symbol: "TSLA", name: "Tesla Inc.", price: decimal.RequireFromString("45.30")},
}

type TradingService interface {
	CreateUser(ctx context.Context, username string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	RegisterStock(ctx context.Context, symbol, name string, price decimal.Decimal, quantity int64) (model.Stock, error)
	ExecuteBuy(ctx context.Context, userID, stockID, quantity int64) (model.Transaction, error)
	ExecuteSell(ctx context.Context, userID, stockID, quantity int64) (model.Transaction, error)
}

type Repository interface {
	GetStocks(ctx context.Context, limit int) ([]model.Stock, error)
	GetHoldingPositions(ctx context.Context, userID int64) ([]model.HoldingPosition, error)
}

type QuoteProvider interface {
	GetStocksInfo(ctx context.Context) ([]moexModel.StockInfo, error)
	GetStockInfo(ctx context.Context, ticker string) (moexModel.StockInfo, error)
}

type JobRunner interface {
	NewOneTimeJob(name string, fn func(ctx context.Context) error) error
}

type SimulationService struct {
	trading TradingService
	repo    Repository
	quotes  QuoteProvider
	runner  JobRunner

	mu  sync.Mutex
	rnd *rand.Rand
}

// New builds the service. quotes may be nil, then simulated stocks come from a static list.
func New(trading TradingService, repo Repository, quotes QuoteProvider, runner JobRunner, rnd *rand.Rand) *SimulationService {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SimulationService{
		trading: trading,
		repo:    repo,
		quotes:  quotes,
		runner:  runner,
		rnd:     rnd,
	}
}

// RunTradingSimulation schedules a background simulation and returns immediately.
// Non-positive arguments fall back to DefaultUsers and DefaultTrades.
func (s *SimulationService) RunTradingSimulation(numUsers, numTrades int) error {
	if numUsers <= 0 {
		numUsers = DefaultUsers
	}
	if numTrades <= 0 {
		numTrades = DefaultTrades
	}
	if err := validateCounts(numUsers, numTrades); err != nil {
		return err
	}

	return s.runner.NewOneTimeJob(
		fmt.Sprintf("trading simulation %dx%d", numUsers, numTrades),
		func(ctx context.Context) error {
			return s.Simulate(ctx, numUsers, numTrades)
		},
	)
}

// Simulate makes sure simulated users and stocks exist, then places numTrades random orders per user.
// Rejected trades are logged and skipped.
func (s *SimulationService) Simulate(ctx context.Context, numUsers, numTrades int) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "SimulationService.Simulate"

	if err := validateCounts(numUsers, numTrades); err != nil {
		return err
	}

	users, err := s.ensureUsers(ctx, numUsers)
	if err != nil {
		return err
	}

	stocks, err := s.ensureStocks(ctx)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return errors.New("no stocks to trade")
	}

	executed, rejected := 0, 0
	for _, user := range users {
		for i := 0; i < numTrades; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if err = s.trade(ctx, user, stocks); err != nil {
				rejected++
				slog.Info("simulated trade rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", user.Username), slog.String("err", err.Error()))
				continue
			}
			executed++
		}
	}

	slog.Info("simulation finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("executed", executed), slog.Int("rejected", rejected))

	return nil
}

func (s *SimulationService) trade(ctx context.Context, user model.User, stocks []model.Stock) error {
	if s.float() < buyProbability {
		return s.buy(ctx, user, stocks)
	}

	positions, err := s.repo.GetHoldingPositions(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return s.buy(ctx, user, stocks)
	}

	position := positions[s.intN(len(positions))]
	qty := int64(s.intN(int(position.Quantity))) + 1
	_, err = s.trading.ExecuteSell(ctx, user.ID, position.StockID, qty)
	return err
}

func (s *SimulationService) buy(ctx context.Context, user model.User, stocks []model.Stock) error {
	stock := stocks[s.intN(len(stocks))]
	qty := int64(s.intN(maxTradeQty)) + 1
	_, err := s.trading.ExecuteBuy(ctx, user.ID, stock.ID, qty)
	return err
}

func validateCounts(numUsers, numTrades int) error {
	if numUsers < 0 || numUsers > MaxUsers {
		return fmt.Errorf("%w: users must be within [1, %d], got %d", service.ErrInvalidArgument, MaxUsers, numUsers)
	}
	if numTrades < 0 || numTrades > MaxTrades {
		return fmt.Errorf("%w: trades per user must be within [1, %d], got %d", service.ErrInvalidArgument, MaxTrades, numTrades)
	}
	return nil
}

func (s *SimulationService) ensureUsers(ctx context.Context, numUsers int) ([]model.User, error) {
	var users []model.User
	for i := 1; i <= numUsers; i++ {
		username := fmt.Sprintf(usernamePattern, i)

		user, err := s.trading.GetUserByUsername(ctx, username)
		if errors.Is(err, service.ErrNotFound) {
			user, err = s.trading.CreateUser(ctx, username)
			if errors.Is(err, service.ErrDuplicateKey) {
				user, err = s.trading.GetUserByUsername(ctx, username)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", username, err)
		}

		users = append(users, user)
	}
	return users, nil
}

func (s *SimulationService) ensureStocks(ctx context.Context) ([]model.Stock, error) {
	stocks, err := s.repo.GetStocks(ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(stocks) > 0 {
		return stocks, nil
	}

	for _, seed := range s.seedStocks(ctx) {
		_, err = s.trading.RegisterStock(ctx, seed.symbol, seed.name, seed.price, seedStockSupply)
		if err != nil && !errors.Is(err, service.ErrDuplicateKey) {
			return nil, err
		}
	}

	return s.repo.GetStocks(ctx, 0)
}

// seedStocks prefers live quotes, clamped to the simulated price band.
func (s *SimulationService) seedStocks(ctx context.Context) []seedStock {
	if s.quotes == nil {
		return defaultStocks
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	quotes, err := s.quotes.GetStocksInfo(ctx)
	if err != nil {
		slog.Warn("can't load quotes, using default stocks", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return defaultStocks
	}

	seeds := make([]seedStock, 0, seedStockCount)
	for _, q := range quotes {
		if len(seeds) == seedStockCount {
			break
		}
		if !q.Active || !q.Price.IsPositive() {
			continue
		}
		seeds = append(seeds, seedStock{
			symbol: q.Ticker,
			name:   q.Shortname,
			price:  model.ClampPrice(q.Price.Round(2)),
		})
	}

	if len(seeds) == 0 {
		return defaultStocks
	}
	return seeds
}

// RegisterQuotedStock lists ticker at its exchange quote, clamped to the simulated price band.
func (s *SimulationService) RegisterQuotedStock(ctx context.Context, ticker string, quantity int64) (model.Stock, error) {
	if s.quotes == nil {
		return model.Stock{}, fmt.Errorf("%w: quote provider is not configured", service.ErrInvalidArgument)
	}

	quote, err := s.quotes.GetStockInfo(ctx, ticker)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			return model.Stock{}, fmt.Errorf("%w: ticker %s", service.ErrNotFound, ticker)
		}
		return model.Stock{}, err
	}

	if !quote.Active || !quote.Price.IsPositive() {
		return model.Stock{}, fmt.Errorf("%w: %s is not traded", service.ErrInvalidArgument, ticker)
	}

	return s.trading.RegisterStock(ctx, quote.Ticker, quote.Shortname, model.ClampPrice(quote.Price.Round(2)), quantity)
}

func (s *SimulationService) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func (s *SimulationService) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}
