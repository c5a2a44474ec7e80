package reportService

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/shopspring/decimal"
)

const (
	DefaultStockReportLimit = 10
	DefaultLeaderboardLimit = 5
)

var hundred = decimal.NewFromInt(100)

type Repository interface {
	GetUser(ctx context.Context, userID int64) (model.User, error)
	GetUsers(ctx context.Context) ([]model.User, error)
	GetHoldingPositions(ctx context.Context, userID int64) ([]model.HoldingPosition, error)
	GetStocks(ctx context.Context, limit int) ([]model.Stock, error)
	GetStartPrices(ctx context.Context) (map[int64]decimal.Decimal, error)
}

// Cache keeps leaderboard snapshots. Misses and failures fall back to the repository.
// Get returns a generation that is passed back to Set, so a board computed
// before an invalidation is never served after it.
type Cache interface {
	GetTopUsers(ctx context.Context, limit int) ([]model.UserReport, int64, error)
	SetTopUsers(ctx context.Context, gen int64, limit int, reports []model.UserReport) error
	GetTopStocks(ctx context.Context, limit int) ([]model.StockReport, int64, error)
	SetTopStocks(ctx context.Context, gen int64, limit int, reports []model.StockReport) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, users []model.UserReport, stocks []model.StockReport) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type ReportService struct {
	repo      Repository
	cache     Cache
	generator ReportGenerator
	storage   CloudStorage
	fileLimit int
}

// New builds the service. cache, generator and storage may be nil.
func New(repo Repository, cache Cache, generator ReportGenerator, storage CloudStorage, fileLimitInBytes int) *ReportService {
	return &ReportService{
		repo:      repo,
		cache:     cache,
		generator: generator,
		storage:   storage,
		fileLimit: fileLimitInBytes,
	}
}

func (s *ReportService) GetUserReport(ctx context.Context, userID int64) (model.UserReport, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.UserReport{}, notFound(err, "user", userID)
	}

	return s.userReport(ctx, user)
}

func (s *ReportService) userReport(ctx context.Context, user model.User) (model.UserReport, error) {
	positions, err := s.repo.GetHoldingPositions(ctx, user.ID)
	if err != nil {
		return model.UserReport{}, err
	}

	return BuildUserReport(user, positions), nil
}

// BuildUserReport values positions at current prices.
// Profit/loss percentage is measured against model.InitialBalance with the loan subtracted.
func BuildUserReport(user model.User, positions []model.HoldingPosition) model.UserReport {
	report := model.UserReport{
		UserID:          user.ID,
		Username:        user.Username,
		Balance:         user.Balance,
		LoanAmount:      user.LoanAmount,
		PortfolioValue:  decimal.Zero,
		TotalProfitLoss: decimal.Zero,
		Holdings:        make([]model.HoldingReport, 0, len(positions)),
	}

	for _, p := range positions {
		qty := decimal.NewFromInt(p.Quantity)
		value := qty.Mul(p.CurrentPrice)
		pl := qty.Mul(p.CurrentPrice.Sub(p.AverageBuyPrice))

		report.PortfolioValue = report.PortfolioValue.Add(value)
		report.TotalProfitLoss = report.TotalProfitLoss.Add(pl)
		report.Holdings = append(report.Holdings, model.HoldingReport{
			StockID:         p.StockID,
			Symbol:          p.Symbol,
			Quantity:        p.Quantity,
			AverageBuyPrice: p.AverageBuyPrice,
			CurrentPrice:    p.CurrentPrice,
			MarketValue:     value,
			ProfitLoss:      pl,
		})
	}

	netWorth := user.Balance.Add(report.PortfolioValue).Sub(user.LoanAmount)
	report.ProfitLossPercentage = netWorth.Sub(model.InitialBalance).Mul(hundred).Div(model.InitialBalance)

	return report
}

// BuildStockReport compares the current price with the start price.
func BuildStockReport(stock model.Stock, startPrice decimal.Decimal) (model.StockReport, error) {
	if startPrice.IsZero() {
		return model.StockReport{}, fmt.Errorf("stock %s has zero start price", stock.Symbol)
	}

	change := stock.CurrentPrice.Sub(startPrice)
	return model.StockReport{
		StockID:               stock.ID,
		Symbol:                stock.Symbol,
		Name:                  stock.Name,
		CurrentPrice:          stock.CurrentPrice,
		StartPrice:            startPrice,
		PriceChange:           change,
		PriceChangePercentage: change.Mul(hundred).Div(startPrice),
		AvailableQuantity:     stock.AvailableQuantity,
	}, nil
}

// GetStockReport reports on the most recently registered stocks first. limit <= 0 means DefaultStockReportLimit.
func (s *ReportService) GetStockReport(ctx context.Context, limit int) ([]model.StockReport, error) {
	if limit <= 0 {
		limit = DefaultStockReportLimit
	}
	return s.stockReports(ctx, limit)
}

func (s *ReportService) stockReports(ctx context.Context, limit int) ([]model.StockReport, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ReportService.stockReports"

	stocks, err := s.repo.GetStocks(ctx, limit)
	if err != nil {
		return nil, err
	}

	startPrices, err := s.repo.GetStartPrices(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]model.StockReport, 0, len(stocks))
	for _, stock := range stocks {
		start, ok := startPrices[stock.ID]
		if !ok {
			slog.Warn("stock has no price history", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stock.ID))
			start = stock.CurrentPrice
		}

		report, err := BuildStockReport(stock, start)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// GetTopUsers ranks users by profit/loss percentage. limit <= 0 means DefaultLeaderboardLimit.
func (s *ReportService) GetTopUsers(ctx context.Context, limit int) ([]model.UserReport, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ReportService.GetTopUsers"

	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	gen := int64(-1)
	if s.cache != nil {
		cached, cachedGen, err := s.cache.GetTopUsers(ctx, limit)
		if err == nil {
			return cached, nil
		}
		gen = cachedGen
		slog.Debug("top users cache miss", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	users, err := s.repo.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]model.UserReport, 0, len(users))
	for _, user := range users {
		report, err := s.userReport(ctx, user)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	slices.SortStableFunc(reports, func(a, b model.UserReport) int {
		if c := b.ProfitLossPercentage.Cmp(a.ProfitLossPercentage); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	reports = reports[:min(limit, len(reports))]

	if s.cache != nil {
		if err = s.cache.SetTopUsers(ctx, gen, limit, reports); err != nil {
			slog.Warn("can't cache top users", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	return reports, nil
}

// GetTopStocks ranks stocks by price change percentage. limit <= 0 means DefaultLeaderboardLimit.
func (s *ReportService) GetTopStocks(ctx context.Context, limit int) ([]model.StockReport, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ReportService.GetTopStocks"

	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	gen := int64(-1)
	if s.cache != nil {
		cached, cachedGen, err := s.cache.GetTopStocks(ctx, limit)
		if err == nil {
			return cached, nil
		}
		gen = cachedGen
		slog.Debug("top stocks cache miss", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	reports, err := s.stockReports(ctx, 0)
	if err != nil {
		return nil, err
	}

	reports = sortStocks(reports)
	reports = reports[:min(limit, len(reports))]

	if s.cache != nil {
		if err = s.cache.SetTopStocks(ctx, gen, limit, reports); err != nil {
			slog.Warn("can't cache top stocks", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	return reports, nil
}

func sortStocks(reports []model.StockReport) []model.StockReport {
	slices.SortStableFunc(reports, func(a, b model.StockReport) int {
		if c := b.PriceChangePercentage.Cmp(a.PriceChangePercentage); c != 0 {
			return c
		}
		return cmp.Compare(a.StockID, b.StockID)
	})
	return reports
}
