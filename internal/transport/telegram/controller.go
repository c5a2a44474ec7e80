package telegram

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/KotFed0t/trading_simulator/internal/converter/telebotConverter"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

type TradingService interface {
	CreateUser(ctx context.Context, username string) (model.User, error)
	RegisterStock(ctx context.Context, symbol, name string, price decimal.Decimal, quantity int64) (model.Stock, error)
	IssueLoan(ctx context.Context, userID int64, amount decimal.Decimal) (model.User, error)
	ExecuteBuy(ctx context.Context, userID, stockID, quantity int64) (model.Transaction, error)
	ExecuteSell(ctx context.Context, userID, stockID, quantity int64) (model.Transaction, error)
	GetStockHistory(ctx context.Context, stockID int64, limit int) ([]model.PriceHistory, error)
	GetUserTransactions(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
}

type ReportService interface {
	GetUserReport(ctx context.Context, userID int64) (model.UserReport, error)
	GetStockReport(ctx context.Context, limit int) ([]model.StockReport, error)
	GetTopUsers(ctx context.Context, limit int) ([]model.UserReport, error)
	GetTopStocks(ctx context.Context, limit int) ([]model.StockReport, error)
	ExportLeaderboards(ctx context.Context) (model.ReportFile, error)
}

type SimulationService interface {
	RunTradingSimulation(numUsers, numTrades int) error
	RegisterQuotedStock(ctx context.Context, ticker string, quantity int64) (model.Stock, error)
}

type Controller struct {
	tradingService    TradingService
	reportService     ReportService
	simulationService SimulationService
}

func NewController(tradingService TradingService, reportService ReportService, simulationService SimulationService) *Controller {
	return &Controller{
		tradingService:    tradingService,
		reportService:     reportService,
		simulationService: simulationService,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	return c.Send(helpMsg)
}

func (ctrl *Controller) Register(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	args := c.Args()
	if len(args) != 1 {
		return ctrl.fail(ctx, c, usageErr(registerUsage))
	}

	user, err := ctrl.tradingService.CreateUser(ctx, args[0])
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.UserResponse(user))
}

func (ctrl *Controller) AddStock(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	args, err := parseAddStockArgs(c.Args())
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	var stock model.Stock
	if args.price.IsZero() {
		stock, err = ctrl.simulationService.RegisterQuotedStock(ctx, args.symbol, args.quantity)
	} else {
		stock, err = ctrl.tradingService.RegisterStock(ctx, args.symbol, args.name, args.price, args.quantity)
	}
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.StockResponse(stock))
}

func (ctrl *Controller) Loan(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	args := c.Args()
	if len(args) != 2 {
		return ctrl.fail(ctx, c, usageErr(loanUsage))
	}

	userID, err := parseID(args[0], "user_id")
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	user, err := ctrl.tradingService.IssueLoan(ctx, userID, amount)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.UserResponse(user))
}

func (ctrl *Controller) Buy(c tele.Context) error {
	return ctrl.trade(c, buyUsage, ctrl.tradingService.ExecuteBuy)
}

func (ctrl *Controller) Sell(c tele.Context) error {
	return ctrl.trade(c, sellUsage, ctrl.tradingService.ExecuteSell)
}

func (ctrl *Controller) trade(c tele.Context, usage string, execute func(ctx context.Context, userID, stockID, quantity int64) (model.Transaction, error)) error {
	ctx := utils.CreateCtxWithRqID(c)

	args, err := parseTradeArgs(c.Args(), usage)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	tx, err := execute(ctx, args.userID, args.stockID, args.quantity)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.TransactionResponse(tx))
}

func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	args := c.Args()
	if len(args) != 1 {
		return ctrl.fail(ctx, c, usageErr(reportUsage))
	}

	userID, err := parseID(args[0], "user_id")
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	report, err := ctrl.reportService.GetUserReport(ctx, userID)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.UserReportResponse(report))
}

func (ctrl *Controller) History(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	args := c.Args()
	if len(args) < 1 || len(args) > 2 {
		return ctrl.fail(ctx, c, usageErr(historyUsage))
	}

	stockID, err := parseID(args[0], "stock_id")
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	limit, err := optionalInt(args, 1)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	history, err := ctrl.tradingService.GetStockHistory(ctx, stockID, limit)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.PriceHistoryResponse(stockID, history))
}

func (ctrl *Controller) Trades(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	args := c.Args()
	if len(args) < 1 || len(args) > 2 {
		return ctrl.fail(ctx, c, usageErr(tradesUsage))
	}

	userID, err := parseID(args[0], "user_id")
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	limit, err := optionalInt(args, 1)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	txs, err := ctrl.tradingService.GetUserTransactions(ctx, userID, limit)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.TransactionsResponse(userID, txs))
}

func (ctrl *Controller) Stocks(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	limit, err := optionalInt(c.Args(), 0)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	reports, err := ctrl.reportService.GetStockReport(ctx, limit)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.StockReportsResponse("🆕 Последние листинги", reports))
}

func (ctrl *Controller) TopUsers(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	limit, err := optionalInt(c.Args(), 0)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	reports, err := ctrl.reportService.GetTopUsers(ctx, limit)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.TopUsersResponse(reports))
}

func (ctrl *Controller) TopStocks(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	limit, err := optionalInt(c.Args(), 0)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	reports, err := ctrl.reportService.GetTopStocks(ctx, limit)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send(telebotConverter.StockReportsResponse("🚀 Лидеры роста", reports))
}

func (ctrl *Controller) Simulate(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	args := c.Args()

	numUsers, err := optionalInt(args, 0)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}
	numTrades, err := optionalInt(args, 1)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	if err = ctrl.simulationService.RunTradingSimulation(numUsers, numTrades); err != nil {
		return ctrl.fail(ctx, c, err)
	}
	return c.Send("Симуляция запущена, результаты смотрите в /top_users")
}

func (ctrl *Controller) Export(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	file, err := ctrl.reportService.ExportLeaderboards(ctx)
	if err != nil {
		return ctrl.fail(ctx, c, err)
	}

	if file.DownloadLink != "" {
		return c.Send("Файл слишком большой для отправки, скачать: " + file.DownloadLink)
	}

	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(file.Content)),
		FileName: file.Name,
	}
	return c.Send(doc)
}

// fail replies with the mapped error text and logs errors that are not the user's fault.
func (ctrl *Controller) fail(ctx context.Context, c tele.Context, err error) error {
	msg := errorMessage(err)
	if msg == internalErrMsg {
		slog.Error(
			"command failed",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("text", c.Text()),
			slog.String("err", err.Error()),
		)
	}
	return c.Send(msg)
}
