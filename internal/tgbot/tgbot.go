package tgbot

import (
	"log/slog"

	"github.com/KotFed0t/trading_simulator/config"
	"github.com/KotFed0t/trading_simulator/internal/transport/telegram"
	customMW "github.com/KotFed0t/trading_simulator/internal/transport/telegram/middleware"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type TGBot struct {
	bot  *tele.Bot
	ctrl *telegram.Controller
}

func New(cfg *config.Config, ctrl *telegram.Controller) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/help", b.ctrl.Start)

	b.bot.Handle("/register", b.ctrl.Register)
	b.bot.Handle("/add_stock", b.ctrl.AddStock)

	b.bot.Handle("/loan", b.ctrl.Loan)
	b.bot.Handle("/buy", b.ctrl.Buy)
	b.bot.Handle("/sell", b.ctrl.Sell)

	b.bot.Handle("/report", b.ctrl.Report)
	b.bot.Handle("/history", b.ctrl.History)
	b.bot.Handle("/trades", b.ctrl.Trades)
	b.bot.Handle("/stocks", b.ctrl.Stocks)
	b.bot.Handle("/top_users", b.ctrl.TopUsers)
	b.bot.Handle("/top_stocks", b.ctrl.TopStocks)

	b.bot.Handle("/simulate", b.ctrl.Simulate)
	b.bot.Handle("/export", b.ctrl.Export)

	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		return c.Send("сначала введите одну из команд, список: /start")
	})
}
