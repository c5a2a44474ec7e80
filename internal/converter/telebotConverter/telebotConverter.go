package telebotConverter

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/shopspring/decimal"
)

const timeLayout = "02.01.2006 15:04:05"

func UserResponse(user model.User) string {
	return fmt.Sprintf(
		"👤 %s (id %d)\n💰 Баланс: %s\n🏦 Кредит: %s",
		user.Username, user.ID, money(user.Balance), money(user.LoanAmount),
	)
}

func StockResponse(stock model.Stock) string {
	return fmt.Sprintf(
		"📈 %s (id %d) %s\n   ▸ Цена: %s\n   ▸ В продаже: %d шт.",
		stock.Symbol, stock.ID, stock.Name, money(stock.CurrentPrice), stock.AvailableQuantity,
	)
}

func TransactionResponse(tx model.Transaction) string {
	action := "Покупка"
	if tx.Type == model.TransactionSell {
		action = "Продажа"
	}
	return fmt.Sprintf(
		"✅ %s #%d: %d шт. акции %d по %s, итого %s",
		action, tx.ID, tx.Quantity, tx.StockID, money(tx.Price), money(tx.Total()),
	)
}

func UserReportResponse(report model.UserReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📊 Портфель %s\n", report.Username))
	sb.WriteString(fmt.Sprintf("💰 Баланс: %s\n", money(report.Balance)))
	sb.WriteString(fmt.Sprintf("🏦 Кредит: %s\n", money(report.LoanAmount)))
	sb.WriteString(fmt.Sprintf("💼 Стоимость акций: %s\n", money(report.PortfolioValue)))
	sb.WriteString(fmt.Sprintf("📉 Нереализованная прибыль: %s\n", signed(report.TotalProfitLoss)))
	sb.WriteString(fmt.Sprintf("📈 Доходность: %s%%\n", signed(report.ProfitLossPercentage)))

	if len(report.Holdings) == 0 {
		sb.WriteString("\nАкций нет")
		return sb.String()
	}

	sb.WriteString("\n📋 Состав:\n")
	for _, h := range report.Holdings {
		sb.WriteString(fmt.Sprintf("%s: %d шт.\n", h.Symbol, h.Quantity))
		sb.WriteString(fmt.Sprintf("   ▸ Средняя цена: %s, текущая: %s\n", money(h.AverageBuyPrice), money(h.CurrentPrice)))
		sb.WriteString(fmt.Sprintf("   ▸ Стоимость: %s, P/L: %s\n", money(h.MarketValue), signed(h.ProfitLoss)))
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func StockReportsResponse(title string, reports []model.StockReport) string {
	if len(reports) == 0 {
		return title + "\n\nАкций нет"
	}

	var sb strings.Builder
	sb.WriteString(title + "\n")
	for i, r := range reports {
		sb.WriteString(fmt.Sprintf(
			"\n%d. %s (id %d) %s: %s → %s (%s%%), в продаже %d",
			i+1, r.Symbol, r.StockID, r.Name, money(r.StartPrice), money(r.CurrentPrice), signed(r.PriceChangePercentage), r.AvailableQuantity,
		))
	}
	return sb.String()
}

func TopUsersResponse(reports []model.UserReport) string {
	if len(reports) == 0 {
		return "🏆 Рейтинг пользователей\n\nПользователей нет"
	}

	var sb strings.Builder
	sb.WriteString("🏆 Рейтинг пользователей\n")
	for i, r := range reports {
		sb.WriteString(fmt.Sprintf(
			"\n%d. %s (id %d): %s%%, капитал %s",
			i+1, r.Username, r.UserID, signed(r.ProfitLossPercentage), money(r.Balance.Add(r.PortfolioValue).Sub(r.LoanAmount)),
		))
	}
	return sb.String()
}

func PriceHistoryResponse(stockID int64, history []model.PriceHistory) string {
	if len(history) == 0 {
		return fmt.Sprintf("История цены акции %d пуста", stockID)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🕰 История цены акции %d\n", stockID))
	for _, h := range history {
		sb.WriteString(fmt.Sprintf("\n%s  %s", h.RecordedAt.Format(timeLayout), money(h.Price)))
	}
	return sb.String()
}

func TransactionsResponse(userID int64, txs []model.Transaction) string {
	if len(txs) == 0 {
		return fmt.Sprintf("У пользователя %d нет сделок", userID)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🧾 Сделки пользователя %d\n", userID))
	for _, tx := range txs {
		sb.WriteString(fmt.Sprintf(
			"\n%s %s %d × акция %d по %s",
			tx.CreatedAt.Format(timeLayout), tx.Type, tx.Quantity, tx.StockID, money(tx.Price),
		))
	}
	return sb.String()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
