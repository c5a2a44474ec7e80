package telegram

import (
	"errors"
	"strings"

	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/KotFed0t/trading_simulator/internal/service/reportService"
)

const (
	internalErrMsg = "что-то пошло не так..."

	registerUsage = "/register <username>"
	addStockUsage = "/add_stock <SYMBOL> <qty> [price [name...]]"
	loanUsage     = "/loan <user_id> <amount>"
	buyUsage      = "/buy <user_id> <stock_id> <qty>"
	sellUsage     = "/sell <user_id> <stock_id> <qty>"
	reportUsage   = "/report <user_id>"
	historyUsage  = "/history <stock_id> [limit]"
	tradesUsage   = "/trades <user_id> [limit]"
)

var helpMsg = strings.Join([]string{
	"Симулятор биржи. Команды:",
	registerUsage + " - регистрация, стартовый баланс 10000",
	addStockUsage + " - листинг акции, без цены берется котировка MOEX",
	loanUsage + " - кредит, не более 100000 суммарно",
	buyUsage,
	sellUsage,
	reportUsage + " - портфель и прибыль",
	historyUsage + " - история цены",
	tradesUsage + " - сделки пользователя",
	"/stocks [limit] - последние листинги",
	"/top_users [limit], /top_stocks [limit] - рейтинги",
	"/simulate [users] [trades] - запустить симуляцию торгов",
	"/export - выгрузить рейтинги в xlsx",
}, "\n")

// errorMessage converts service errors into a reply. Unknown errors are reported as internal.
func errorMessage(err error) string {
	var argErr *argError
	switch {
	case errors.As(err, &argErr):
		return "Использование: " + argErr.usage
	case errors.Is(err, service.ErrNotFound):
		return "Не найдено: " + reason(err, service.ErrNotFound)
	case errors.Is(err, service.ErrInvalidArgument):
		return "Некорректный запрос: " + reason(err, service.ErrInvalidArgument)
	case errors.Is(err, service.ErrDuplicateKey):
		return "Уже существует: " + reason(err, service.ErrDuplicateKey)
	case errors.Is(err, service.ErrInsufficientFunds):
		return "Недостаточно средств: " + reason(err, service.ErrInsufficientFunds)
	case errors.Is(err, service.ErrInsufficientSupply):
		return "Недостаточно акций в продаже: " + reason(err, service.ErrInsufficientSupply)
	case errors.Is(err, service.ErrInsufficientHoldings):
		return "Недостаточно акций в портфеле: " + reason(err, service.ErrInsufficientHoldings)
	case errors.Is(err, service.ErrLimitExceeded):
		return "Превышен лимит: " + reason(err, service.ErrLimitExceeded)
	case errors.Is(err, reportService.ErrExportUnavailable):
		return "Выгрузка отчетов не настроена"
	default:
		return internalErrMsg
	}
}

// reason strips the sentinel prefix from a "%w: details" error.
func reason(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
