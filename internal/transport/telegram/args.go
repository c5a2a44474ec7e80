package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/shopspring/decimal"
)

type argError struct {
	usage string
}

func (e *argError) Error() string {
	return "usage: " + e.usage
}

func usageErr(usage string) error {
	return &argError{usage: usage}
}

// parseID parses a positive entity id.
func parseID(arg, name string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s должен быть положительным целым числом", service.ErrInvalidArgument, name)
	}
	return id, nil
}

func parseQuantity(arg string) (int64, error) {
	qty, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || qty <= 0 {
		return 0, fmt.Errorf("%w: количество должно быть положительным целым числом", service.ErrInvalidArgument)
	}
	return qty, nil
}

// parseAmount accepts both "12.5" and "12,5".
func parseAmount(arg string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(arg, ",", "."))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: не удалось разобрать сумму %q", service.ErrInvalidArgument, arg)
	}
	return amount, nil
}

// optionalInt returns 0 when args has no value at pos, services substitute their defaults then.
func optionalInt(args []string, pos int) (int, error) {
	if len(args) <= pos {
		return 0, nil
	}
	n, err := strconv.Atoi(args[pos])
	if err != nil {
		return 0, fmt.Errorf("%w: %q не является числом", service.ErrInvalidArgument, args[pos])
	}
	return n, nil
}

type tradeArgs struct {
	userID   int64
	stockID  int64
	quantity int64
}

func parseTradeArgs(args []string, usage string) (tradeArgs, error) {
	if len(args) != 3 {
		return tradeArgs{}, usageErr(usage)
	}

	userID, err := parseID(args[0], "user_id")
	if err != nil {
		return tradeArgs{}, err
	}
	stockID, err := parseID(args[1], "stock_id")
	if err != nil {
		return tradeArgs{}, err
	}
	qty, err := parseQuantity(args[2])
	if err != nil {
		return tradeArgs{}, err
	}
	return tradeArgs{userID: userID, stockID: stockID, quantity: qty}, nil
}

type addStockArgs struct {
	symbol   string
	quantity int64
	// zero price means the quote has to be looked up
	price decimal.Decimal
	name  string
}

func parseAddStockArgs(args []string) (addStockArgs, error) {
	if len(args) < 2 {
		return addStockArgs{}, usageErr(addStockUsage)
	}

	qty, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || qty < 0 {
		return addStockArgs{}, fmt.Errorf("%w: количество должно быть неотрицательным целым числом", service.ErrInvalidArgument)
	}

	res := addStockArgs{symbol: strings.ToUpper(args[0]), quantity: qty}
	if len(args) == 2 {
		return res, nil
	}

	res.price, err = parseAmount(args[2])
	if err != nil {
		return addStockArgs{}, err
	}
	if !res.price.IsPositive() {
		return addStockArgs{}, fmt.Errorf("%w: цена должна быть больше нуля", service.ErrInvalidArgument)
	}
	res.name = strings.Join(args[3:], " ")
	return res, nil
}
