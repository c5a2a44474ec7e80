package telegram

import (
	"errors"
	"fmt"
	"testing"

	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/KotFed0t/trading_simulator/internal/service/reportService"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "funds",
			err:  fmt.Errorf("%w: balance 100, cost 1500", service.ErrInsufficientFunds),
			want: "Недостаточно средств: balance 100, cost 1500",
		},
		{
			name: "supply",
			err:  fmt.Errorf("%w: 5 of AAPL available, 6 requested", service.ErrInsufficientSupply),
			want: "Недостаточно акций в продаже: 5 of AAPL available, 6 requested",
		},
		{
			name: "bare sentinel",
			err:  service.ErrLimitExceeded,
			want: "Превышен лимит: " + service.ErrLimitExceeded.Error(),
		},
		{
			name: "usage",
			err:  usageErr(loanUsage),
			want: "Использование: " + loanUsage,
		},
		{
			name: "export off",
			err:  reportService.ErrExportUnavailable,
			want: "Выгрузка отчетов не настроена",
		},
		{
			name: "unknown",
			err:  errors.New("connection reset"),
			want: internalErrMsg,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorMessage(tt.err))
		})
	}
}
