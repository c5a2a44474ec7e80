package dbConverter

import (
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/model/dbModel"
)

func ConvertUser(dbUser dbModel.User) model.User {
	return model.User{
		ID:         dbUser.ID,
		Username:   dbUser.Username,
		Balance:    dbUser.Balance,
		LoanAmount: dbUser.LoanAmount,
		CreatedAt:  dbUser.CreatedAt,
	}
}

func ConvertStock(dbStock dbModel.Stock) model.Stock {
	return model.Stock{
		ID:                dbStock.ID,
		Symbol:            dbStock.Symbol,
		Name:              dbStock.Name,
		CurrentPrice:      dbStock.CurrentPrice,
		AvailableQuantity: dbStock.AvailableQuantity,
		CreatedAt:         dbStock.CreatedAt,
	}
}

func ConvertPriceHistory(dbPrice dbModel.PriceHistory) model.PriceHistory {
	return model.PriceHistory{
		ID:         dbPrice.ID,
		StockID:    dbPrice.StockID,
		Price:      dbPrice.Price,
		RecordedAt: dbPrice.RecordedAt,
	}
}

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		ID:              dbHolding.ID,
		UserID:          dbHolding.UserID,
		StockID:         dbHolding.StockID,
		Quantity:        dbHolding.Quantity,
		AverageBuyPrice: dbHolding.AverageBuyPrice,
	}
}

func ConvertHoldingPosition(dbPosition dbModel.HoldingPosition) model.HoldingPosition {
	return model.HoldingPosition{
		Holding:      ConvertHolding(dbPosition.Holding),
		Symbol:       dbPosition.Symbol,
		CurrentPrice: dbPosition.CurrentPrice,
	}
}

func ConvertTransaction(dbTx dbModel.Transaction) model.Transaction {
	return model.Transaction{
		ID:        dbTx.ID,
		UserID:    dbTx.UserID,
		StockID:   dbTx.StockID,
		Quantity:  dbTx.Quantity,
		Price:     dbTx.Price,
		Type:      model.TransactionType(dbTx.Type),
		CreatedAt: dbTx.CreatedAt,
	}
}
