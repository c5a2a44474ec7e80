package moexApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/trading_simulator/config"
	"github.com/KotFed0t/trading_simulator/internal/externalApi"
	"github.com/KotFed0t/trading_simulator/internal/model/moexModel"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const securitiesURL = "/iss/engines/stock/markets/shares/boards/TQBR/securities.json"

type MoexApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *MoexApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.MoexApi.Url)
	return &MoexApi{client: client}
}

// GetStocksInfo returns quotes for every security on the board.
func (a *MoexApi) GetStocksInfo(ctx context.Context) ([]moexModel.StockInfo, error) {
	return a.fetch(ctx, "MoexApi.GetStocksInfo", nil)
}

// GetStockInfo returns the quote for one ticker, externalApi.ErrNotFound if the board has no such security.
func (a *MoexApi) GetStockInfo(ctx context.Context, ticker string) (moexModel.StockInfo, error) {
	stocks, err := a.fetch(ctx, "MoexApi.GetStockInfo", map[string]string{"securities": ticker})
	if err != nil {
		return moexModel.StockInfo{}, err
	}

	switch len(stocks) {
	case 0:
		return moexModel.StockInfo{}, externalApi.ErrNotFound
	case 1:
		return stocks[0], nil
	default:
		return moexModel.StockInfo{}, errors.New("unexpected slice lenght, expected only 1 element")
	}
}

func (a *MoexApi) fetch(ctx context.Context, op string, extraParams map[string]string) ([]moexModel.StockInfo, error) {
	rqId := utils.GetRequestIDFromCtx(ctx)
	params := map[string]string{
		"iss.meta":           "off",
		"securities.columns": "SECID,SHORTNAME,STATUS",
		"marketdata.columns": "SECID,MARKETPRICE",
	}
	for k, v := range extraParams {
		params[k] = v
	}

	slog.Debug("MoexApi request start", slog.String("rqID", rqId), slog.String("op", op), slog.Any("params", params))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(securitiesURL)
	if err != nil {
		slog.Error("error while dialing MoexApi", slog.String("err", err.Error()), slog.String("rqID", rqId), slog.String("op", op))
		return nil, err
	}

	if resp.IsError() {
		slog.Error("MoexApi responded with error", slog.String("status", resp.Status()), slog.String("rqID", rqId), slog.String("op", op))
		return nil, fmt.Errorf("moex api status %d", resp.StatusCode())
	}

	rawStocksInfo := moexModel.RawStocksInfo{}
	err = json.Unmarshal(resp.Body(), &rawStocksInfo)
	if err != nil {
		slog.Error("can't unmarshall response into moexModel.RawStocksInfo", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return nil, err
	}

	res, err := ParseStocksInfo(rawStocksInfo)
	if err != nil {
		slog.Error("can't parse raw data", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return nil, err
	}

	slog.Debug("MoexApi request complete", slog.String("rqID", rqId), slog.String("op", op), slog.Int("count", len(res)))

	return res, nil
}

// ParseStocksInfo joins the column-oriented securities and marketdata tables row by row.
func ParseStocksInfo(raw moexModel.RawStocksInfo) ([]moexModel.StockInfo, error) {
	if len(raw.Marketdata.Data) != len(raw.Securities.Data) {
		return nil, errors.New("lengths Marketdata != Securities")
	}

	res := make([]moexModel.StockInfo, 0, len(raw.Marketdata.Data))

	for i := range raw.Marketdata.Data {
		if len(raw.Marketdata.Data[i]) != len(raw.Marketdata.Columns) {
			return nil, errors.New("invalid Marketdata")
		}

		if len(raw.Securities.Data[i]) != len(raw.Securities.Columns) {
			return nil, errors.New("invalid Securities")
		}

		stockInfo := moexModel.StockInfo{}

		for j, column := range raw.Marketdata.Columns {
			value := raw.Marketdata.Data[i][j]
			ok := true
			switch column {
			case "SECID":
				stockInfo.Ticker, ok = value.(string)
			case "MARKETPRICE":
				if value != nil {
					var price float64
					price, ok = value.(float64)
					if ok {
						stockInfo.Price = decimal.NewFromFloat(price)
					}
				}
			default:
				return nil, fmt.Errorf("unknown column %s", column)
			}

			if !ok {
				return nil, fmt.Errorf("invalid type %s = %v", column, value)
			}
		}

		for j, column := range raw.Securities.Columns {
			value := raw.Securities.Data[i][j]
			ok := true
			switch column {
			case "SECID":
				if value != stockInfo.Ticker {
					return nil, fmt.Errorf("secID in securities and market data is not equal %v and %s", value, stockInfo.Ticker)
				}
			case "SHORTNAME":
				stockInfo.Shortname, ok = value.(string)
			case "STATUS":
				var status string
				status, ok = value.(string)
				stockInfo.Active = ok && status == "A"
			default:
				return nil, fmt.Errorf("unknown column %s", column)
			}

			if !ok {
				return nil, fmt.Errorf("invalid type %s = %v", column, value)
			}
		}

		res = append(res, stockInfo)
	}

	return res, nil
}
