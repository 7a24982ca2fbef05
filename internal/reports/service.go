// Package reports assembles read-only per-symbol views across the ledger and
// stored market data.
package reports

import (
	"context"
	"errors"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/marketdata"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/positions"
)

// SymbolReport is everything one owner has recorded for one symbol. A
// missing position or history leaves the field null.
type SymbolReport struct {
	Symbol       string                   `json:"symbol"`
	SoldRecords  []positions.Sale         `json:"sold_records"`
	BuyStock     []positions.Purchase     `json:"buy_stock"`
	CurrentStock *positions.Position      `json:"current_stock"`
	StockData    *marketdata.StockHistory `json:"stock_data"`
}

type Service struct {
	ledger  *positions.Service
	history *marketdata.HistoryService
}

func NewService(ledger *positions.Service, history *marketdata.HistoryService) *Service {
	return &Service{ledger: ledger, history: history}
}

func (s *Service) ForSymbol(ctx context.Context, owner, symbol string) (SymbolReport, error) {
	symbol = positions.NormalizeSymbol(symbol)
	if symbol == "" {
		return SymbolReport{}, positions.ErrInvalidSymbol
	}
	out := SymbolReport{Symbol: symbol}

	sales, err := s.ledger.ListSales(ctx, owner, symbol)
	if err != nil {
		return out, err
	}
	out.SoldRecords = sales

	buys, err := s.ledger.ListPurchases(ctx, owner, symbol)
	if err != nil {
		return out, err
	}
	out.BuyStock = buys

	pos, err := s.ledger.GetPosition(ctx, owner, symbol)
	switch {
	case err == nil:
		out.CurrentStock = &pos
	case !errors.Is(err, positions.ErrNotFound):
		return out, err
	}

	if s.history != nil {
		doc, err := s.history.Get(ctx, symbol)
		switch {
		case err == nil:
			out.StockData = &doc
		case !errors.Is(err, marketdata.ErrNoHistory):
			return out, err
		}
	}
	return out, nil
}
