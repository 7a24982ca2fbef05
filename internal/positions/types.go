package positions

import (
	"strings"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/shopspring/decimal"
)

type Purchase struct {
	ID           string          `json:"id"`
	Owner        string          `json:"user_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Timestamp    time.Time       `json:"timestamp"`
	CreatedAt    time.Time       `json:"created_at"`
	LastUpdated  time.Time       `json:"last_updated"`
	Version      int64           `json:"-"`
}

type Sale struct {
	ID               string          `json:"id"`
	Owner            string          `json:"user_id"`
	Symbol           string          `json:"symbol"`
	Quantity         int64           `json:"quantity"`
	PricePerUnitSold decimal.Decimal `json:"price_per_unit_sold"`
	Timestamp        time.Time       `json:"timestamp"`
	CreatedAt        time.Time       `json:"created_at"`
	LastUpdated      time.Time       `json:"last_updated"`
	Version          int64           `json:"-"`
}

// Position is the aggregate holding of one symbol for one owner. It is only
// ever written by the ledger.
type Position struct {
	ID           string          `json:"id"`
	Owner        string          `json:"user_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	CreatedAt    time.Time       `json:"created_at"`
	LastUpdated  time.Time       `json:"last_updated"`
	Version      int64           `json:"-"`
}

func (p *Purchase) DocKeys() store.Keys {
	return store.Keys{ID: p.ID, Owner: p.Owner, Symbol: p.Symbol, Version: p.Version}
}

func (p *Purchase) SetDocKeys(id string, version int64) {
	p.ID, p.Version = id, version
}

func (s *Sale) DocKeys() store.Keys {
	return store.Keys{ID: s.ID, Owner: s.Owner, Symbol: s.Symbol, Version: s.Version}
}

func (s *Sale) SetDocKeys(id string, version int64) {
	s.ID, s.Version = id, version
}

func (p *Position) DocKeys() store.Keys {
	return store.Keys{ID: p.ID, Owner: p.Owner, Symbol: p.Symbol, Version: p.Version}
}

func (p *Position) SetDocKeys(id string, version int64) {
	p.ID, p.Version = id, version
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
