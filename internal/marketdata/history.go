package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/rs/zerolog"
)

var ErrNoHistory = errors.New("no stock data found")

var (
	rangeHistory   = Range{Period: "1y", Interval: "1d"}
	rangeLastMonth = Range{Period: "1mo", Interval: "1d"}
	rangeLastWeek  = Range{Period: "5d", Interval: "15m"}
	rangeLastDay   = Range{Period: "1d", Interval: "5m"}
)

const weekBars = 7 * 24

// StockHistory is the stored price snapshot for one symbol.
type StockHistory struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	History           []Point   `json:"history"`
	HistoryLastMonth  []Point   `json:"history_last_month"`
	HistoryLastWeek   []Point   `json:"history_last_week"`
	HistoryLastOneDay []Point   `json:"history_last_one_day"`
	CreatedAt         time.Time `json:"created_at"`
	LastModifiedAt    time.Time `json:"last_modified_at"`
	Version           int64     `json:"-"`
}

func (h *StockHistory) DocKeys() store.Keys {
	return store.Keys{ID: h.ID, Symbol: h.Symbol, Version: h.Version}
}

func (h *StockHistory) SetDocKeys(id string, version int64) {
	h.ID, h.Version = id, version
}

type HistoryService struct {
	provider Provider
	docs     *store.Collection[StockHistory, *StockHistory]
	bus      *Bus
	log      zerolog.Logger
	now      func() time.Time
}

func NewHistoryService(p Provider, s store.Store, bus *Bus, log zerolog.Logger) *HistoryService {
	return &HistoryService{
		provider: p,
		docs:     store.NewCollection[StockHistory](s, store.KindStockData),
		bus:      bus,
		log:      log.With().Str("component", "marketdata").Logger(),
		now:      time.Now,
	}
}

func (h *HistoryService) Get(ctx context.Context, symbol string) (StockHistory, error) {
	doc, err := h.docs.FindOne(ctx, store.Filter{Symbol: normalize(symbol)})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return StockHistory{}, ErrNoHistory
		}
		return StockHistory{}, err
	}
	return doc, nil
}

// Refresh fetches every window from the provider and replaces the stored
// snapshot. Nothing is written if any window fails.
func (h *HistoryService) Refresh(ctx context.Context, symbol string) (StockHistory, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return StockHistory{}, ErrNoData
	}
	history, err := h.provider.HistoricalSeries(ctx, symbol, rangeHistory)
	if err != nil {
		return StockHistory{}, fmt.Errorf("fetch %s history: %w", symbol, err)
	}
	month, err := h.provider.HistoricalSeries(ctx, symbol, rangeLastMonth)
	if err != nil {
		return StockHistory{}, fmt.Errorf("fetch %s last month: %w", symbol, err)
	}
	week, err := h.provider.HistoricalSeries(ctx, symbol, rangeLastWeek)
	if err != nil {
		return StockHistory{}, fmt.Errorf("fetch %s last week: %w", symbol, err)
	}
	day, err := h.provider.HistoricalSeries(ctx, symbol, rangeLastDay)
	if err != nil {
		return StockHistory{}, fmt.Errorf("fetch %s last day: %w", symbol, err)
	}

	now := h.now().UTC()
	snap := StockHistory{
		Symbol:            symbol,
		History:           history,
		HistoryLastMonth:  month,
		HistoryLastWeek:   trimPoints(aggregatePoints(week, time.Hour), weekBars),
		HistoryLastOneDay: day,
		CreatedAt:         now,
		LastModifiedAt:    now,
	}
	if err := h.save(ctx, &snap); err != nil {
		return StockHistory{}, err
	}
	h.log.Info().Str("symbol", symbol).Int("points", len(history)).Msg("stock history refreshed")
	if h.bus != nil {
		h.bus.Publish(Event{Type: "stock_data", Data: map[string]any{"symbol": symbol, "last_modified_at": now}})
	}
	return snap, nil
}

func (h *HistoryService) save(ctx context.Context, snap *StockHistory) error {
	existing, err := h.docs.FindOne(ctx, store.Filter{Symbol: snap.Symbol})
	switch {
	case errors.Is(err, store.ErrNotFound):
		err = h.docs.Insert(ctx, snap)
		if !errors.Is(err, store.ErrDuplicate) {
			if err != nil {
				return fmt.Errorf("insert stock history: %w", err)
			}
			return nil
		}
		// lost an insert race; overwrite the winner
		existing, err = h.docs.FindOne(ctx, store.Filter{Symbol: snap.Symbol})
		if err != nil {
			return fmt.Errorf("load stock history: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load stock history: %w", err)
	}
	snap.ID = existing.ID
	snap.Version = existing.Version
	snap.CreatedAt = existing.CreatedAt
	if _, err := h.docs.Update(ctx, snap, false); err != nil {
		return fmt.Errorf("update stock history: %w", err)
	}
	return nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
