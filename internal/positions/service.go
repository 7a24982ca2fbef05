package positions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/marketdata"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service keeps purchases, sales and the per-symbol positions derived from
// them in step. Writes for one owner and symbol are serialized; the stored
// position is additionally guarded by its version.
type Service struct {
	purchases *store.Collection[Purchase, *Purchase]
	sales     *store.Collection[Sale, *Sale]
	positions *store.Collection[Position, *Position]
	locks     *keyedMutex
	bus       *marketdata.Bus
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(s store.Store, bus *marketdata.Bus, log zerolog.Logger) *Service {
	return &Service{
		purchases: store.NewCollection[Purchase](s, store.KindPurchases),
		sales:     store.NewCollection[Sale](s, store.KindSales),
		positions: store.NewCollection[Position](s, store.KindPositions),
		locks:     newKeyedMutex(),
		bus:       bus,
		log:       log.With().Str("component", "positions").Logger(),
		now:       time.Now,
	}
}

type BuyInput struct {
	Symbol       string
	Name         string
	Quantity     int64
	PricePerUnit decimal.Decimal
	Timestamp    time.Time
}

type SaleInput struct {
	Symbol           string
	Quantity         int64
	PricePerUnitSold decimal.Decimal
	Timestamp        time.Time
}

type BuyResult struct {
	Purchase Purchase `json:"purchase"`
	Position Position `json:"position"`
}

type SaleResult struct {
	Sale     Sale     `json:"sale"`
	Position Position `json:"position"`
}

func (s *Service) CreateBuy(ctx context.Context, owner string, in BuyInput) (BuyResult, error) {
	symbol := NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return BuyResult{}, ErrInvalidSymbol
	}
	unlock := s.locks.Lock(lockKey(owner, symbol))
	defer unlock()

	prior, err := s.loadPosition(ctx, owner, symbol)
	if err != nil {
		return BuyResult{}, err
	}
	now := s.now().UTC()
	buy := Purchase{
		Owner:        owner,
		Symbol:       symbol,
		Name:         strings.TrimSpace(in.Name),
		Quantity:     in.Quantity,
		PricePerUnit: in.PricePerUnit,
		Timestamp:    timestampOr(in.Timestamp, now),
		CreatedAt:    now,
		LastUpdated:  now,
	}
	next, err := ApplyBuy(prior, buy)
	if err != nil {
		return BuyResult{}, err
	}
	if err := s.purchases.Insert(ctx, &buy); err != nil {
		return BuyResult{}, fmt.Errorf("insert purchase: %w", err)
	}
	pos, err := s.savePosition(ctx, prior, next, now)
	if err != nil {
		s.compensate(ctx, "undo purchase insert", func(ctx context.Context) error {
			_, err := s.purchases.Delete(ctx, store.Filter{ID: buy.ID, Owner: owner})
			return err
		})
		return BuyResult{}, err
	}
	s.publish(pos)
	return BuyResult{Purchase: buy, Position: pos}, nil
}

// UpdateBuy replaces quantity, price and optionally name and timestamp of a
// purchase. The symbol cannot change.
func (s *Service) UpdateBuy(ctx context.Context, owner, id string, in BuyInput) (BuyResult, error) {
	current, err := s.GetPurchase(ctx, owner, id)
	if err != nil {
		return BuyResult{}, err
	}
	if sym := NormalizeSymbol(in.Symbol); sym != "" && sym != current.Symbol {
		return BuyResult{}, ErrSymbolChange
	}
	unlock := s.locks.Lock(lockKey(owner, current.Symbol))
	defer unlock()

	old, err := s.GetPurchase(ctx, owner, id)
	if err != nil {
		return BuyResult{}, err
	}
	pos, err := s.requirePosition(ctx, owner, old.Symbol)
	if err != nil {
		return BuyResult{}, err
	}
	now := s.now().UTC()
	updated := old
	updated.Quantity = in.Quantity
	updated.PricePerUnit = in.PricePerUnit
	if name := strings.TrimSpace(in.Name); name != "" {
		updated.Name = name
	}
	updated.Timestamp = timestampOr(in.Timestamp, old.Timestamp)
	updated.LastUpdated = now

	next, err := EditBuy(pos, old, updated)
	if err != nil {
		return BuyResult{}, err
	}
	ok, err := s.purchases.Update(ctx, &updated, true)
	if err != nil {
		return BuyResult{}, fmt.Errorf("update purchase: %w", err)
	}
	if !ok {
		return BuyResult{}, ErrConflict
	}
	saved, err := s.savePosition(ctx, &pos, next, now)
	if err != nil {
		s.compensate(ctx, "restore purchase", func(ctx context.Context) error {
			restore := old
			restore.Version = updated.Version
			_, err := s.purchases.Update(ctx, &restore, false)
			return err
		})
		return BuyResult{}, err
	}
	s.publish(saved)
	return BuyResult{Purchase: updated, Position: saved}, nil
}

// DeleteBuy removes a purchase and returns the position without it.
func (s *Service) DeleteBuy(ctx context.Context, owner, id string) (Position, error) {
	current, err := s.GetPurchase(ctx, owner, id)
	if err != nil {
		return Position{}, err
	}
	unlock := s.locks.Lock(lockKey(owner, current.Symbol))
	defer unlock()

	old, err := s.GetPurchase(ctx, owner, id)
	if err != nil {
		return Position{}, err
	}
	pos, err := s.requirePosition(ctx, owner, old.Symbol)
	if err != nil {
		return Position{}, err
	}
	next, err := ReverseBuy(pos, old)
	if err != nil {
		return Position{}, err
	}
	ok, err := s.purchases.Delete(ctx, store.Filter{ID: old.ID, Owner: owner})
	if err != nil {
		return Position{}, fmt.Errorf("delete purchase: %w", err)
	}
	if !ok {
		return Position{}, ErrNotFound
	}
	saved, err := s.savePosition(ctx, &pos, next, s.now().UTC())
	if err != nil {
		s.compensate(ctx, "restore deleted purchase", func(ctx context.Context) error {
			restore := old
			return s.purchases.Insert(ctx, &restore)
		})
		return Position{}, err
	}
	s.publish(saved)
	return saved, nil
}

func (s *Service) CreateSale(ctx context.Context, owner string, in SaleInput) (SaleResult, error) {
	symbol := NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return SaleResult{}, ErrInvalidSymbol
	}
	unlock := s.locks.Lock(lockKey(owner, symbol))
	defer unlock()

	prior, err := s.loadPosition(ctx, owner, symbol)
	if err != nil {
		return SaleResult{}, err
	}
	now := s.now().UTC()
	sale := Sale{
		Owner:            owner,
		Symbol:           symbol,
		Quantity:         in.Quantity,
		PricePerUnitSold: in.PricePerUnitSold,
		Timestamp:        timestampOr(in.Timestamp, now),
		CreatedAt:        now,
		LastUpdated:      now,
	}
	next, err := ApplySell(prior, sale)
	if err != nil {
		return SaleResult{}, err
	}
	if err := s.sales.Insert(ctx, &sale); err != nil {
		return SaleResult{}, fmt.Errorf("insert sale: %w", err)
	}
	pos, err := s.savePosition(ctx, prior, next, now)
	if err != nil {
		s.compensate(ctx, "undo sale insert", func(ctx context.Context) error {
			_, err := s.sales.Delete(ctx, store.Filter{ID: sale.ID, Owner: owner})
			return err
		})
		return SaleResult{}, err
	}
	s.publish(pos)
	return SaleResult{Sale: sale, Position: pos}, nil
}

func (s *Service) UpdateSale(ctx context.Context, owner, id string, in SaleInput) (SaleResult, error) {
	current, err := s.GetSale(ctx, owner, id)
	if err != nil {
		return SaleResult{}, err
	}
	if sym := NormalizeSymbol(in.Symbol); sym != "" && sym != current.Symbol {
		return SaleResult{}, ErrSymbolChange
	}
	unlock := s.locks.Lock(lockKey(owner, current.Symbol))
	defer unlock()

	old, err := s.GetSale(ctx, owner, id)
	if err != nil {
		return SaleResult{}, err
	}
	pos, err := s.requirePosition(ctx, owner, old.Symbol)
	if err != nil {
		return SaleResult{}, err
	}
	now := s.now().UTC()
	updated := old
	updated.Quantity = in.Quantity
	updated.PricePerUnitSold = in.PricePerUnitSold
	updated.Timestamp = timestampOr(in.Timestamp, old.Timestamp)
	updated.LastUpdated = now

	next, err := EditSell(pos, old, updated)
	if err != nil {
		return SaleResult{}, err
	}
	ok, err := s.sales.Update(ctx, &updated, true)
	if err != nil {
		return SaleResult{}, fmt.Errorf("update sale: %w", err)
	}
	if !ok {
		return SaleResult{}, ErrConflict
	}
	saved, err := s.savePosition(ctx, &pos, next, now)
	if err != nil {
		s.compensate(ctx, "restore sale", func(ctx context.Context) error {
			restore := old
			restore.Version = updated.Version
			_, err := s.sales.Update(ctx, &restore, false)
			return err
		})
		return SaleResult{}, err
	}
	s.publish(saved)
	return SaleResult{Sale: updated, Position: saved}, nil
}

func (s *Service) DeleteSale(ctx context.Context, owner, id string) (Position, error) {
	current, err := s.GetSale(ctx, owner, id)
	if err != nil {
		return Position{}, err
	}
	unlock := s.locks.Lock(lockKey(owner, current.Symbol))
	defer unlock()

	old, err := s.GetSale(ctx, owner, id)
	if err != nil {
		return Position{}, err
	}
	pos, err := s.requirePosition(ctx, owner, old.Symbol)
	if err != nil {
		return Position{}, err
	}
	next := ReverseSell(pos, old)
	ok, err := s.sales.Delete(ctx, store.Filter{ID: old.ID, Owner: owner})
	if err != nil {
		return Position{}, fmt.Errorf("delete sale: %w", err)
	}
	if !ok {
		return Position{}, ErrNotFound
	}
	saved, err := s.savePosition(ctx, &pos, next, s.now().UTC())
	if err != nil {
		s.compensate(ctx, "restore deleted sale", func(ctx context.Context) error {
			restore := old
			return s.sales.Insert(ctx, &restore)
		})
		return Position{}, err
	}
	s.publish(saved)
	return saved, nil
}

func (s *Service) ListPurchases(ctx context.Context, owner, symbol string) ([]Purchase, error) {
	out, err := s.purchases.Find(ctx, store.Filter{Owner: owner, Symbol: NormalizeSymbol(symbol)})
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return out, nil
}

func (s *Service) GetPurchase(ctx context.Context, owner, id string) (Purchase, error) {
	p, err := s.purchases.FindOne(ctx, store.Filter{ID: id, Owner: owner})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Purchase{}, ErrNotFound
		}
		return Purchase{}, fmt.Errorf("load purchase: %w", err)
	}
	return p, nil
}

func (s *Service) ListSales(ctx context.Context, owner, symbol string) ([]Sale, error) {
	out, err := s.sales.Find(ctx, store.Filter{Owner: owner, Symbol: NormalizeSymbol(symbol)})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return out, nil
}

func (s *Service) GetSale(ctx context.Context, owner, id string) (Sale, error) {
	sale, err := s.sales.FindOne(ctx, store.Filter{ID: id, Owner: owner})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, fmt.Errorf("load sale: %w", err)
	}
	return sale, nil
}

func (s *Service) GetPosition(ctx context.Context, owner, symbol string) (Position, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return Position{}, ErrNotFound
	}
	pos, err := s.loadPosition(ctx, owner, symbol)
	if err != nil {
		return Position{}, err
	}
	if pos == nil {
		return Position{}, ErrNotFound
	}
	return *pos, nil
}

func (s *Service) ListPositions(ctx context.Context, owner string) ([]Position, error) {
	out, err := s.positions.Find(ctx, store.Filter{Owner: owner})
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return out, nil
}

// HeldSymbols lists every symbol some owner currently holds shares of.
func (s *Service) HeldSymbols(ctx context.Context) ([]string, error) {
	all, err := s.positions.Find(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, p := range all {
		if p.Quantity <= 0 {
			continue
		}
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		out = append(out, p.Symbol)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) loadPosition(ctx context.Context, owner, symbol string) (*Position, error) {
	pos, err := s.positions.FindOne(ctx, store.Filter{Owner: owner, Symbol: symbol})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load position: %w", err)
	}
	return &pos, nil
}

func (s *Service) requirePosition(ctx context.Context, owner, symbol string) (Position, error) {
	pos, err := s.loadPosition(ctx, owner, symbol)
	if err != nil {
		return Position{}, err
	}
	if pos == nil {
		return Position{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	return *pos, nil
}

// savePosition inserts next when there was no prior position and otherwise
// writes it over the version it was computed from.
func (s *Service) savePosition(ctx context.Context, prior *Position, next Position, now time.Time) (Position, error) {
	next.LastUpdated = now
	if prior == nil {
		next.CreatedAt = now
		if err := s.positions.Insert(ctx, &next); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return Position{}, ErrConflict
			}
			return Position{}, fmt.Errorf("insert position: %w", err)
		}
		return next, nil
	}
	ok, err := s.positions.Update(ctx, &next, true)
	if err != nil {
		return Position{}, fmt.Errorf("update position: %w", err)
	}
	if !ok {
		return Position{}, ErrConflict
	}
	return next, nil
}

func (s *Service) compensate(ctx context.Context, step string, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		s.log.Error().Err(err).Str("step", step).Msg("ledger compensation failed")
	}
}

func (s *Service) publish(pos Position) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(marketdata.Event{Type: "position", Owner: pos.Owner, Data: pos})
}

func lockKey(owner, symbol string) string {
	return owner + "|" + symbol
}

func timestampOr(ts, fallback time.Time) time.Time {
	if ts.IsZero() {
		return fallback
	}
	return ts.UTC()
}
