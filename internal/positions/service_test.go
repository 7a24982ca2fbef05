package positions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/marketdata"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, s store.Store) (*Service, *marketdata.Bus) {
	t.Helper()
	if s == nil {
		s = store.NewMemory()
	}
	bus := marketdata.NewBus()
	svc := NewService(s, bus, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, bus
}

func buyIn(symbol string, qty int64, price string) BuyInput {
	return BuyInput{Symbol: symbol, Name: "Apple", Quantity: qty, PricePerUnit: dec(price)}
}

func saleIn(symbol string, qty int64, price string) SaleInput {
	return SaleInput{Symbol: symbol, Quantity: qty, PricePerUnitSold: dec(price)}
}

func TestService_Scenarios(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	first, err := svc.CreateBuy(ctx, "u1", buyIn(" aapl ", 10, "100"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.Purchase.ID)
	assert.Equal(t, "AAPL", first.Purchase.Symbol)
	assert.Equal(t, fixedNow, first.Purchase.Timestamp)
	assertPosition(t, first.Position, 10, "100", "-1000")

	second, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "200"))
	require.NoError(t, err)
	assertPosition(t, second.Position, 20, "150", "-3000")
	assert.Equal(t, first.Position.ID, second.Position.ID)

	sold, err := svc.CreateSale(ctx, "u1", saleIn("AAPL", 5, "300"))
	require.NoError(t, err)
	assertPosition(t, sold.Position, 15, "150", "-1500")

	_, err = svc.CreateSale(ctx, "u1", saleIn("AAPL", 20, "300"))
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	sales, err := svc.ListSales(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Len(t, sales, 1)
	pos, err := svc.GetPosition(ctx, "u1", "aapl")
	require.NoError(t, err)
	assertPosition(t, pos, 15, "150", "-1500")

	after, err := svc.DeleteBuy(ctx, "u1", first.Purchase.ID)
	require.NoError(t, err)
	assertPosition(t, after, 5, "250", "-500")

	purchases, err := svc.ListPurchases(ctx, "u1", "AAPL")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, second.Purchase.ID, purchases[0].ID)

	stored, err := svc.GetPosition(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assertPosition(t, stored, 5, "250", "-500")
}

func TestService_SaleWithoutPosition(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.CreateSale(context.Background(), "u1", saleIn("MSFT", 1, "10"))
	assert.ErrorIs(t, err, ErrNoPosition)

	sales, err := svc.ListSales(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestService_InvalidInputWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 0, "10"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.CreateBuy(ctx, "u1", buyIn("AAPL", 1, "-10"))
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = svc.CreateBuy(ctx, "u1", buyIn("  ", 1, "10"))
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	purchases, err := svc.ListPurchases(ctx, "u1", "")
	require.NoError(t, err)
	assert.Empty(t, purchases)
	_, err = svc.GetPosition(ctx, "u1", "AAPL")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdateBuy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	b1, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "100"))
	require.NoError(t, err)
	_, err = svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "200"))
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, "u1", saleIn("AAPL", 5, "300"))
	require.NoError(t, err)

	in := buyIn("", 4, "175")
	in.Name = "Apple Inc."
	res, err := svc.UpdateBuy(ctx, "u1", b1.Purchase.ID, in)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Purchase.Quantity)
	assert.Equal(t, "Apple Inc.", res.Purchase.Name)
	assert.Equal(t, "Apple Inc.", res.Position.Name)
	assert.Equal(t, int64(9), res.Position.Quantity)
	assert.True(t, dec("-1200").Equal(res.Position.NetProfit))

	back, err := svc.UpdateBuy(ctx, "u1", b1.Purchase.ID, buyIn("AAPL", 10, "100"))
	require.NoError(t, err)
	assertClose(t, Position{Quantity: 15, PricePerUnit: dec("150"), NetProfit: dec("-1500")}, back.Position)

	stored, err := svc.GetPurchase(ctx, "u1", b1.Purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.Quantity)
	assert.True(t, dec("100").Equal(stored.PricePerUnit))
}

func TestService_UpdateBuyRejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	b, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "100"))
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, "u1", saleIn("AAPL", 8, "100"))
	require.NoError(t, err)

	_, err = svc.UpdateBuy(ctx, "u1", b.Purchase.ID, buyIn("MSFT", 10, "100"))
	assert.ErrorIs(t, err, ErrSymbolChange)

	_, err = svc.UpdateBuy(ctx, "u1", b.Purchase.ID, buyIn("AAPL", 5, "100"))
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	_, err = svc.UpdateBuy(ctx, "u2", b.Purchase.ID, buyIn("AAPL", 10, "100"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateBuy(ctx, "u1", "missing", buyIn("AAPL", 10, "100"))
	assert.ErrorIs(t, err, ErrNotFound)

	pos, err := svc.GetPosition(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assertPosition(t, pos, 2, "100", "-200")
	stored, err := svc.GetPurchase(ctx, "u1", b.Purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.Quantity)
}

func TestService_DeleteBuyOfSoldShares(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	b, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "100"))
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, "u1", saleIn("AAPL", 8, "100"))
	require.NoError(t, err)

	_, err = svc.DeleteBuy(ctx, "u1", b.Purchase.ID)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	_, err = svc.GetPurchase(ctx, "u1", b.Purchase.ID)
	assert.NoError(t, err)
}

func TestService_UpdateAndDeleteSale(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 15, "150"))
	require.NoError(t, err)
	s, err := svc.CreateSale(ctx, "u1", saleIn("AAPL", 5, "300"))
	require.NoError(t, err)
	assertPosition(t, s.Position, 10, "150", "-750")

	res, err := svc.UpdateSale(ctx, "u1", s.Sale.ID, saleIn("", 15, "300"))
	require.NoError(t, err)
	assertPosition(t, res.Position, 0, "150", "2250")

	_, err = svc.UpdateSale(ctx, "u1", s.Sale.ID, saleIn("AAPL", 16, "300"))
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	_, err = svc.UpdateSale(ctx, "u1", s.Sale.ID, saleIn("TSLA", 1, "300"))
	assert.ErrorIs(t, err, ErrSymbolChange)

	pos, err := svc.DeleteSale(ctx, "u1", s.Sale.ID)
	require.NoError(t, err)
	assertPosition(t, pos, 15, "150", "-2250")

	_, err = svc.DeleteSale(ctx, "u1", s.Sale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	b, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "100"))
	require.NoError(t, err)
	_, err = svc.CreateBuy(ctx, "u2", buyIn("AAPL", 1, "50"))
	require.NoError(t, err)

	_, err = svc.GetPurchase(ctx, "u2", b.Purchase.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.DeleteBuy(ctx, "u2", b.Purchase.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.CreateSale(ctx, "u2", saleIn("AAPL", 5, "100"))
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	list, err := svc.ListPositions(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assertPosition(t, list[0], 1, "50", "-50")
}

func TestService_ConcurrentBuysDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 1, "10"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	pos, err := svc.GetPosition(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assertPosition(t, pos, n, "10", "-500")
	assert.Equal(t, 0, svc.locks.size())
}

func TestService_HeldSymbols(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.CreateBuy(ctx, "u1", buyIn("MSFT", 1, "10"))
	require.NoError(t, err)
	_, err = svc.CreateBuy(ctx, "u2", buyIn("AAPL", 1, "10"))
	require.NoError(t, err)
	_, err = svc.CreateBuy(ctx, "u1", buyIn("AAPL", 1, "10"))
	require.NoError(t, err)
	_, err = svc.CreateBuy(ctx, "u1", buyIn("TSLA", 1, "10"))
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, "u1", saleIn("TSLA", 1, "10"))
	require.NoError(t, err)

	symbols, err := svc.HeldSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestService_PublishesPositionEvents(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t, nil)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	_, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 2, "10"))
	require.NoError(t, err)

	select {
	case evt := <-ch:
		assert.Equal(t, "position", evt.Type)
		assert.Equal(t, "u1", evt.Owner)
		pos, ok := evt.Data.(Position)
		require.True(t, ok)
		assert.Equal(t, int64(2), pos.Quantity)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

// staleStore makes every version-checked position update lose its race.
type staleStore struct {
	store.Store
}

func (s staleStore) UpdateOne(ctx context.Context, kind store.Kind, f store.Filter, doc store.Document) (bool, error) {
	if kind == store.KindPositions && f.Version != 0 {
		return false, nil
	}
	return s.Store.UpdateOne(ctx, kind, f, doc)
}

func TestService_ConflictRollsBackRecordWrites(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc, _ := newTestService(t, staleStore{Store: mem})

	first, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "100"))
	require.NoError(t, err)

	_, err = svc.CreateBuy(ctx, "u1", buyIn("AAPL", 5, "100"))
	assert.ErrorIs(t, err, ErrConflict)
	purchases, err := svc.ListPurchases(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Len(t, purchases, 1)

	_, err = svc.UpdateBuy(ctx, "u1", first.Purchase.ID, buyIn("AAPL", 3, "1"))
	assert.ErrorIs(t, err, ErrConflict)
	stored, err := svc.GetPurchase(ctx, "u1", first.Purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.Quantity)
	assert.True(t, dec("100").Equal(stored.PricePerUnit))

	_, err = svc.DeleteBuy(ctx, "u1", first.Purchase.ID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.GetPurchase(ctx, "u1", first.Purchase.ID)
	assert.NoError(t, err)

	pos, err := svc.GetPosition(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assertPosition(t, pos, 10, "100", "-1000")
}

func TestService_WorksOnSQLite(t *testing.T) {
	ctx := context.Background()
	lite, err := store.NewSQLite(ctx, t.TempDir()+"/ledger.db")
	require.NoError(t, err)
	defer lite.Close()
	svc, _ := newTestService(t, lite)

	b, err := svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "100"))
	require.NoError(t, err)
	_, err = svc.CreateBuy(ctx, "u1", buyIn("AAPL", 10, "200"))
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, "u1", saleIn("AAPL", 5, "300"))
	require.NoError(t, err)
	pos, err := svc.DeleteBuy(ctx, "u1", b.Purchase.ID)
	require.NoError(t, err)
	assertPosition(t, pos, 5, "250", "-500")

	stored, err := svc.GetPosition(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assertPosition(t, stored, 5, "250", "-500")
	assert.Equal(t, int64(4), stored.Version)
}
