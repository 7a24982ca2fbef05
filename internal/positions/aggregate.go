package positions

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Average prices are kept to this many fractional digits.
const pricePlaces = 10

// ApplyBuy adds buy to prior. A nil prior opens a new position.
func ApplyBuy(prior *Position, buy Purchase) (Position, error) {
	if err := validateBuy(buy); err != nil {
		return Position{}, err
	}
	return applyBuy(prior, buy)
}

// ApplySell removes the sold quantity from prior and books the proceeds.
// The average price does not move.
func ApplySell(prior *Position, sale Sale) (Position, error) {
	if err := validateSale(sale); err != nil {
		return Position{}, err
	}
	if prior == nil {
		return Position{}, ErrNoPosition
	}
	return applySell(*prior, sale)
}

// ReverseBuy undoes a buy previously applied to pos. It fails when the
// bought shares are no longer held.
func ReverseBuy(pos Position, buy Purchase) (Position, error) {
	next := reverseBuy(pos, buy)
	if next.Quantity < 0 {
		return Position{}, fmt.Errorf("%w: holding %d, removing buy of %d", ErrInsufficientQuantity, pos.Quantity, buy.Quantity)
	}
	return next, nil
}

func ReverseSell(pos Position, sale Sale) Position {
	next := pos
	next.Quantity = pos.Quantity + sale.Quantity
	next.NetProfit = pos.NetProfit.Sub(proceeds(sale))
	return next
}

// EditBuy replaces old with updated in one step. Only the final quantity
// has to be non-negative.
func EditBuy(pos Position, old, updated Purchase) (Position, error) {
	if err := validateBuy(updated); err != nil {
		return Position{}, err
	}
	reverted := reverseBuy(pos, old)
	return applyBuy(&reverted, updated)
}

// EditSell replaces old with updated. The oversell check runs against the
// quantity held once old is reversed.
func EditSell(pos Position, old, updated Sale) (Position, error) {
	if err := validateSale(updated); err != nil {
		return Position{}, err
	}
	return applySell(ReverseSell(pos, old), updated)
}

func applyBuy(prior *Position, buy Purchase) (Position, error) {
	c := cost(buy)
	if prior == nil {
		return Position{
			Owner:        buy.Owner,
			Symbol:       buy.Symbol,
			Name:         buy.Name,
			Quantity:     buy.Quantity,
			PricePerUnit: buy.PricePerUnit,
			NetProfit:    c.Neg(),
		}, nil
	}
	next := *prior
	total := prior.Quantity + buy.Quantity
	switch {
	case total < 0:
		return Position{}, fmt.Errorf("%w: holding %d after edit", ErrInsufficientQuantity, total)
	case total == 0:
		next.PricePerUnit = decimal.Zero
	default:
		weighted := prior.PricePerUnit.Mul(decimal.NewFromInt(prior.Quantity)).Add(c)
		next.PricePerUnit = weighted.Div(decimal.NewFromInt(total)).Round(pricePlaces)
	}
	next.Quantity = total
	next.NetProfit = prior.NetProfit.Sub(c)
	if buy.Name != "" {
		next.Name = buy.Name
	}
	return next, nil
}

func applySell(pos Position, sale Sale) (Position, error) {
	remaining := pos.Quantity - sale.Quantity
	if remaining < 0 {
		return Position{}, fmt.Errorf("%w: holding %d, selling %d", ErrInsufficientQuantity, pos.Quantity, sale.Quantity)
	}
	next := pos
	next.Quantity = remaining
	next.NetProfit = pos.NetProfit.Add(proceeds(sale))
	return next, nil
}

// reverseBuy may leave a negative quantity; callers decide whether that is
// an error.
func reverseBuy(pos Position, buy Purchase) Position {
	c := cost(buy)
	next := pos
	next.Quantity = pos.Quantity - buy.Quantity
	if next.Quantity == 0 {
		next.PricePerUnit = decimal.Zero
	} else {
		priorCost := pos.PricePerUnit.Mul(decimal.NewFromInt(pos.Quantity)).Sub(c)
		next.PricePerUnit = priorCost.Div(decimal.NewFromInt(next.Quantity)).Round(pricePlaces)
	}
	next.NetProfit = pos.NetProfit.Add(c)
	return next
}

func cost(buy Purchase) decimal.Decimal {
	return buy.PricePerUnit.Mul(decimal.NewFromInt(buy.Quantity))
}

func proceeds(sale Sale) decimal.Decimal {
	return sale.PricePerUnitSold.Mul(decimal.NewFromInt(sale.Quantity))
}

func validateBuy(buy Purchase) error {
	if buy.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if buy.PricePerUnit.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

func validateSale(sale Sale) error {
	if sale.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if sale.PricePerUnitSold.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}
