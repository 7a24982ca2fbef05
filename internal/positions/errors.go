package positions

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	ErrInvalidPrice    = fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	ErrInvalidSymbol   = fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	ErrSymbolChange    = fmt.Errorf("%w: symbol of an existing record cannot be changed", ErrInvalidInput)

	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrNoPosition           = errors.New("no position for symbol")
	ErrConflict             = errors.New("position was modified concurrently")
)
