// Package store is the document store every domain package persists through.
// Documents are JSON bodies addressed by an id and indexed by owner and symbol.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

type Kind string

const (
	KindUsers        Kind = "users"
	KindNotes        Kind = "notes"
	KindExpenses     Kind = "expenses"
	KindTransactions Kind = "transactions"
	KindPurchases    Kind = "buyed_stocks"
	KindSales        Kind = "sold_stocks"
	KindPositions    Kind = "current_stocks"
	KindStockData    Kind = "stock_data"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document")
)

type Document struct {
	ID      string
	Owner   string
	Symbol  string
	Version int64
	Body    json.RawMessage
}

// Filter matches documents by exact value. Empty fields and a zero Version
// match anything.
type Filter struct {
	ID      string
	Owner   string
	Symbol  string
	Version int64
}

func (f Filter) matches(d Document) bool {
	if f.ID != "" && f.ID != d.ID {
		return false
	}
	if f.Owner != "" && f.Owner != d.Owner {
		return false
	}
	if f.Symbol != "" && f.Symbol != d.Symbol {
		return false
	}
	if f.Version != 0 && f.Version != d.Version {
		return false
	}
	return true
}

type Store interface {
	// Insert stores doc and returns its id. A missing id is generated and a
	// zero version becomes 1.
	Insert(ctx context.Context, kind Kind, doc Document) (string, error)
	FindOne(ctx context.Context, kind Kind, f Filter) (Document, error)
	Find(ctx context.Context, kind Kind, f Filter) ([]Document, error)
	// UpdateOne replaces the owner, symbol, version and body of the first
	// document matching f. f.ID is required.
	UpdateOne(ctx context.Context, kind Kind, f Filter, doc Document) (bool, error)
	DeleteOne(ctx context.Context, kind Kind, f Filter) (bool, error)
	Ping(ctx context.Context) error
	Close()
}

var errMissingID = errors.New("update requires a document id")

// uniqueKey returns the value that must be unique within kind, if any.
func uniqueKey(kind Kind, d Document) (string, bool) {
	switch kind {
	case KindUsers:
		return d.Owner, true
	case KindPositions:
		return d.Owner + "|" + d.Symbol, true
	case KindStockData:
		return d.Symbol, true
	}
	return "", false
}
