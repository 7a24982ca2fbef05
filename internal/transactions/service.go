package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("transaction not found")
	ErrDone           = errors.New("transaction is already done")
	ErrAmountRequired = errors.New("amount is required")
	ErrInvalidType    = errors.New("transaction_type must be income or expense")
)

const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

type Transaction struct {
	ID              string          `json:"id"`
	Owner           string          `json:"owner"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	Tags            []string        `json:"tags"`
	TransactionType string          `json:"transaction_type,omitempty"`
	TransactionDate *time.Time      `json:"transaction_date,omitempty"`
	StatusDone      bool            `json:"status_done"`
	SecondParty     string          `json:"second_party,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	LastModified    time.Time       `json:"last_modified"`
	Version         int64           `json:"-"`
}

func (t *Transaction) DocKeys() store.Keys {
	return store.Keys{ID: t.ID, Owner: t.Owner, Version: t.Version}
}

func (t *Transaction) SetDocKeys(id string, version int64) {
	t.ID, t.Version = id, version
}

type Input struct {
	Amount          *decimal.Decimal
	Description     *string
	Tags            *[]string
	TransactionType *string
	TransactionDate *time.Time
	StatusDone      *bool
	SecondParty     *string
}

type Service struct {
	txs *store.Collection[Transaction, *Transaction]
	now func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{txs: store.NewCollection[Transaction](s, store.KindTransactions), now: time.Now}
}

func (s *Service) Create(ctx context.Context, owner string, in Input) (Transaction, error) {
	if err := in.validate(); err != nil {
		return Transaction{}, err
	}
	now := s.now().UTC()
	tx := Transaction{Owner: owner, Tags: []string{}, CreatedAt: now, LastModified: now}
	in.apply(&tx)
	if err := s.txs.Insert(ctx, &tx); err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (s *Service) List(ctx context.Context, owner string) ([]Transaction, error) {
	return s.txs.Find(ctx, store.Filter{Owner: owner})
}

func (s *Service) Get(ctx context.Context, owner, id string) (Transaction, error) {
	tx, err := s.txs.FindOne(ctx, store.Filter{ID: id, Owner: owner})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	return tx, nil
}

func (s *Service) Update(ctx context.Context, owner, id string, in Input) (Transaction, error) {
	if err := in.validate(); err != nil {
		return Transaction{}, err
	}
	tx, err := s.Get(ctx, owner, id)
	if err != nil {
		return Transaction{}, err
	}
	if tx.StatusDone {
		return Transaction{}, ErrDone
	}
	in.apply(&tx)
	tx.LastModified = s.now().UTC()
	ok, err := s.txs.Update(ctx, &tx, true)
	if err != nil {
		return Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	tx, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	if tx.StatusDone {
		return ErrDone
	}
	ok, err := s.txs.Delete(ctx, store.Filter{ID: tx.ID, Owner: owner, Version: tx.Version})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (in Input) validate() error {
	if in.Amount == nil {
		return ErrAmountRequired
	}
	if in.TransactionType != nil && *in.TransactionType != "" &&
		*in.TransactionType != TypeIncome && *in.TransactionType != TypeExpense {
		return ErrInvalidType
	}
	return nil
}

func (in Input) apply(tx *Transaction) {
	if in.Amount != nil {
		tx.Amount = *in.Amount
	}
	if in.Description != nil {
		tx.Description = *in.Description
	}
	if in.Tags != nil {
		tx.Tags = *in.Tags
	}
	if in.TransactionType != nil {
		tx.TransactionType = *in.TransactionType
	}
	if in.TransactionDate != nil {
		d := in.TransactionDate.UTC()
		tx.TransactionDate = &d
	}
	if in.StatusDone != nil {
		tx.StatusDone = *in.StatusDone
	}
	if in.SecondParty != nil {
		tx.SecondParty = *in.SecondParty
	}
}
