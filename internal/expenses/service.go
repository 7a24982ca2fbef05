package expenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("expense not found")
	ErrDone           = errors.New("expense is already done")
	ErrAmountRequired = errors.New("amount is required")
)

type Expense struct {
	ID           string          `json:"id"`
	Owner        string          `json:"owner"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description,omitempty"`
	Tags         []string        `json:"tags"`
	SplitAmount  []string        `json:"split_amount,omitempty"`
	AmountGiven  bool            `json:"amount_given"`
	StatusDone   bool            `json:"status_done"`
	CreatedAt    time.Time       `json:"created_at"`
	LastModified time.Time       `json:"last_modified"`
	Version      int64           `json:"-"`
}

func (e *Expense) DocKeys() store.Keys {
	return store.Keys{ID: e.ID, Owner: e.Owner, Version: e.Version}
}

func (e *Expense) SetDocKeys(id string, version int64) {
	e.ID, e.Version = id, version
}

// Input carries a create or update payload. On update nil optional fields
// keep their stored value.
type Input struct {
	Amount      *decimal.Decimal
	Description *string
	Tags        *[]string
	SplitAmount *[]string
	AmountGiven *bool
	StatusDone  *bool
}

type Service struct {
	expenses *store.Collection[Expense, *Expense]
	now      func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{expenses: store.NewCollection[Expense](s, store.KindExpenses), now: time.Now}
}

func (s *Service) Create(ctx context.Context, owner string, in Input) (Expense, error) {
	if in.Amount == nil {
		return Expense{}, ErrAmountRequired
	}
	now := s.now().UTC()
	e := Expense{Owner: owner, Tags: []string{}, CreatedAt: now, LastModified: now}
	in.apply(&e)
	if err := s.expenses.Insert(ctx, &e); err != nil {
		return Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, owner string) ([]Expense, error) {
	return s.expenses.Find(ctx, store.Filter{Owner: owner})
}

func (s *Service) Get(ctx context.Context, owner, id string) (Expense, error) {
	e, err := s.expenses.FindOne(ctx, store.Filter{ID: id, Owner: owner})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Expense{}, ErrNotFound
		}
		return Expense{}, err
	}
	return e, nil
}

// Update rejects expenses already marked done.
func (s *Service) Update(ctx context.Context, owner, id string, in Input) (Expense, error) {
	if in.Amount == nil {
		return Expense{}, ErrAmountRequired
	}
	e, err := s.Get(ctx, owner, id)
	if err != nil {
		return Expense{}, err
	}
	if e.StatusDone {
		return Expense{}, ErrDone
	}
	in.apply(&e)
	e.LastModified = s.now().UTC()
	ok, err := s.expenses.Update(ctx, &e, true)
	if err != nil {
		return Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if !ok {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	e, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	if e.StatusDone {
		return ErrDone
	}
	ok, err := s.expenses.Delete(ctx, store.Filter{ID: e.ID, Owner: owner, Version: e.Version})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (in Input) apply(e *Expense) {
	if in.Amount != nil {
		e.Amount = *in.Amount
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Tags != nil {
		e.Tags = *in.Tags
	}
	if in.SplitAmount != nil {
		e.SplitAmount = *in.SplitAmount
	}
	if in.AmountGiven != nil {
		e.AmountGiven = *in.AmountGiven
	}
	if in.StatusDone != nil {
		e.StatusDone = *in.StatusDone
	}
}
