package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/marketdata"
	"github.com/rs/zerolog"
)

type SymbolSource interface {
	HeldSymbols(ctx context.Context) ([]string, error)
}

type Refresher interface {
	Refresh(ctx context.Context, symbol string) (marketdata.StockHistory, error)
}

// HistoryRefreshJob refreshes stored history for every symbol someone
// currently holds. One failing symbol does not stop the rest.
type HistoryRefreshJob struct {
	symbols SymbolSource
	history Refresher
	log     zerolog.Logger
}

func NewHistoryRefreshJob(symbols SymbolSource, history Refresher, log zerolog.Logger) *HistoryRefreshJob {
	return &HistoryRefreshJob{symbols: symbols, history: history, log: log}
}

func (j *HistoryRefreshJob) Name() string { return "history_refresh" }

func (j *HistoryRefreshJob) Run(ctx context.Context) error {
	symbols, err := j.symbols.HeldSymbols(ctx)
	if err != nil {
		return fmt.Errorf("held symbols: %w", err)
	}
	var failed []error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := j.history.Refresh(ctx, sym); err != nil {
			j.log.Warn().Err(err).Str("symbol", sym).Msg("history refresh failed")
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d symbols failed: %w", len(failed), len(symbols), errors.Join(failed...))
	}
	return nil
}
