package marketdata

import (
	"errors"
	"net/http"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/httputil"
	"github.com/rs/zerolog"
)

type Handler struct {
	history *HistoryService
	log     zerolog.Logger
}

func NewHandler(history *HistoryService, log zerolog.Logger) *Handler {
	return &Handler{history: history, log: log}
}

func (h *Handler) StockData(w http.ResponseWriter, r *http.Request, symbol string) {
	doc, err := h.history.Get(r.Context(), symbol)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request, symbol string) {
	doc, err := h.history.Refresh(r.Context(), symbol)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoHistory), errors.Is(err, ErrNoData):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Msg("market data request failed")
		httputil.WriteJSON(w, http.StatusBadGateway, httputil.ErrorResponse{Error: "market data unavailable"})
	}
}
