package reports

import (
	"net/http"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/httputil"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/positions"
	"github.com/rs/zerolog"
)

type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) ForSymbol(w http.ResponseWriter, r *http.Request, userID, symbol string) {
	rep, err := h.svc.ForSymbol(r.Context(), userID, symbol)
	if err != nil {
		status := positions.StatusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("symbol", symbol).Msg("symbol report failed")
			httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: "internal error"})
			return
		}
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rep)
}
