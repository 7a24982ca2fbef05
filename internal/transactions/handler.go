package transactions

import (
	"errors"
	"net/http"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/httputil"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type transactionRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	Description     *string          `json:"description"`
	Tags            *[]string        `json:"tags"`
	TransactionType *string          `json:"transaction_type"`
	TransactionDate *time.Time       `json:"transaction_date"`
	StatusDone      *bool            `json:"status_done"`
	SecondParty     *string          `json:"second_party"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request, userID string) {
	var req transactionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	tx, err := h.svc.Create(r.Context(), userID, Input(req))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tx)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, userID, id string) {
	tx, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request, userID, id string) {
	var req transactionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	tx, err := h.svc.Update(r.Context(), userID, id, Input(req))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, userID, id string) {
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "transaction deleted"})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrDone), errors.Is(err, ErrAmountRequired), errors.Is(err, ErrInvalidType):
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
	}
}
