package positions

import (
	"errors"
	"net/http"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/httputil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type buyRequest struct {
	Symbol       string           `json:"symbol"`
	Name         string           `json:"name"`
	Quantity     int64            `json:"quantity"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit"`
	Timestamp    *time.Time       `json:"timestamp"`
}

type saleRequest struct {
	Symbol           string           `json:"symbol"`
	Quantity         int64            `json:"quantity"`
	PricePerUnitSold *decimal.Decimal `json:"price_per_unit_sold"`
	Timestamp        *time.Time       `json:"timestamp"`
}

func (req buyRequest) input() (BuyInput, error) {
	if req.PricePerUnit == nil {
		return BuyInput{}, errors.New("price_per_unit is required")
	}
	in := BuyInput{Symbol: req.Symbol, Name: req.Name, Quantity: req.Quantity, PricePerUnit: *req.PricePerUnit}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	return in, nil
}

func (req saleRequest) input() (SaleInput, error) {
	if req.PricePerUnitSold == nil {
		return SaleInput{}, errors.New("price_per_unit_sold is required")
	}
	in := SaleInput{Symbol: req.Symbol, Quantity: req.Quantity, PricePerUnitSold: *req.PricePerUnitSold}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	return in, nil
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.svc.ListPurchases(r.Context(), userID, r.URL.Query().Get("symbol"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request, userID, id string) {
	p, err := h.svc.GetPurchase(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateBuy(w http.ResponseWriter, r *http.Request, userID string) {
	var req buyRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	in, err := req.input()
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.CreateBuy(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) UpdateBuy(w http.ResponseWriter, r *http.Request, userID, id string) {
	var req buyRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	in, err := req.input()
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.UpdateBuy(r.Context(), userID, id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteBuy(w http.ResponseWriter, r *http.Request, userID, id string) {
	pos, err := h.svc.DeleteBuy(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "purchase deleted", "position": pos})
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.svc.ListSales(r.Context(), userID, r.URL.Query().Get("symbol"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request, userID, id string) {
	sale, err := h.svc.GetSale(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sale)
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request, userID string) {
	var req saleRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	in, err := req.input()
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.CreateSale(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request, userID, id string) {
	var req saleRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	in, err := req.input()
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.UpdateSale(r.Context(), userID, id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request, userID, id string) {
	pos, err := h.svc.DeleteSale(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "sale deleted", "position": pos})
}

func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.svc.ListPositions(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request, userID, symbol string) {
	pos, err := h.svc.GetPosition(r.Context(), userID, symbol)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pos)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("ledger request failed")
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: "internal error"})
		return
	}
	httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
}

// StatusFor maps ledger errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoPosition):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInsufficientQuantity):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
