package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/auth"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/marketdata"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/positions"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSHandler streams the caller's position changes and stock data refreshes.
type WSHandler struct {
	bus      *marketdata.Bus
	authSvc  *auth.Service
	ledger   *positions.Service
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(bus *marketdata.Bus, authSvc *auth.Service, ledger *positions.Service, origin string, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		bus:     bus,
		authSvc: authSvc,
		ledger:  ledger,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

type wsControlMessage struct {
	Type string `json:"type"`
}

type positionsSnapshot struct {
	Items []positions.Position `json:"items"`
	TS    int64                `json:"ts"`
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if reqOrigin == "" {
		return true
	}
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		if strings.Contains(reqOrigin, "localhost") || strings.Contains(reqOrigin, "127.0.0.1") {
			return true
		}
	}
	return strings.EqualFold(reqOrigin, origin)
}

func (h *WSHandler) snapshot(ctx context.Context, userID string) (marketdata.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	list, err := h.ledger.ListPositions(ctx, userID)
	if err != nil {
		return marketdata.Event{}, err
	}
	return marketdata.Event{Type: "positions_snapshot", Data: positionsSnapshot{Items: list, TS: time.Now().UnixMilli()}}, nil
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// browsers cannot set headers on the upgrade request
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := h.authSvc.ParseToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if ok, err := h.authSvc.UserExists(r.Context(), userID); err != nil || !ok {
		http.Error(w, "unknown user", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	// the reader goroutine asks for snapshots, the writer loop owns conn writes
	wantSnapshot := make(chan struct{}, 1)
	wantSnapshot <- struct{}{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ctrl wsControlMessage
			if err := json.Unmarshal(payload, &ctrl); err != nil {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(ctrl.Type)) {
			case "positions_snapshot", "snapshot":
				select {
				case wantSnapshot <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-wantSnapshot:
			evt, err := h.snapshot(context.Background(), userID)
			if err != nil {
				h.log.Warn().Err(err).Str("user_id", userID).Msg("ws snapshot failed")
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if evt.Owner != "" && evt.Owner != userID {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
