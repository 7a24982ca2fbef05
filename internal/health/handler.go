package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/httputil"
)

// Pinger is the dependency readiness is judged on.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store     Pinger
	backend   string
	startedAt time.Time
	timeout   time.Duration
	now       func() time.Time
}

func NewHandler(store Pinger, backend string, startedAt time.Time) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{store: store, backend: backend, startedAt: start, timeout: time.Second, now: time.Now}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
	Uptime    string `json:"uptime"`
}

type readinessResponse struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	UptimeSec int64         `json:"uptime_sec"`
	Uptime    string        `json:"uptime"`
	Store     storeStats    `json:"store"`
	Runtime   *runtimeStats `json:"runtime,omitempty"`
}

type storeStats struct {
	Backend    string `json:"backend"`
	Reachable  bool   `json:"reachable"`
	PingMs     int64  `json:"ping_ms"`
	Error      string `json:"error,omitempty"`
	CheckedAt  string `json:"checked_at"`
	TimeoutSec int    `json:"timeout_sec"`
}

type runtimeStats struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

func (h *Handler) uptime(now time.Time) time.Duration {
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		return 0
	}
	return uptime
}

func (h *Handler) checkStore(ctx context.Context) storeStats {
	out := storeStats{Backend: h.backend, TimeoutSec: int(h.timeout / time.Second)}
	if h.store == nil {
		out.Error = "store is not configured"
		out.CheckedAt = h.now().UTC().Format(time.RFC3339)
		return out
	}
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	err := h.store.Ping(pingCtx)
	cancel()
	out.PingMs = time.Since(start).Milliseconds()
	out.CheckedAt = h.now().UTC().Format(time.RFC3339)
	if err != nil {
		out.Error = err.Error()
	} else {
		out.Reachable = true
	}
	return out
}

func (h *Handler) readiness(r *http.Request, withRuntime bool) (int, readinessResponse) {
	now := h.now().UTC()
	uptime := h.uptime(now)
	resp := readinessResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
		Store:     h.checkStore(r.Context()),
	}
	status := http.StatusOK
	if !resp.Store.Reachable {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	if withRuntime {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		resp.Runtime = &runtimeStats{
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
			HeapAlloc:  mem.HeapAlloc,
			NumGC:      mem.NumGC,
		}
	}
	return status, resp
}

// Get is the readiness summary plus runtime counters.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	status, resp := h.readiness(r, true)
	httputil.WriteJSON(w, status, resp)
}

// Live does not touch the store.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	uptime := h.uptime(now)
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
	})
}

// Ready returns 503 when the store cannot be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status, resp := h.readiness(r, false)
	httputil.WriteJSON(w, status, resp)
}
