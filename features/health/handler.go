package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	Healthy       = "healthy"
	checkTimeout  = 3 * time.Second
	unhealthyText = "unhealthy: "
)

// CheckFunc reports nil when a dependency is usable.
type CheckFunc func(ctx context.Context) error

type Handler struct {
	checks map[string]CheckFunc
	order  []string
}

func NewHandler() *Handler {
	return &Handler{checks: make(map[string]CheckFunc)}
}

// Register adds a named dependency check. A nil check is ignored.
func (h *Handler) Register(name string, p CheckFunc) *Handler {
	if p == nil {
		return h
	}
	if _, ok := h.checks[name]; !ok {
		h.order = append(h.order, name)
	}
	h.checks[name] = p
	return h
}

type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Check runs every dependency check concurrently. The overall status
// only reflects the backend itself; dependency failures are reported per
// service.
func (h *Handler) Check(ctx context.Context) Response {
	resp := Response{Status: Healthy, Services: map[string]string{"backend": Healthy}}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range h.order {
		check := h.checks[name]
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()

			status := Healthy
			if err := check(pctx); err != nil {
				slog.WarnContext(ctx, "dependency unhealthy", "service", name, "error", err)
				status = unhealthyText + err.Error()
			}
			mu.Lock()
			resp.Services[name] = status
			mu.Unlock()
			// Check errors are data here, not group failures.
			return nil
		})
	}
	_ = g.Wait()
	return resp
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := h.Check(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
