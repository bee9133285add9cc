package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports whether the escrow store answers within two seconds. A
// store that does not answer yields 503 so load balancers stop routing
// donations to this instance.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.Engine.Ping(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("health: store unreachable")
		a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unreachable"})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "store": "ok"})
}
