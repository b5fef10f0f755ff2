package handlers

import (
	"net/http"
	"time"
)

var startedAt = time.Now().UTC()

func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "mina-merchant-webhook",
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
	})
}
