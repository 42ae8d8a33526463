package handlers

import (
	"net/http"
	"time"
)

// HealthCheck reports liveness of the web process. The backend is not probed.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
