package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/docbook-web/internal/apiclient"
)

// AdminLoginPath is where protected pages send a browser without a usable
// session.
const AdminLoginPath = "/admin/login"

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// redirectIfExpired sends the browser to the login page when err says the
// backend rejected the session.
func redirectIfExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil || !errors.Is(err, apiclient.ErrSessionExpired) {
		return false
	}
	http.Redirect(w, r, AdminLoginPath, http.StatusSeeOther)
	return true
}

// statusFor maps a backend 404 onto the page status; everything else keeps
// rendering with 200 and an inline banner.
func statusFor(err error) int {
	if apiErr, ok := apiclient.AsAPIError(err); ok && apiErr.Status == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusOK
}
