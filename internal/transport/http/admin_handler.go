package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"quiz-practice/internal/app"
	"quiz-practice/internal/identity"
)

// AdminHandler exposes a profile's aggregated progress to operators.
type AdminHandler struct {
	verifier *identity.Verifier
	practice *app.Practice
}

func NewAdminHandler(verifier *identity.Verifier, practice *app.Practice) *AdminHandler {
	return &AdminHandler{verifier: verifier, practice: practice}
}

// ServeProgress requires a bearer token carrying identity.RoleAdminRead and
// a profile query parameter such as user:{subject}.
func (h *AdminHandler) ServeProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.verifier == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	principal, err := h.verifier.Parse(r.Header.Get("Authorization"))
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !principal.HasRole(identity.RoleAdminRead) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	profile := strings.TrimSpace(r.URL.Query().Get("profile"))
	if profile == "" {
		http.Error(w, "missing profile", http.StatusBadRequest)
		return
	}

	snap := h.practice.Stores(r.Context(), profile).Progress.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Printf("admin progress %s for %s: %v", profile, principal.Subject(), err)
	}
}
