package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RulesHandler serves league scoring rules.
type RulesHandler struct {
	deps Dependencies
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(deps Dependencies) *RulesHandler {
	return &RulesHandler{deps: deps}
}

// HandleGetRules handles GET /api/v1/rules/{leagueID}.
func (h *RulesHandler) HandleGetRules(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(h.deps, w, r)
	if !ok {
		return
	}
	rs, err := sess.Rules(r.Context(), chi.URLParam(r, "leagueID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}
