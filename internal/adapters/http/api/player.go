package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/gridstat/internal/domain/model"
)

// PlayerHandler serves merged player seasons with their metrics.
type PlayerHandler struct {
	deps Dependencies
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps Dependencies) *PlayerHandler {
	return &PlayerHandler{deps: deps}
}

// HandleGetPlayer handles GET /api/v1/players/{playerID}?year&weeks&league.
func (h *PlayerHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(chi.URLParam(r, "playerID"))
	if playerID == "" {
		writeFailure(w, fmt.Errorf("%w: missing player id", ErrBadRequest))
		return
	}
	q := r.URL.Query()
	year, err := parseYear(q.Get("year"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	sel, err := selection(q.Get("weeks"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	sess, ok := session(h.deps, w, r)
	if !ok {
		return
	}

	view, err := sess.PlayerReport(r.Context(), model.PlayerSliceKey{PlayerID: playerID, Year: year}, sel, q.Get("league"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
