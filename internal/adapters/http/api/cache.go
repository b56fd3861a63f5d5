package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CacheHandler clears cached seasons.
type CacheHandler struct {
	deps Dependencies
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(deps Dependencies) *CacheHandler {
	return &CacheHandler{deps: deps}
}

type clearResponse struct {
	Year    int `json:"year"`
	Removed int `json:"removed"`
}

// HandleClearYear handles DELETE /api/v1/cache/{year}.
func (h *CacheHandler) HandleClearYear(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	n, err := h.deps.ClearYear(r.Context(), year)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Year: year, Removed: n})
}
