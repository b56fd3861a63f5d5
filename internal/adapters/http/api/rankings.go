package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/domain/model"
)

// RankingsHandler serves league season rankings.
type RankingsHandler struct {
	deps Dependencies
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps Dependencies) *RankingsHandler {
	return &RankingsHandler{deps: deps}
}

type rankingsResponse struct {
	LeagueID string               `json:"leagueId"`
	Year     int                  `json:"year"`
	Count    int                  `json:"count"`
	Data     []model.RankingEntry `json:"data"`
}

type rankFunc func(s *service.Session, ctx context.Context, leagueID string, year int) ([]model.RankingEntry, error)

// HandleGetRankings handles GET /api/v1/rankings/{leagueID}?year. Stale
// rankings are recalculated first.
func (h *RankingsHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, (*service.Session).Rankings)
}

// HandleRecalculate handles POST /api/v1/rankings/{leagueID}?year.
func (h *RankingsHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, (*service.Session).RecalculateRankings)
}

func (h *RankingsHandler) serve(w http.ResponseWriter, r *http.Request, rank rankFunc) {
	year, err := parseYear(r.URL.Query().Get("year"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	sess, ok := session(h.deps, w, r)
	if !ok {
		return
	}
	leagueID := chi.URLParam(r, "leagueID")
	entries, err := rank(sess, r.Context(), leagueID, year)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if entries == nil {
		entries = []model.RankingEntry{}
	}
	writeJSON(w, http.StatusOK, rankingsResponse{
		LeagueID: leagueID,
		Year:     year,
		Count:    len(entries),
		Data:     entries,
	})
}
