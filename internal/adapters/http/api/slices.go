package api

import (
	"net/http"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/domain/model"
)

// SlicesHandler serves stat slices and the paged player listing.
type SlicesHandler struct {
	deps Dependencies
}

// NewSlicesHandler creates a new slices handler.
func NewSlicesHandler(deps Dependencies) *SlicesHandler {
	return &SlicesHandler{deps: deps}
}

type statsResponse struct {
	Year     int                `json:"year"`
	Week     model.Week         `json:"week"`
	Position string             `json:"position"`
	Count    int                `json:"count"`
	Data     []model.StatRecord `json:"data"`
}

// HandleGetStats handles GET /api/v1/stats?year&week&position.
func (h *SlicesHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	q, err := statsQuery(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	sess, ok := session(h.deps, w, r)
	if !ok {
		return
	}
	recs, err := sess.Stats(r.Context(), q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if recs == nil {
		recs = []model.StatRecord{}
	}
	key := q.Slice()
	writeJSON(w, http.StatusOK, statsResponse{
		Year:     key.Year,
		Week:     key.Week,
		Position: key.Position,
		Count:    len(recs),
		Data:     recs,
	})
}

type playersResponse struct {
	Page  int                   `json:"page"`
	Count int                   `json:"count"`
	Data  []model.PlayerSummary `json:"data"`
}

// HandleGetPlayers handles GET /api/v1/players?year&week&position&page&limit.
func (h *SlicesHandler) HandleGetPlayers(w http.ResponseWriter, r *http.Request) {
	q, err := statsQuery(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if page < 1 {
		page = 1
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeFailure(w, err)
		return
	}
	sess, ok := session(h.deps, w, r)
	if !ok {
		return
	}
	pq := backend.PageQuery{StatsQuery: q, Page: page, Limit: limit}
	p, err := sess.Players(r.Context(), pq)
	if err != nil {
		writeFailure(w, err)
		return
	}
	players := p.Players
	if players == nil {
		players = []model.PlayerSummary{}
	}
	writeJSON(w, http.StatusOK, playersResponse{
		Page:  page,
		Count: p.Count,
		Data:  players,
	})
}
