package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/domain/model"
)

// WarmHandler enqueues prefetch jobs.
type WarmHandler struct {
	deps Dependencies
}

// NewWarmHandler creates a new warm handler.
func NewWarmHandler(deps Dependencies) *WarmHandler {
	return &WarmHandler{deps: deps}
}

// warmRequest mirrors the OpenAPI schema for POST /api/v1/warm.
type warmRequest struct {
	Year      int          `json:"year"`
	Weeks     []model.Week `json:"weeks"`
	Positions []string     `json:"positions"`
}

func (req warmRequest) validate() error {
	switch {
	case req.Year <= 0:
		return fmt.Errorf("%w: missing year", ErrBadRequest)
	case len(req.Weeks) == 0:
		return fmt.Errorf("%w: missing weeks", ErrBadRequest)
	}
	return nil
}

type warmResponse struct {
	Status string   `json:"status"`
	Jobs   []string `json:"jobs"`
}

// HandlePostWarm handles POST /api/v1/warm requests.
func (h *WarmHandler) HandlePostWarm(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, err)
		return
	}

	ids, err := h.deps.Warm(r.Context(), service.WarmRequest{
		SessionID: r.Header.Get(SessionHeader),
		Year:      req.Year,
		Weeks:     req.Weeks,
		Positions: req.Positions,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, warmResponse{Status: "accepted", Jobs: ids})
}
