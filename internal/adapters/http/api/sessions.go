package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// SessionsHandler creates and closes sessions.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	LeagueID  string `json:"leagueId,omitempty"`
}

// HandleCreate handles POST /api/v1/sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.NewSession(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set(SessionHeader, sess.ID())
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: sess.ID(), LeagueID: sess.League()})
}

// HandleClose handles DELETE /api/v1/sessions/{sessionID}.
func (h *SessionsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type leagueRequest struct {
	LeagueID string `json:"leagueId"`
}

// HandleSelectLeague handles PUT /api/v1/sessions/{sessionID}/league.
func (h *SessionsHandler) HandleSelectLeague(w http.ResponseWriter, r *http.Request) {
	var req leagueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.LeagueID) == "" {
		writeFailure(w, fmt.Errorf("%w: missing leagueId", ErrBadRequest))
		return
	}
	sess, err := h.deps.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	sess.SelectLeague(req.LeagueID)
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID(), LeagueID: sess.League()})
}
