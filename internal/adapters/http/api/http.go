// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/pkg/logger"
)

// SessionHeader carries the session a request runs in. Requests without it
// use the default session.
const SessionHeader = "X-Session-ID"

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	Session(id string) (*service.Session, error)
	NewSession(ctx context.Context) (*service.Session, error)
	CloseSession(ctx context.Context, id string) error
	Warm(ctx context.Context, req service.WarmRequest) ([]string, error)
	ClearYear(ctx context.Context, year int) (int, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies

	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	slicesHandler   *SlicesHandler
	playerHandler   *PlayerHandler
	rulesHandler    *RulesHandler
	rankingsHandler *RankingsHandler
	warmHandler     *WarmHandler
	sessionsHandler *SessionsHandler
	cacheHandler    *CacheHandler

	corsOrigins  []string
	rateRequests int
	rateWindow   time.Duration
	mounts       []func(chi.Router)
	logger       logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		slicesHandler:   NewSlicesHandler(deps),
		playerHandler:   NewPlayerHandler(deps),
		rulesHandler:    NewRulesHandler(deps),
		rankingsHandler: NewRankingsHandler(deps),
		warmHandler:     NewWarmHandler(deps),
		sessionsHandler: NewSessionsHandler(deps),
		cacheHandler:    NewCacheHandler(deps),
		corsOrigins:     []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Handler builds the router with the middleware stack and every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5))

	c := corslib.New(corslib.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{"X-Process-Time", SessionHeader},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	if s.rateRequests > 0 && s.rateWindow > 0 {
		r.Use(RateLimitMiddleware(s.rateRequests, s.rateWindow))
	}
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.slicesHandler.HandleGetStats)
		r.Get("/players", s.slicesHandler.HandleGetPlayers)
		r.Get("/players/{playerID}", s.playerHandler.HandleGetPlayer)
		r.Get("/rules/{leagueID}", s.rulesHandler.HandleGetRules)
		r.Get("/rankings/{leagueID}", s.rankingsHandler.HandleGetRankings)
		r.Post("/rankings/{leagueID}", s.rankingsHandler.HandleRecalculate)
		r.Post("/warm", s.warmHandler.HandlePostWarm)
		r.Delete("/cache/{year}", s.cacheHandler.HandleClearYear)

		r.Post("/sessions", s.sessionsHandler.HandleCreate)
		r.Delete("/sessions/{sessionID}", s.sessionsHandler.HandleClose)
		r.Put("/sessions/{sessionID}/league", s.sessionsHandler.HandleSelectLeague)
	})

	for _, mount := range s.mounts {
		mount(r)
	}
	s.logger.Debug(context.Background(), "api routes registered",
		logger.Int("mounts", len(s.mounts)),
		logger.Bool("rateLimited", s.rateRequests > 0 && s.rateWindow > 0))
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// session resolves the request's session from SessionHeader.
func session(deps Dependencies, w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	id := r.Header.Get(SessionHeader)
	sess, err := deps.Session(id)
	if err != nil {
		writeFailure(w, err)
		return nil, false
	}
	w.Header().Set(SessionHeader, sess.ID())
	return sess, true
}
