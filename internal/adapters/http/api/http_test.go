package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/adapters/http/api"
	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// stubBackend serves one quarterback per slice and a full season per player.
type stubBackend struct {
	mu       sync.Mutex
	statsErr error
}

func (b *stubBackend) fail(err error) {
	b.mu.Lock()
	b.statsErr = err
	b.mu.Unlock()
}

func (b *stubBackend) Stats(ctx context.Context, q backend.StatsQuery) ([]model.StatRecord, error) {
	b.mu.Lock()
	err := b.statsErr
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []model.StatRecord{{
		PlayerKey: "qb1", PlayerName: "Passer", Position: "QB",
		Year: q.Year, Week: q.Week, Stats: model.StatLine{"4": 300},
	}}, nil
}

func (b *stubBackend) Players(ctx context.Context, q backend.PageQuery) (backend.PlayersPage, error) {
	return backend.PlayersPage{Count: 1, Players: []model.PlayerSummary{{PlayerKey: "qb1", Name: "Passer", Position: "QB"}}}, nil
}

func (b *stubBackend) PlayerWeeks(ctx context.Context, playerID string, year int, weeks []model.Week) (backend.PlayerWeeks, error) {
	ws := model.WeeklyStats{}
	for _, w := range weeks {
		ws[w] = model.StatLine{"4": 100}
	}
	return backend.PlayerWeeks{
		WeeksFound: len(weeks),
		Record: model.PlayerYearRecord{
			PlayerKey: playerID, PlayerID: playerID, Year: year,
			Name: "Passer", Position: "QB", WeeklyStats: ws,
		},
	}, nil
}

func (b *stubBackend) ScoringRules(ctx context.Context, leagueID string) (map[string]model.ScoringRule, error) {
	if leagueID != "L1" {
		return nil, backend.ErrNoData
	}
	return map[string]model.ScoringRule{"4": {Points: 0.04}}, nil
}

func newTestServer(t *testing.T, b *stubBackend, opts ...api.Option) http.Handler {
	t.Helper()
	svc := service.New(service.WithBackend(b), service.WithWorkerCount(1), service.WithQueueSize(16))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return api.NewServer(svc, opts...).Handler()
}

func do(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestStatsEndpoints(t *testing.T) {
	Convey("Given an API server over a running service", t, func() {
		b := &stubBackend{}
		h := newTestServer(t, b)

		Convey("When a slice is requested", func() {
			w := do(h, http.MethodGet, "/api/v1/stats?year=2024&week=3&position=qb", "", nil)

			Convey("Then it is returned with the default session", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get(api.SessionHeader), ShouldEqual, service.DefaultSessionID)
				So(w.Header().Get("X-Process-Time"), ShouldNotBeEmpty)
				body := decode(w)
				So(body["position"], ShouldEqual, "QB")
				So(body["count"], ShouldEqual, 1.0)
				So(body["week"], ShouldEqual, 3.0)
			})
		})

		Convey("When the season total is requested", func() {
			w := do(h, http.MethodGet, "/api/v1/stats?year=2024&week=total", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["week"], ShouldEqual, "total")
		})

		Convey("When the query is malformed", func() {
			for _, target := range []string{
				"/api/v1/stats?year=abc&week=1",
				"/api/v1/stats?year=2024&week=19",
				"/api/v1/stats?year=2024",
			} {
				w := do(h, http.MethodGet, target, "", nil)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("When the backend fails", func() {
			b.fail(&backend.StatusError{Endpoint: backend.EndpointStats, Status: 503, Body: "down"})
			w := do(h, http.MethodGet, "/api/v1/stats?year=2023&week=1", "", nil)
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(decode(w)["code"], ShouldEqual, "upstream_error")
		})

		Convey("When the backend rejects the token", func() {
			b.fail(backend.ErrUnauthorized)
			w := do(h, http.MethodGet, "/api/v1/stats?year=2023&week=2", "", nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When a listing page is requested", func() {
			w := do(h, http.MethodGet, "/api/v1/players?year=2024&week=1&page=0&limit=10", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["page"], ShouldEqual, 1.0)
			So(body["count"], ShouldEqual, 1.0)
		})

		Convey("When a player is requested over a week range", func() {
			w := do(h, http.MethodGet, "/api/v1/players/qb1?year=2024&weeks=1-4&league=L1", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["leagueId"], ShouldEqual, "L1")
			m := body["metrics"].(map[string]interface{})
			So(m["weeks"], ShouldHaveLength, 4)
			So(m["fantasyPoints"], ShouldEqual, 16.0)
		})

		Convey("When a player is requested with a bad week list", func() {
			w := do(h, http.MethodGet, "/api/v1/players/qb1?year=2024&weeks=4-1", "", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestLeagueEndpoints(t *testing.T) {
	Convey("Given an API server over a running service", t, func() {
		h := newTestServer(t, &stubBackend{})

		Convey("Rules are served per league", func() {
			w := do(h, http.MethodGet, "/api/v1/rules/L1", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["leagueId"], ShouldEqual, "L1")

			w = do(h, http.MethodGet, "/api/v1/rules/nope", "", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("Rankings are calculated and can be forced", func() {
			w := do(h, http.MethodGet, "/api/v1/rankings/L1?year=2024", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["count"], ShouldEqual, 1.0)
			first := body["data"].([]interface{})[0].(map[string]interface{})
			So(first["playerId"], ShouldEqual, "qb1")
			So(first["fantasyPoints"], ShouldEqual, 12.0)

			w = do(h, http.MethodPost, "/api/v1/rankings/L1?year=2024", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)

			w = do(h, http.MethodGet, "/api/v1/rankings/L1", "", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given an API server over a running service", t, func() {
		h := newTestServer(t, &stubBackend{})

		w := do(h, http.MethodPost, "/api/v1/sessions", "", nil)
		So(w.Code, ShouldEqual, http.StatusCreated)
		id, _ := decode(w)["sessionId"].(string)
		So(id, ShouldNotBeEmpty)
		hdr := map[string]string{api.SessionHeader: id}

		Convey("Requests run in the named session", func() {
			w := do(h, http.MethodGet, "/api/v1/stats?year=2024&week=1", "", hdr)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get(api.SessionHeader), ShouldEqual, id)
		})

		Convey("The session league is used when none is named", func() {
			w := do(h, http.MethodPut, "/api/v1/sessions/"+id+"/league", `{"leagueId":"L1"}`, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["leagueId"], ShouldEqual, "L1")

			w = do(h, http.MethodPut, "/api/v1/sessions/"+id+"/league", `{}`, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A closed session is gone", func() {
			w := do(h, http.MethodDelete, "/api/v1/sessions/"+id, "", nil)
			So(w.Code, ShouldEqual, http.StatusNoContent)

			w = do(h, http.MethodGet, "/api/v1/stats?year=2024&week=1", "", hdr)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "session_not_found")

			w = do(h, http.MethodDelete, "/api/v1/sessions/"+id, "", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestWarmAndCacheEndpoints(t *testing.T) {
	Convey("Given an API server over a running service", t, func() {
		h := newTestServer(t, &stubBackend{})

		Convey("Warm requests are accepted", func() {
			w := do(h, http.MethodPost, "/api/v1/warm", `{"year":2024,"weeks":[1,"total"],"positions":["QB","RB"]}`, nil)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			body := decode(w)
			So(body["status"], ShouldEqual, "accepted")
			So(body["jobs"], ShouldHaveLength, 4)
		})

		Convey("Bad warm requests are rejected", func() {
			for _, payload := range []string{`{`, `{"year":2024}`, `{"weeks":[1]}`, `{"year":2024,"weeks":[40]}`} {
				w := do(h, http.MethodPost, "/api/v1/warm", payload, nil)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("A season can be cleared", func() {
			So(do(h, http.MethodGet, "/api/v1/stats?year=2024&week=1", "", nil).Code, ShouldEqual, http.StatusOK)

			w := do(h, http.MethodDelete, "/api/v1/cache/2024", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["year"], ShouldEqual, 2024.0)
			So(body["removed"], ShouldBeGreaterThan, 0.0)

			So(do(h, http.MethodDelete, "/api/v1/cache/soon", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given an API server over a running service", t, func() {
		h := newTestServer(t, &stubBackend{})

		Convey("Service stats are reported", func() {
			w := do(h, http.MethodGet, "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Metrics are exposed on healthz", func() {
			do(h, http.MethodGet, "/stats", "", nil)
			w := do(h, http.MethodGet, "/healthz", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("CORS preflights are answered", func() {
			w := do(h, http.MethodOptions, "/api/v1/stats", "", map[string]string{
				"Origin":                        "http://example.com",
				"Access-Control-Request-Method": http.MethodGet,
			})
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func TestServerOptions(t *testing.T) {
	Convey("Given a rate limited server with an extra mount", t, func() {
		h := newTestServer(t, &stubBackend{},
			api.WithRateLimit(2, time.Minute),
			api.WithMount(func(r chi.Router) {
				r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusNoContent)
				})
			}),
		)

		Convey("The mounted route is served", func() {
			So(do(h, http.MethodGet, "/ping", "", nil).Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("A client over its budget is turned away", func() {
			So(do(h, http.MethodGet, "/stats", "", nil).Code, ShouldEqual, http.StatusOK)
			w := do(h, http.MethodGet, "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Header().Get("Retry-After"), ShouldEqual, "60")
		})
	})
}
