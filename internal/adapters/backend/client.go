// Package backend is the HTTP client for the stats backend.
//
// Every response is decoded into an explicit envelope and validated before
// it leaves this package: success=false becomes ErrRejected and a missing
// payload becomes ErrNoData.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
	"github.com/okian/gridstat/pkg/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRPS     = 10
	maxErrorBody   = 200
)

// Endpoint paths.
const (
	EndpointStats        = "/stats"
	EndpointPlayers      = "/players"
	EndpointPlayerWeeks  = "/player-weeks"
	EndpointScoringRules = "/scoring-rules"
)

// StatsQuery names one (year, week, position) slice.
type StatsQuery struct {
	Year     int
	Week     model.Week
	Position string
}

// Slice returns the structured cache key for q.
func (q StatsQuery) Slice() model.SliceKey {
	return model.NewSliceKey(q.Year, q.Week, q.Position)
}

func (q StatsQuery) values() url.Values {
	v := url.Values{}
	v.Set("year", strconv.Itoa(q.Year))
	v.Set("week", q.Week.String())
	v.Set("position", model.NormalizePosition(q.Position))
	return v
}

// PageQuery names one page of the player listing.
type PageQuery struct {
	StatsQuery
	Page  int
	Limit int
}

// Key returns the structured cache key for q.
func (q PageQuery) Key() model.PageKey {
	return model.PageKey{Slice: q.Slice(), Page: q.Page, Limit: q.Limit}
}

// PlayersPage is a decoded page of the player listing.
type PlayersPage struct {
	Count   int
	Players []model.PlayerSummary
}

// PlayerWeeks is the decoded answer to a missing-weeks request.
type PlayerWeeks struct {
	WeeksFound int
	Record     model.PlayerYearRecord
}

type statsEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    *[]model.StatRecord `json:"data"`
}

type playersEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Count   int                    `json:"count"`
	Data    *[]model.PlayerSummary `json:"data"`
}

type playerWeeksEnvelope struct {
	Success    bool                    `json:"success"`
	Message    string                  `json:"message,omitempty"`
	WeeksFound int                     `json:"weeksFound"`
	Data       *model.PlayerYearRecord `json:"data"`
}

type rulesEnvelope struct {
	Success      bool                                    `json:"success"`
	Message      string                                  `json:"message,omitempty"`
	ScoringRules map[string]map[string]model.ScoringRule `json:"scoringRules"`
}

// Client is a rate-limited JSON client for the backend.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	limiter        *rate.Limiter
	onUnauthorized func(ctx context.Context)
	logger         logger.Logger
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(defaultRPS), 1),
		logger:     logger.Get().Named("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats fetches every stat record of a slice.
func (c *Client) Stats(ctx context.Context, q StatsQuery) ([]model.StatRecord, error) {
	var env statsEnvelope
	if err := c.get(ctx, EndpointStats, q.values(), &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, rejected(EndpointStats, env.Message)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%s: %w", EndpointStats, ErrNoData)
	}

	records := *env.Data
	pos := model.NormalizePosition(q.Position)
	for i := range records {
		r := &records[i]
		if r.Year == 0 {
			r.Year = q.Year
		}
		if r.Week == model.WeekTotal && !q.Week.IsTotal() {
			r.Week = q.Week
		}
		if r.Position == "" && pos != model.PositionAll {
			r.Position = pos
		}
		r.Normalize()
	}
	return records, nil
}

// Players fetches one page of the player listing.
func (c *Client) Players(ctx context.Context, q PageQuery) (PlayersPage, error) {
	v := q.values()
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))

	var env playersEnvelope
	if err := c.get(ctx, EndpointPlayers, v, &env); err != nil {
		return PlayersPage{}, err
	}
	if !env.Success {
		return PlayersPage{}, rejected(EndpointPlayers, env.Message)
	}
	if env.Data == nil {
		return PlayersPage{}, fmt.Errorf("%s: %w", EndpointPlayers, ErrNoData)
	}
	count := env.Count
	if count == 0 {
		count = len(*env.Data)
	}
	return PlayersPage{Count: count, Players: *env.Data}, nil
}

// PlayerWeeks fetches the given weeks of one player's season in a single call.
func (c *Client) PlayerWeeks(ctx context.Context, playerID string, year int, weeks []model.Week) (PlayerWeeks, error) {
	v := url.Values{}
	v.Set("playerId", playerID)
	v.Set("year", strconv.Itoa(year))
	v.Set("missingWeeks", model.FormatWeeks(weeks))

	var env playerWeeksEnvelope
	if err := c.get(ctx, EndpointPlayerWeeks, v, &env); err != nil {
		return PlayerWeeks{}, err
	}
	if !env.Success {
		return PlayerWeeks{}, rejected(EndpointPlayerWeeks, env.Message)
	}
	if env.Data == nil {
		return PlayerWeeks{}, fmt.Errorf("%s: %w", EndpointPlayerWeeks, ErrNoData)
	}

	rec := *env.Data
	if rec.PlayerID == "" {
		rec.PlayerID = playerID
	}
	if rec.Year == 0 {
		rec.Year = year
	}
	rec.Position = model.NormalizePosition(rec.Position)
	if rec.WeeklyStats == nil {
		rec.WeeklyStats = model.WeeklyStats{}
	}
	found := env.WeeksFound
	if found == 0 {
		found = len(rec.WeeklyStats)
	}
	return PlayerWeeks{WeeksFound: found, Record: rec}, nil
}

// ScoringRules fetches a league's stat-id to rule mapping.
func (c *Client) ScoringRules(ctx context.Context, leagueID string) (map[string]model.ScoringRule, error) {
	v := url.Values{}
	v.Set("leagueId", leagueID)

	var env rulesEnvelope
	if err := c.get(ctx, EndpointScoringRules, v, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, rejected(EndpointScoringRules, env.Message)
	}
	rules, ok := env.ScoringRules[leagueID]
	if !ok || rules == nil {
		return nil, fmt.Errorf("%s league %q: %w", EndpointScoringRules, leagueID, ErrNoData)
	}
	return rules, nil
}

// get performs a rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordBackendRequest(endpoint, outcome(err), time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn(ctx, "backend rejected credentials", logger.String("endpoint", endpoint))
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return fmt.Errorf("%w: %w", ErrUnauthorized, &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(body, maxErrorBody)})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(body, maxErrorBody)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func rejected(endpoint, msg string) error {
	if msg == "" {
		return fmt.Errorf("%s: %w", endpoint, ErrRejected)
	}
	return fmt.Errorf("%s: %w: %s", endpoint, ErrRejected, msg)
}

func outcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &se):
		return "status_" + strconv.Itoa(se.Status)
	default:
		return "error"
	}
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
