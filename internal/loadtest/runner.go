package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
)

type warmRequest struct {
	Year      int          `json:"year"`
	Weeks     []model.Week `json:"weeks"`
	Positions []string     `json:"positions,omitempty"`
}

// Run executes a complete load run in a fresh session and returns its
// statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadtest")

	log.Info(ctx, "starting gridstat load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("year", config.Year),
		logger.String("weeks", model.FormatWeeks(config.Weeks)),
		logger.Int("rounds", config.Rounds),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.String("league", config.League))

	client := newHTTPClient(config)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Open a session so the run does not share the default tier
	if err := openSession(ctx, client); err != nil {
		return stats, fmt.Errorf("session creation failed: %w", err)
	}
	defer closeSession(client)

	// Step 3: Optionally prefetch in the background
	if config.Warm {
		req := warmRequest{Year: config.Year, Weeks: config.Weeks, Positions: config.Positions}
		if err := client.call(ctx, http.MethodPost, "/api/v1/warm", req, nil, http.StatusAccepted); err != nil {
			log.Warn(ctx, "warm request rejected", logger.Error(err))
		}
	}

	// Step 4: Read slices concurrently
	if err := readSlices(ctx, client, config, stats); err != nil {
		return stats, fmt.Errorf("slice reads interrupted: %w", err)
	}

	// Step 5: Retrieve and verify rankings
	if config.League != "" {
		rankings, err := retrieveRankings(ctx, client, config, stats)
		if err != nil {
			return stats, fmt.Errorf("ranking retrieval failed: %w", err)
		}
		if err := verifyResults(ctx, config, rankings); err != nil {
			return stats, fmt.Errorf("result verification failed: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.SlicesFailed > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrSliceFailures, stats.SlicesFailed, stats.SlicesRequested)
	}
	log.Info(ctx, "load run completed")
	return stats, nil
}

func validate(config *Config) error {
	switch {
	case config == nil:
		return fmt.Errorf("config is nil")
	case config.BaseURL == "":
		return fmt.Errorf("base url is required")
	case config.Year <= 0:
		return fmt.Errorf("year must be positive")
	case len(config.Weeks) == 0:
		return fmt.Errorf("at least one week is required")
	}
	if len(config.Positions) == 0 {
		config.Positions = []string{model.PositionAll}
	}
	if config.Rounds <= 0 {
		config.Rounds = 1
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// The health endpoint serves Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

func openSession(ctx context.Context, client *HTTPClient) error {
	var resp sessionResponse
	if err := client.call(ctx, http.MethodPost, "/api/v1/sessions", nil, &resp, http.StatusCreated); err != nil {
		return err
	}
	if resp.SessionID == "" {
		return fmt.Errorf("server returned an empty session id")
	}
	client.sessionID = resp.SessionID
	return nil
}

func closeSession(client *HTTPClient) {
	ctx, cancel := context.WithTimeout(context.Background(), client.client.Timeout)
	defer cancel()

	path := "/api/v1/sessions/" + url.PathEscape(client.sessionID)
	if err := client.call(ctx, http.MethodDelete, path, nil, nil, http.StatusNoContent); err != nil {
		logger.Get().Named("loadtest").Warn(ctx, "failed to close session",
			logger.String("session", client.sessionID), logger.Error(err))
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, readsPerSecond float64

	if stats.SlicesRequested > 0 {
		successRate = float64(stats.SlicesOK) / float64(stats.SlicesRequested) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		readsPerSecond = float64(stats.SlicesRequested) / stats.Duration.Seconds()
	}

	logger.Get().Named("loadtest").Info(ctx, "final statistics",
		logger.Int("slicesRequested", stats.SlicesRequested),
		logger.Int("slicesOK", stats.SlicesOK),
		logger.Int("slicesFailed", stats.SlicesFailed),
		logger.Int("recordsRead", stats.RecordsRead),
		logger.Int("rankingEntries", stats.RankingEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("readsPerSecond", readsPerSecond))
}
