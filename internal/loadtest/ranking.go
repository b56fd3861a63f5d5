package loadtest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okian/gridstat/pkg/logger"
)

// retrieveRankings fetches the league's season rankings.
func retrieveRankings(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) ([]Entry, error) {
	path := "/api/v1/rankings/" + url.PathEscape(config.League) + "?year=" + strconv.Itoa(config.Year)

	var resp rankingsResponse
	if err := client.call(ctx, http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	stats.RankingEntries = len(resp.Data)

	logger.Get().Named("loadtest").Info(ctx, "rankings retrieved",
		logger.String("league", config.League),
		logger.Int("entries", len(resp.Data)))
	return resp.Data, nil
}

// topPerformers returns at most n leading entries.
func topPerformers(entries []Entry, n int) []Entry {
	if len(entries) < n {
		n = len(entries)
	}
	return entries[:n]
}
