package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/domain/analytics"
	"github.com/okian/gridstat/internal/domain/model"
)

func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || year <= 0 {
		return 0, fmt.Errorf("%w: year must be a positive integer", ErrBadRequest)
	}
	return year, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}
	return n, nil
}

// statsQuery reads year, week and position. week is required and accepts
// a number or "total".
func statsQuery(r *http.Request) (backend.StatsQuery, error) {
	q := r.URL.Query()
	year, err := parseYear(q.Get("year"))
	if err != nil {
		return backend.StatsQuery{}, err
	}
	week, err := model.ParseWeek(q.Get("week"))
	if err != nil {
		return backend.StatsQuery{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return backend.StatsQuery{Year: year, Week: week, Position: q.Get("position")}, nil
}

func selection(raw string) (analytics.Selection, error) {
	sel, err := analytics.ParseSelection(raw)
	if err != nil {
		return analytics.Selection{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return sel, nil
}
