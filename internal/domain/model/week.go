// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Season shape constants.
const (
	// MaxWeek is the last regular week a player record can hold.
	MaxWeek = 18
	// totalLabel is the text form of WeekTotal.
	totalLabel = "total"
)

// Week identifies one game week. Regular weeks are 1..MaxWeek; the zero
// value is the season aggregate pseudo-week, written as "total".
type Week int

// WeekTotal is the season aggregate pseudo-week.
const WeekTotal Week = 0

// AllWeeks returns the regular weeks 1..MaxWeek in order.
func AllWeeks() []Week {
	weeks := make([]Week, 0, MaxWeek)
	for w := Week(1); w <= MaxWeek; w++ {
		weeks = append(weeks, w)
	}
	return weeks
}

// IsTotal reports whether w is the season aggregate.
func (w Week) IsTotal() bool { return w == WeekTotal }

// Valid reports whether w is a regular week or the total.
func (w Week) Valid() bool { return w >= WeekTotal && w <= MaxWeek }

// String returns "1".."18" or "total".
func (w Week) String() string {
	if w.IsTotal() {
		return totalLabel
	}
	return strconv.Itoa(int(w))
}

// ParseWeek accepts a week number or "total" (case-insensitive).
func ParseWeek(s string) (Week, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, totalLabel) {
		return WeekTotal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeek, s)
	}
	w := Week(n)
	if w < 1 || w > MaxWeek {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidWeek, n)
	}
	return w, nil
}

// MarshalText lets Week be used as a JSON object key.
func (w Week) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText parses the text form produced by MarshalText.
func (w *Week) UnmarshalText(b []byte) error {
	parsed, err := ParseWeek(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// MarshalJSON writes regular weeks as numbers and the total as "total".
func (w Week) MarshalJSON() ([]byte, error) {
	if w.IsTotal() {
		return json.Marshal(totalLabel)
	}
	return []byte(strconv.Itoa(int(w))), nil
}

// UnmarshalJSON accepts a number, a numeric string, or "total".
func (w *Week) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		return w.UnmarshalText([]byte(strconv.Itoa(n)))
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWeek, string(b))
	}
	return w.UnmarshalText([]byte(s))
}

// FormatWeeks renders weeks as the comma-separated list the backend expects.
func FormatWeeks(weeks []Week) string {
	parts := make([]string, len(weeks))
	for i, w := range weeks {
		parts[i] = w.String()
	}
	return strings.Join(parts, ",")
}

// ParseWeekList parses "1,2,5-7,total" into a sorted, de-duplicated list.
func ParseWeekList(s string) ([]Week, error) {
	seen := make(map[Week]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err := ParseWeek(lo)
			if err != nil {
				return nil, err
			}
			to, err := ParseWeek(hi)
			if err != nil {
				return nil, err
			}
			if from.IsTotal() || to.IsTotal() || from > to {
				return nil, fmt.Errorf("%w: bad range %q", ErrInvalidWeek, part)
			}
			for w := from; w <= to; w++ {
				seen[w] = struct{}{}
			}
			continue
		}
		w, err := ParseWeek(part)
		if err != nil {
			return nil, err
		}
		seen[w] = struct{}{}
	}
	return SortWeeks(seen), nil
}

// SortWeeks returns the keys of set in ascending order with total last.
func SortWeeks[V any](set map[Week]V) []Week {
	weeks := make([]Week, 0, len(set))
	for w := range set {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool {
		if weeks[i].IsTotal() != weeks[j].IsTotal() {
			return weeks[j].IsTotal()
		}
		return weeks[i] < weeks[j]
	})
	return weeks
}
