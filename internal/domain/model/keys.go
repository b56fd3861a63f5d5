package model

import (
	"net/url"
	"strconv"
	"strings"
)

// PositionAll selects every position in a slice query.
const PositionAll = "ALL"

// keySep separates escaped key components. Components are query-escaped,
// so the separator never appears inside one.
const keySep = "|"

func joinKey(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.QueryEscape(p)
	}
	return strings.Join(escaped, keySep)
}

// NormalizePosition trims and upper-cases a position; empty means all.
func NormalizePosition(p string) string {
	p = strings.ToUpper(strings.TrimSpace(p))
	if p == "" {
		return PositionAll
	}
	return p
}

// SliceKey identifies a (year, week, position) slice.
type SliceKey struct {
	Year     int
	Week     Week
	Position string
}

// NewSliceKey builds a SliceKey with a normalized position.
func NewSliceKey(year int, week Week, position string) SliceKey {
	return SliceKey{Year: year, Week: week, Position: NormalizePosition(position)}
}

// StorageKey returns the escaped string form used by durable stores.
func (k SliceKey) StorageKey() string {
	return joinKey("slice", strconv.Itoa(k.Year), k.Week.String(), k.Position)
}

// SeasonYear returns the year the slice belongs to.
func (k SliceKey) SeasonYear() int { return k.Year }

func (k SliceKey) String() string { return k.StorageKey() }

// PlayerSliceKey identifies a (player, year) slice.
type PlayerSliceKey struct {
	PlayerID string
	Year     int
}

// StorageKey returns the escaped string form used by durable stores.
func (k PlayerSliceKey) StorageKey() string {
	return joinKey("player", k.PlayerID, strconv.Itoa(k.Year))
}

// SeasonYear returns the year the slice belongs to.
func (k PlayerSliceKey) SeasonYear() int { return k.Year }

func (k PlayerSliceKey) String() string { return k.StorageKey() }

// LeagueYearKey identifies rankings and rule lookups for a league season.
type LeagueYearKey struct {
	LeagueID string
	Year     int
}

// StorageKey returns the escaped string form used by durable stores.
func (k LeagueYearKey) StorageKey() string {
	return joinKey("league", k.LeagueID, strconv.Itoa(k.Year))
}

func (k LeagueYearKey) String() string { return k.StorageKey() }

// PageKey identifies one page of the player listing for a slice.
type PageKey struct {
	Slice SliceKey
	Page  int
	Limit int
}

// StorageKey returns the escaped string form used by durable stores.
func (k PageKey) StorageKey() string {
	return joinKey("page", strconv.Itoa(k.Slice.Year), k.Slice.Week.String(), k.Slice.Position,
		strconv.Itoa(k.Page), strconv.Itoa(k.Limit))
}

// SeasonYear returns the year the page belongs to.
func (k PageKey) SeasonYear() int { return k.Slice.Year }

func (k PageKey) String() string { return k.StorageKey() }

// RecordKey is the primary key of a StatRecord.
type RecordKey struct {
	PlayerKey string
	Year      int
	Week      Week
}

// StorageKey returns the escaped string form used by durable stores.
func (k RecordKey) StorageKey() string {
	return joinKey("stat", k.PlayerKey, strconv.Itoa(k.Year), k.Week.String())
}

func (k RecordKey) String() string { return k.StorageKey() }
