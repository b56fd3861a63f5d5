package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/gridstat/internal/domain/model"
)

// Repository maps domain records onto a Store.
type Repository struct {
	store Store
}

// New wraps store.
func New(store Store) *Repository {
	return &Repository{store: store}
}

// Store returns the underlying store.
func (r *Repository) Store() Store { return r.store }

// Close closes the underlying store.
func (r *Repository) Close() error { return r.store.Close() }

func yearIndex(year int) string { return strconv.Itoa(year) }

// PutStats stores a batch of stat records, filling their ids.
func (r *Repository) PutStats(ctx context.Context, records []model.StatRecord) error {
	recs := make([]Record, 0, len(records))
	for i := range records {
		records[i].Normalize()
		s := records[i]
		rec, err := NewRecord(s.ID, s, map[string]string{
			IndexYear:     yearIndex(s.Year),
			IndexWeek:     s.Week.String(),
			IndexPosition: s.Position,
			IndexPlayer:   s.PlayerKey,
		})
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	return r.store.PutBatch(ctx, CollectionStats, recs)
}

// StatsForSlice returns the stat records of a (year, week, position) slice.
// It scans the year index and filters the rest in memory.
func (r *Repository) StatsForSlice(ctx context.Context, key model.SliceKey) ([]model.StatRecord, error) {
	recs, err := r.store.GetByIndex(ctx, CollectionStats, IndexYear, yearIndex(key.Year))
	if err != nil {
		return nil, err
	}
	pos := model.NormalizePosition(key.Position)
	out := make([]model.StatRecord, 0, len(recs))
	for _, rec := range recs {
		var s model.StatRecord
		if err := rec.Decode(&s); err != nil {
			return nil, err
		}
		if s.Week != key.Week {
			continue
		}
		if pos != model.PositionAll && s.Position != pos {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerKey < out[j].PlayerKey })
	return out, nil
}

// PlayerYear loads the merged record of one player season. It returns
// ErrNotFound when nothing is stored.
func (r *Repository) PlayerYear(ctx context.Context, key model.PlayerSliceKey) (model.PlayerYearRecord, error) {
	recs, err := r.store.GetByIndex(ctx, CollectionPlayerWeeks, IndexYear, yearIndex(key.Year))
	if err != nil {
		return model.PlayerYearRecord{}, err
	}
	for _, rec := range recs {
		var p model.PlayerYearRecord
		if err := rec.Decode(&p); err != nil {
			return model.PlayerYearRecord{}, err
		}
		if p.PlayerID == key.PlayerID {
			return p, nil
		}
	}
	return model.PlayerYearRecord{}, ErrNotFound
}

// PutPlayerYear overwrites the stored player season.
func (r *Repository) PutPlayerYear(ctx context.Context, p model.PlayerYearRecord) error {
	rec, err := NewRecord(p.Key().StorageKey(), p, map[string]string{
		IndexYear:   yearIndex(p.Year),
		IndexPlayer: p.PlayerID,
	})
	if err != nil {
		return err
	}
	return r.store.Put(ctx, CollectionPlayerWeeks, rec)
}

// RuleSet returns the stored rule set of a league.
func (r *Repository) RuleSet(ctx context.Context, leagueID string) (model.ScoringRuleSet, error) {
	rec, err := r.store.Get(ctx, CollectionRules, leagueID)
	if err != nil {
		return model.ScoringRuleSet{}, err
	}
	var rs model.ScoringRuleSet
	return rs, rec.Decode(&rs)
}

// PutRuleSet stores a league's rule set.
func (r *Repository) PutRuleSet(ctx context.Context, rs model.ScoringRuleSet) error {
	rec, err := NewRecord(rs.LeagueID, rs, map[string]string{IndexLeague: rs.LeagueID})
	if err != nil {
		return err
	}
	return r.store.Put(ctx, CollectionRules, rec)
}

func rankingKey(e model.RankingEntry) string {
	return e.Key().StorageKey() + "|" + e.PlayerID
}

// ReplaceRankings deletes the stored rankings of key, then stores entries.
func (r *Repository) ReplaceRankings(ctx context.Context, key model.LeagueYearKey, entries []model.RankingEntry) error {
	if _, err := r.store.ClearByIndex(ctx, CollectionRankings, IndexLeagueYear, key.StorageKey()); err != nil {
		return fmt.Errorf("clear rankings: %w", err)
	}
	recs := make([]Record, 0, len(entries))
	for _, e := range entries {
		rec, err := NewRecord(rankingKey(e), e, map[string]string{
			IndexLeagueYear: key.StorageKey(),
			IndexLeague:     key.LeagueID,
			IndexYear:       yearIndex(key.Year),
		})
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	return r.store.PutBatch(ctx, CollectionRankings, recs)
}

// Rankings returns the stored rankings of key ordered by overall rank.
func (r *Repository) Rankings(ctx context.Context, key model.LeagueYearKey) ([]model.RankingEntry, error) {
	recs, err := r.store.GetByIndex(ctx, CollectionRankings, IndexLeagueYear, key.StorageKey())
	if err != nil {
		return nil, err
	}
	out := make([]model.RankingEntry, 0, len(recs))
	for _, rec := range recs {
		var e model.RankingEntry
		if err := rec.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OverallRank < out[j].OverallRank })
	return out, nil
}

// Page returns a stored listing page.
func (r *Repository) Page(ctx context.Context, key model.PageKey) (model.PlayerPage, error) {
	rec, err := r.store.Get(ctx, CollectionPages, key.StorageKey())
	if err != nil {
		return model.PlayerPage{}, err
	}
	var p model.PlayerPage
	return p, rec.Decode(&p)
}

// PutPage stores a listing page.
func (r *Repository) PutPage(ctx context.Context, p model.PlayerPage) error {
	rec, err := NewRecord(p.Key, p, map[string]string{IndexYear: yearIndex(p.Year)})
	if err != nil {
		return err
	}
	return r.store.Put(ctx, CollectionPages, rec)
}

// PutFlag stores a durable completion flag.
func (r *Repository) PutFlag(ctx context.Context, flag model.CompletionFlag) error {
	rec, err := NewRecord(flag.Key, flag, map[string]string{IndexYear: yearIndex(flag.Year)})
	if err != nil {
		return err
	}
	return r.store.Put(ctx, CollectionCompletion, rec)
}

// Flag returns the durable completion flag of key.
func (r *Repository) Flag(ctx context.Context, key string) (model.CompletionFlag, error) {
	rec, err := r.store.Get(ctx, CollectionCompletion, key)
	if err != nil {
		return model.CompletionFlag{}, err
	}
	var f model.CompletionFlag
	return f, rec.Decode(&f)
}

// DeleteFlag removes the durable completion flag of key.
func (r *Repository) DeleteFlag(ctx context.Context, key string) error {
	return r.store.Delete(ctx, CollectionCompletion, key)
}

// ClearFlags removes the durable completion flags and metadata of year.
func (r *Repository) ClearFlags(ctx context.Context, year int) (int, error) {
	n, err := r.store.ClearByIndex(ctx, CollectionCompletion, IndexYear, yearIndex(year))
	if err != nil {
		return 0, err
	}
	if _, err := r.store.ClearByIndex(ctx, CollectionMetadata, IndexYear, yearIndex(year)); err != nil {
		return n, err
	}
	return n, nil
}

// Metadata is the last-update record written alongside a completion flag.
type Metadata struct {
	Key         string    `json:"key"`
	Year        int       `json:"year"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// PutMetadata records when key was last refreshed.
func (r *Repository) PutMetadata(ctx context.Context, key string, year int, at time.Time) error {
	rec, err := NewRecord(key, Metadata{Key: key, Year: year, LastUpdated: at}, map[string]string{IndexYear: yearIndex(year)})
	if err != nil {
		return err
	}
	return r.store.Put(ctx, CollectionMetadata, rec)
}

// ClearYear removes everything stored for year from every collection that
// carries a year index. Rules are league scoped and kept.
func (r *Repository) ClearYear(ctx context.Context, year int) (int, error) {
	collections := []string{
		CollectionStats,
		CollectionPlayerWeeks,
		CollectionRankings,
		CollectionCompletion,
		CollectionMetadata,
		CollectionPages,
	}
	var (
		mu    sync.Mutex
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range collections {
		c := c
		g.Go(func() error {
			n, err := r.store.ClearByIndex(gctx, c, IndexYear, yearIndex(year))
			if err != nil {
				return fmt.Errorf("clear %s: %w", c, err)
			}
			mu.Lock()
			total += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total, nil
}

// Counts returns the record count of every collection.
func (r *Repository) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(Collections))
	for _, c := range Collections {
		n, err := r.store.Count(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c, err)
		}
		out[c] = n
	}
	return out, nil
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
