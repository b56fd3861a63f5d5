// Command gridstatctl runs cache operations without the HTTP server.
//
// Usage:
//
//	gridstatctl warm --year 2024 --weeks 1-4 --positions QB,RB
//	gridstatctl player --id 4046 --year 2024 --weeks 1-8 --league L1
//	gridstatctl rules --league L1
//	gridstatctl rankings --league L1 --year 2024 --force
//	gridstatctl clear --year 2023
//	gridstatctl count
//	gridstatctl loadtest --url http://localhost:9080 --year 2024 --weeks 1-4 --league L1
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/gridstat/internal/adapters/backend"
	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/config"
	"github.com/okian/gridstat/internal/domain/analytics"
	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/internal/loadtest"
	"github.com/okian/gridstat/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gridstatctl",
		Short:        "gridstat cache operations",
		SilenceUsage: true,
	}

	root.AddCommand(warmCmd())
	root.AddCommand(playerCmd())
	root.AddCommand(rulesCmd())
	root.AddCommand(rankingsCmd())
	root.AddCommand(clearCmd())
	root.AddCommand(countCmd())
	root.AddCommand(loadtestCmd())
	return root
}

// run loads the configuration, starts a service and hands fn the default
// session. The service is stopped when fn returns.
func run(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service, sess *service.Session) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Logs go to stderr so stdout stays machine readable.
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	return runWith(ctx, newService(cfg), fn)
}

func runWith(ctx context.Context, svc *service.Service, fn func(ctx context.Context, svc *service.Service, sess *service.Session) error) error {
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	sess, err := svc.Session(service.DefaultSessionID)
	if err != nil {
		return err
	}
	return fn(ctx, svc, sess)
}

func newService(cfg *config.Config) *service.Service {
	log := logger.Get()
	client := backend.NewClient(cfg.BackendURL,
		backend.WithToken(cfg.BackendToken),
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithRateLimit(cfg.BackendRPS, 1),
		backend.WithLogger(log.Named("backend")),
	)
	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithBackend(client),
		service.WithStoreSettings(cfg.StoreSettings()),
		service.WithStatsTTL(cfg.StatsTTL),
		service.WithRulesTTL(cfg.RulesTTL),
		service.WithRankingsTTL(cfg.RankingsTTL),
		service.WithMemoryCacheSize(cfg.MemoryCacheSize),
		service.WithTotalPolicy(cfg.Policy()),
		service.WithWorkerCount(cfg.WarmWorkerCount),
		service.WithQueueSize(cfg.WarmQueueSize),
		service.WithDefaultLeague(cfg.DefaultLeague),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --------------------------------------------------------------------------
// warm
// --------------------------------------------------------------------------

func warmCmd() *cobra.Command {
	var (
		year        int
		weeks       string
		positions   []string
		parallelism int
	)
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Fetch and store stat slices for a season",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, _ *service.Service, sess *service.Session) error {
				return warmSlices(ctx, cmd.OutOrStdout(), sess, year, weeks, positions, parallelism)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Season year")
	cmd.Flags().StringVar(&weeks, "weeks", "1-18", "Week list, e.g. 1-4,total")
	cmd.Flags().StringSliceVar(&positions, "positions", []string{model.PositionAll}, "Positions to fetch")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "Concurrent slice fetches")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

// warmSlices loads every (week, position) slice through sess and prints
// one line per slice.
func warmSlices(ctx context.Context, out io.Writer, sess *service.Session, year int, weeks string, positions []string, parallelism int) error {
	list, err := model.ParseWeekList(weeks)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("%w: no weeks selected", model.ErrInvalidWeek)
	}
	if len(positions) == 0 {
		positions = []string{model.PositionAll}
	}

	type result struct {
		key   model.SliceKey
		count int
	}
	var queries []backend.StatsQuery
	for _, w := range list {
		for _, p := range positions {
			queries = append(queries, backend.StatsQuery{Year: year, Week: w, Position: p})
		}
	}
	results := make([]result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			recs, err := sess.Stats(gctx, q)
			if err != nil {
				return fmt.Errorf("%s: %w", q.Slice(), err)
			}
			results[i] = result{key: q.Slice(), count: len(recs)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		fmt.Fprintf(out, "%s\t%d\n", r.key, r.count)
	}
	return nil
}

// --------------------------------------------------------------------------
// player
// --------------------------------------------------------------------------

func playerCmd() *cobra.Command {
	var (
		id     string
		year   int
		weeks  string
		league string
	)
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Print a player's merged season with metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := analytics.ParseSelection(weeks)
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, _ *service.Service, sess *service.Session) error {
				view, err := sess.PlayerReport(ctx, model.PlayerSliceKey{PlayerID: id, Year: year}, sel, league)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Player id")
	cmd.Flags().IntVar(&year, "year", 0, "Season year")
	cmd.Flags().StringVar(&weeks, "weeks", "all", "all, total or a week list")
	cmd.Flags().StringVar(&league, "league", "", "League whose rules price fantasy metrics")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

// --------------------------------------------------------------------------
// rules and rankings
// --------------------------------------------------------------------------

func rulesCmd() *cobra.Command {
	var league string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print a league's scoring rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, _ *service.Service, sess *service.Session) error {
				rs, err := sess.Rules(ctx, league)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rs)
			})
		},
	}
	cmd.Flags().StringVar(&league, "league", "", "League id")
	_ = cmd.MarkFlagRequired("league")
	return cmd
}

func rankingsCmd() *cobra.Command {
	var (
		league string
		year   int
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Print league rankings, recalculating when stale",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, _ *service.Service, sess *service.Session) error {
				rank := sess.Rankings
				if force {
					rank = sess.RecalculateRankings
				}
				entries, err := rank(ctx, league, year)
				if err != nil {
					return err
				}
				return printRankings(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().StringVar(&league, "league", "", "League id")
	cmd.Flags().IntVar(&year, "year", 0, "Season year")
	cmd.Flags().BoolVar(&force, "force", false, "Recalculate even when stored rankings are fresh")
	_ = cmd.MarkFlagRequired("league")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func printRankings(w io.Writer, entries []model.RankingEntry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%d\t%s%d\t%s\t%s\t%.2f\n",
			e.OverallRank, e.Position, e.PositionRank, e.PlayerID, e.PlayerName, e.FantasyPoints); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// clear and count
// --------------------------------------------------------------------------

func clearCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop everything cached for a season",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, svc *service.Service, _ *service.Session) error {
				n, err := svc.ClearYear(ctx, year)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d records for %d\n", n, year)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Season year")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print stored record counts per collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, svc *service.Service, _ *service.Session) error {
				counts, err := svc.Repository().Counts(ctx)
				if err != nil {
					return err
				}
				return printCounts(cmd.OutOrStdout(), counts)
			})
		},
	}
}

func printCounts(w io.Writer, counts map[string]int) error {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%-12s %d\n", strings.ToLower(name), counts[name]); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// loadtest
// --------------------------------------------------------------------------

func loadtestCmd() *cobra.Command {
	var (
		cfg     loadtest.Config
		weeks   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Read slices from a running server and verify its rankings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := model.ParseWeekList(weeks)
			if err != nil {
				return err
			}
			cfg.Weeks = list
			cfg.Timeout = timeout

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}

			stats, err := loadtest.Run(ctx, &cfg)
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "slices %d ok %d failed %d records %d rankings %d in %s\n",
					stats.SlicesRequested, stats.SlicesOK, stats.SlicesFailed,
					stats.RecordsRead, stats.RankingEntries, stats.Duration.Round(time.Millisecond))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	cmd.Flags().IntVar(&cfg.Year, "year", 0, "Season year")
	cmd.Flags().StringVar(&weeks, "weeks", "1-18", "Week list, e.g. 1-4,total")
	cmd.Flags().StringSliceVar(&cfg.Positions, "positions", []string{model.PositionAll}, "Positions to read")
	cmd.Flags().StringVar(&cfg.League, "league", "", "League whose rankings are verified")
	cmd.Flags().IntVar(&cfg.Rounds, "rounds", 3, "Times every slice is read")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 8, "Concurrent readers")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP request timeout")
	cmd.Flags().BoolVar(&cfg.Warm, "warm", false, "Enqueue a warm request first")
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Log failed reads and the top performers")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}
