package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cse-data/internal/apportion"
	"cse-data/internal/config"
	"cse-data/internal/database"
	"cse-data/internal/logger"
	"cse-data/internal/metrics"
	"cse-data/internal/repository"
	"cse-data/internal/service"
	"cse-data/internal/stats"
	"cse-data/internal/store"
)

const usageText = `Usage: cse-data <command> [flags]

Commands:
  ingest-pv      -file <xlsx> [-rebuild]   import an election minutes workbook
  ingest-invit   -file <xlsx> [-rebuild]   import an invitation workbook
  rebuild                                  regenerate the per-establishment summary
  backfill-invit                           re-extract invitation columns from stored payloads
  enrich-invit                             fill missing invitation fields from the Sirene directory
  stats          [-force]                  print the global statistics as JSON
  seats          -headcount <n> -votes "CGT=450,CFDT=300" [-quotient-only]
                                           compute the CSE seat allocation

Configuration comes from the environment (DB_*, REDIS_*, SIRENE_*, LOG_*).`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usageText)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	cfg := config.Load()
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "cse-data")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Pure computation, no database behind it.
	if command == "seats" {
		if err := runSeats(args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer app.db.Close()

	if err := app.run(ctx, command, args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(2)
		}
		log.Error("command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

type app struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *sql.DB
	etl   *service.ETLService
	stats *stats.Service
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	var kv store.KV
	if cfg.Redis.Enabled {
		rkv, err := store.NewRedisKVFromConfig(ctx, &cfg.Redis)
		if err != nil {
			// Redis only caches; a dead instance must not block imports.
			log.Warn("redis unavailable, using in-process cache", zap.Error(err))
			kv = store.NewMemoryKV()
		} else {
			kv = rkv
		}
	} else {
		kv = store.NewMemoryKV()
	}

	statsService := stats.NewService(db, kv, cfg.Redis.StatsTTL, log)

	var sirene service.EtablissementLookup
	if cfg.Sirene.Enabled() {
		sirene = service.NewSireneClient(&cfg.Sirene, log)
	}

	pvRepo := repository.NewPostgresPVEventsRepository(db, log)
	invitsRepo := repository.NewPostgresInvitationsRepository(db, log)
	summaryRepo := repository.NewPostgresSummaryRepository(db, log)

	etl := service.NewETLService(
		pvRepo, invitsRepo, summaryRepo,
		statsService, sirene, metrics.NewDefault(), log,
	)

	return &app{cfg: cfg, log: log, db: db, etl: etl, stats: statsService}, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "ingest-pv":
		return a.runIngest(ctx, command, args, a.etl.IngestPV)
	case "ingest-invit":
		return a.runIngest(ctx, command, args, a.etl.IngestInvitations)
	case "rebuild":
		return a.runRebuild(ctx)
	case "backfill-invit":
		n, err := a.etl.BackfillInvitations(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("invitations updated: %d\n", n)
		return nil
	case "enrich-invit":
		res, err := a.etl.EnrichInvitations(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("invitations enriched: %d, skipped: %d, lookup errors: %d\n",
			res.Inserted, res.Skipped, len(res.Errors))
		return nil
	case "stats":
		return a.runStats(ctx, args)
	default:
		fmt.Fprintln(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) runIngest(
	ctx context.Context,
	name string,
	args []string,
	ingestFn func(context.Context, io.Reader) (*service.ETLResult, error),
) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("file", "", "path to the xlsx file to import")
	rebuild := fs.Bool("rebuild", false, "rebuild the summary after the import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		fs.Usage()
		return fmt.Errorf("missing -file")
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open %s: %w", *path, err)
	}
	defer f.Close()

	res, err := ingestFn(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("inserted: %d, skipped: %d\n", res.Inserted, res.Skipped)
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	if *rebuild {
		return a.runRebuild(ctx)
	}
	return nil
}

func (a *app) runRebuild(ctx context.Context) error {
	task, err := a.etl.Rebuild(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("rebuild %s: %d establishments (task %s)\n", task.Status, task.Rows, task.ID)
	return nil
}

func (a *app) runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	force := fs.Bool("force", false, "recompute instead of reading the cache")
	if err := fs.Parse(args); err != nil {
		return err
	}
	g, err := a.stats.Global(ctx, *force)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runSeats(args []string) error {
	fs := flag.NewFlagSet("seats", flag.ContinueOnError)
	headcount := fs.Int("headcount", 0, "company headcount, determines the number of seats")
	totalSeats := fs.Int("seats", 0, "seat count override, skips the headcount table")
	votesSpec := fs.String("votes", "", `vote tallies, e.g. "CGT=450,CFDT=300,FO=150"`)
	quotientOnly := fs.Bool("quotient-only", false, "allocate by electoral quotient only, leaving remainder seats empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	votes, err := parseVotes(*votesSpec)
	if err != nil {
		return err
	}

	n := *totalSeats
	if n == 0 {
		n = apportion.SeatsForHeadcount(*headcount)
	}
	fmt.Printf("seats: %d\n", n)

	var alloc map[string]int
	if *quotientOnly {
		alloc = apportion.QuotientOnly(votes, n)
	} else {
		alloc = apportion.Seats(votes, n)
	}
	orgs := make([]string, 0, len(alloc))
	for org := range alloc {
		orgs = append(orgs, org)
	}
	sort.Strings(orgs)
	for _, org := range orgs {
		fmt.Printf("  %s: %d\n", org, alloc[org])
	}
	return nil
}

func parseVotes(spec string) (map[string]int, error) {
	votes := map[string]int{}
	if strings.TrimSpace(spec) == "" {
		return votes, nil
	}
	for _, part := range strings.Split(spec, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("bad vote entry %q, want ORG=COUNT", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("bad vote count in %q: %w", part, err)
		}
		votes[strings.TrimSpace(kv[0])] = n
	}
	return votes, nil
}
