package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/tagpro-records/tracker/internal/api"
	"github.com/tagpro-records/tracker/internal/catalog"
	"github.com/tagpro-records/tracker/internal/config"
	"github.com/tagpro-records/tracker/internal/fetch"
	"github.com/tagpro-records/tracker/internal/metrics"
	"github.com/tagpro-records/tracker/internal/replay"
	"github.com/tagpro-records/tracker/internal/service"
	"github.com/tagpro-records/tracker/internal/stats"
	"github.com/tagpro-records/tracker/internal/store"
	"github.com/tagpro-records/tracker/pkg/core"
)

var version = "dev"

const usage = `wrtracker %s

Usage:
  wrtracker run                  track known replays, merge results, push leaderboard
  wrtracker pass                 execute a single pass and exit
  wrtracker add <uuid>           register a replay uuid for tracking
  wrtracker parse <file|uuid>    print the computed run result for a replay
  wrtracker summary <file|uuid>  print the quick-look summary for a replay
  wrtracker holds <file|uuid>    print flag possession totals for a replay
  wrtracker maps                 print the usable catalog entries
  wrtracker wr <mapId>           print the stored best run for a map
`

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, version)
		os.Exit(2)
	}

	if err := config.Load("."); err != nil {
		log.Warn().Err(err).Msg("No config file found, using defaults")
	}
	if level, err := zerolog.ParseLevel(config.GetString("logLevel")); err == nil {
		log = log.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runService(ctx, log, false)
	case "pass":
		err = runService(ctx, log, true)
	case "add":
		err = withArg(addReplay, ctx, log)
	case "parse":
		err = withArg(parseReplay, ctx, log)
	case "summary":
		err = withArg(printSummary, ctx, log)
	case "holds":
		err = withArg(printHolds, ctx, log)
	case "maps":
		err = printMaps(ctx, log)
	case "wr":
		err = withArg(printBest, ctx, log)
	default:
		fmt.Fprintf(os.Stderr, usage, version)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func withArg(fn func(context.Context, zerolog.Logger, string) error, ctx context.Context, log zerolog.Logger) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("%s requires an argument", os.Args[1])
	}
	return fn(ctx, log, os.Args[2])
}

func newCatalogCache(log zerolog.Logger) *catalog.Cache {
	client := catalog.NewClient(config.GetString("catalog.csvUrl"), log)
	return catalog.NewCache(client, config.GetDuration("catalog.cacheTtl"))
}

func runService(ctx context.Context, log zerolog.Logger, once bool) error {
	st, err := store.Open(log)
	if err != nil {
		return err
	}

	var m *metrics.Manager
	if viper.GetBool("influx.enabled") {
		m = metrics.NewManager(log, config.GetString("influx.backupPath"))
		if err := m.Connect(); err != nil {
			log.Warn().Err(err).Msg("Metrics disabled")
			m = nil
		} else {
			defer m.Close()
		}
	}

	svc := &service.Service{
		Store: st,
		Fetcher: fetch.NewManager(
			fetch.NewClient(config.GetString("source.serverUrl"), log),
			st,
			config.GetString("dataDir"),
			log,
		),
		Catalog: newCatalogCache(log),
		Leaderboard: api.New(
			config.GetString("leaderboard.serverUrl"),
			config.GetString("leaderboard.password"),
		),
		Metrics:      m,
		PassInterval: config.GetDuration("service.passInterval"),
		RetryDelay:   config.GetDuration("service.retryDelay"),
		Logger:       log,
	}

	if once {
		report, err := svc.Pass(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Int("processed", report.Processed).
			Int("merged", report.Merged).
			Int("downloaded", report.Downloaded).
			Int("failed", report.Failed).
			Msg("Pass complete")
		return nil
	}
	return svc.Run(ctx)
}

func addReplay(ctx context.Context, log zerolog.Logger, uuid string) error {
	st, err := store.Open(log)
	if err != nil {
		return err
	}
	if err := st.AddKnownReplay(uuid, store.SourceManual); err != nil {
		return err
	}
	log.Info().Str("uuid", uuid).Msg("Registered replay")
	return nil
}

// loadStream reads a replay by file path, or by uuid under the data dir.
func loadStream(arg string) (*replay.Stream, error) {
	raw, err := os.ReadFile(arg)
	if os.IsNotExist(err) {
		raw, err = os.ReadFile(filepath.Join(config.GetString("dataDir"), arg+".txt"))
	}
	if err != nil {
		return nil, err
	}
	return replay.Parse(raw)
}

func parseReplay(ctx context.Context, log zerolog.Logger, path string) error {
	stream, err := loadStream(path)
	if err != nil {
		return err
	}

	rules := stats.Rules{EffectiveMapID: stream.ActualMapID, CapsToWin: 1}
	if url := config.GetString("catalog.csvUrl"); url != "" {
		entries, err := newCatalogCache(log).Get(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Catalog unavailable, using default rules")
		} else {
			rules = stats.RulesFromCatalog(entries, stream.ActualMapID)
		}
	}

	result, err := stats.DetectRun(stream, rules)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if result.Finished() {
		fmt.Printf("record time: %s\n", core.FormatDuration(*result.RecordTime))
	}
	return nil
}

func printSummary(ctx context.Context, log zerolog.Logger, path string) error {
	stream, err := loadStream(path)
	if err != nil {
		return err
	}
	s := stream.Summary()
	fmt.Printf("map:     %s\n", s.MapName)
	fmt.Printf("players: %d\n", s.NumPlayers)
	fmt.Printf("started: %d\n", s.Timestamp)
	fmt.Printf("uuid:    %s\n", s.UUID)
	return nil
}

func printHolds(ctx context.Context, log zerolog.Logger, path string) error {
	stream, err := loadStream(path)
	if err != nil {
		return err
	}
	totals, holds := stats.AggregatePossession(stream)

	fmt.Printf("red:  %s\n", core.FormatDuration(totals.TeamTotals[core.TeamRed]))
	fmt.Printf("blue: %s\n", core.FormatDuration(totals.TeamTotals[core.TeamBlue]))

	names := make([]string, 0, len(totals.PerPlayer))
	for name := range totals.PerPlayer {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return totals.PerPlayer[names[i]] > totals.PerPlayer[names[j]]
	})
	for _, name := range names {
		fmt.Printf("  %-24s %s\n", name, core.FormatDuration(totals.PerPlayer[name]))
	}

	fmt.Printf("%d holds\n", len(holds))
	return nil
}

func printMaps(ctx context.Context, log zerolog.Logger) error {
	entries, err := newCatalogCache(log).Get(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		caps := fmt.Sprintf("%d", e.CapsToWin)
		if e.CapsToWin == core.CapsInfinite {
			caps = "pups"
		}
		fmt.Printf("%-8s %-6s %-40s %s\n", e.MapID, caps, catalog.CleanName(e.Name), e.Preset)
	}
	return nil
}

func printBest(ctx context.Context, log zerolog.Logger, mapID string) error {
	st, err := store.Open(log)
	if err != nil {
		return err
	}
	best, err := st.BestForMap(mapID)
	if err != nil {
		return err
	}
	if best == nil {
		fmt.Printf("no finished run stored for map %s\n", mapID)
		return nil
	}
	fmt.Printf("map:    %s (%s)\n", best.MapName, best.MapID)
	fmt.Printf("time:   %s\n", core.FormatDuration(*best.RecordTime))
	fmt.Printf("player: %s\n", *best.CappingPlayer)
	if best.CappingPlayerQuote != nil {
		fmt.Printf("quote:  %q\n", *best.CappingPlayerQuote)
	}
	fmt.Printf("uuid:   %s\n", best.UUID)
	return nil
}
