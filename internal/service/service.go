// Package service drives the tracker's pass loop: fetch known replays,
// process the downloaded ones, merge results and push the leaderboard.
package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tagpro-records/tracker/internal/api"
	"github.com/tagpro-records/tracker/internal/catalog"
	"github.com/tagpro-records/tracker/internal/fetch"
	"github.com/tagpro-records/tracker/internal/metrics"
	"github.com/tagpro-records/tracker/internal/replay"
	"github.com/tagpro-records/tracker/internal/stats"
	"github.com/tagpro-records/tracker/internal/store"
	"github.com/tagpro-records/tracker/pkg/core"
)

// Service wires the tracker's components together. Metrics may be nil when
// reporting is disabled.
type Service struct {
	Store        *store.Store
	Fetcher      *fetch.Manager
	Catalog      *catalog.Cache
	Leaderboard  *api.Client
	Metrics      *metrics.Manager
	PassInterval time.Duration
	RetryDelay   time.Duration
	Logger       zerolog.Logger
}

// PassReport summarizes one pass.
type PassReport struct {
	Processed  int
	Merged     int
	Downloaded int
	Failed     int
}

// Run executes passes until the context is cancelled. A pass that fails with
// a transport error is logged and retried after the retry delay; anything
// recoverable is already handled inside the pass.
func (s *Service) Run(ctx context.Context) error {
	for {
		report, err := s.Pass(ctx)
		delay := s.PassInterval
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Logger.Error().Err(err).Msg("Pass failed")
			delay = s.RetryDelay
		} else {
			s.Logger.Info().
				Int("processed", report.Processed).
				Int("merged", report.Merged).
				Int("downloaded", report.Downloaded).
				Int("failed", report.Failed).
				Msg("Pass complete")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Pass runs one full cycle: download known replays that are due, process
// every downloaded unprocessed replay, merge the new results and push the
// leaderboard when anything changed. Per-replay failures are isolated; only
// transport failures abort the pass.
func (s *Service) Pass(ctx context.Context) (PassReport, error) {
	start := time.Now()
	var report PassReport

	entries, err := s.Catalog.Get(ctx)
	if err != nil {
		return report, fmt.Errorf("loading catalog: %w", err)
	}

	known, err := s.Store.KnownUUIDs()
	if err != nil {
		return report, fmt.Errorf("loading known replays: %w", err)
	}
	processed, err := s.Store.ProcessedUUIDs()
	if err != nil {
		return report, fmt.Errorf("loading processed replays: %w", err)
	}

	var results []core.RunResult
	for _, uuid := range known {
		if _, done := processed[uuid]; done {
			continue
		}

		fetched, err := s.Fetcher.EnsureDownloaded(ctx, uuid)
		if err != nil {
			return report, err
		}
		if fetched {
			report.Downloaded++
		}
		if !s.Fetcher.Downloaded(uuid) {
			continue
		}

		raw, err := os.ReadFile(s.Fetcher.ReplayPath(uuid))
		if err != nil {
			return report, fmt.Errorf("reading replay %s: %w", uuid, err)
		}
		result, err := s.ProcessReplay(raw, entries)
		if err != nil {
			report.Failed++
			s.Logger.Warn().Err(err).Str("uuid", uuid).Msg("Skipping replay")
			continue
		}
		report.Processed++
		results = append(results, result)
		if s.Metrics != nil {
			var rt int64
			if result.RecordTime != nil {
				rt = *result.RecordTime
			}
			s.Metrics.RecordReplay(result.MapID, result.Finished(), rt)
		}
	}

	report.Merged, err = s.Store.MergeResults(results)
	if err != nil {
		return report, fmt.Errorf("merging results: %w", err)
	}

	if report.Merged > 0 {
		finished, err := s.Store.FinishedResults()
		if err != nil {
			return report, fmt.Errorf("loading leaderboard entries: %w", err)
		}
		board := leaderboardEntries(finished, entries)
		if err := s.Leaderboard.Push(ctx, board); err != nil {
			return report, fmt.Errorf("pushing leaderboard: %w", err)
		}
		s.Logger.Info().Int("entries", len(board)).Msg("Pushed leaderboard")
	}

	if s.Metrics != nil {
		s.Metrics.RecordPass(report.Processed, report.Merged, report.Downloaded, report.Failed, time.Since(start))
	}
	return report, nil
}

// leaderboardEntries keeps only finished runs on cataloged maps. Runs on
// maps that later drop out of the catalog stay in the store but off the
// board.
func leaderboardEntries(finished []core.RunResult, entries []catalog.Entry) []core.RunResult {
	ids := catalog.MapIDSet(entries)
	board := make([]core.RunResult, 0, len(finished))
	for _, r := range finished {
		if _, ok := ids[r.MapID]; ok {
			board = append(board, r)
		}
	}
	return board
}

// ProcessReplay parses one raw replay and computes its run result under the
// catalog rules for its map.
func (s *Service) ProcessReplay(raw []byte, entries []catalog.Entry) (core.RunResult, error) {
	stream, err := replay.Parse(raw)
	if err != nil {
		return core.RunResult{}, err
	}
	rules := stats.RulesFromCatalog(entries, stream.ActualMapID)
	result, err := stats.DetectRun(stream, rules)
	if err != nil {
		return core.RunResult{}, err
	}
	return result, nil
}
