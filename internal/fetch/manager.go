package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// staleness is the ceiling on retrying a replay that keeps failing. Once the
// first failed attempt is older than this, the replay is abandoned.
const staleness = 24 * time.Hour

// Downloader fetches raw replay bytes by uuid.
type Downloader interface {
	FetchReplay(ctx context.Context, uuid string) ([]byte, error)
}

// AttemptStore persists the failed-attempt window per replay uuid.
type AttemptStore interface {
	Attempt(uuid string) (first, last time.Time, found bool, err error)
	CreateAttempt(uuid string, at time.Time) error
	TouchAttempt(uuid string, at time.Time) error
}

// Manager decides when a replay should be fetched and keeps downloaded
// replays on disk. Retry pacing is quarter-age: a failed replay is retried
// once the time since the last attempt exceeds a quarter of the time since
// the first, until the staleness ceiling abandons it.
type Manager struct {
	client   Downloader
	attempts AttemptStore
	dataDir  string
	log      zerolog.Logger
	now      func() time.Time
}

// NewManager creates a fetch manager storing replays under dataDir.
func NewManager(client Downloader, attempts AttemptStore, dataDir string, log zerolog.Logger) *Manager {
	return &Manager{
		client:   client,
		attempts: attempts,
		dataDir:  dataDir,
		log:      log,
		now:      time.Now,
	}
}

// ReplayPath returns the on-disk location for a replay uuid.
func (m *Manager) ReplayPath(uuid string) string {
	return filepath.Join(m.dataDir, uuid+".txt")
}

// Downloaded reports whether the replay is already on disk.
func (m *Manager) Downloaded(uuid string) bool {
	_, err := os.Stat(m.ReplayPath(uuid))
	return err == nil
}

// EnsureDownloaded fetches the replay unless it is already on disk, was
// attempted too recently, or is stale. It reports whether a new file was
// written. Recoverable upstream outcomes (rate limiting, ambiguous lookups)
// are recorded and swallowed; only transport failures return an error.
func (m *Manager) EnsureDownloaded(ctx context.Context, uuid string) (bool, error) {
	if m.Downloaded(uuid) {
		return false, nil
	}

	now := m.now()
	first, last, found, err := m.attempts.Attempt(uuid)
	if err != nil {
		return false, fmt.Errorf("loading attempt record for %s: %w", uuid, err)
	}
	if found && !retryDue(first, last, now) {
		return false, nil
	}

	raw, err := m.client.FetchReplay(ctx, uuid)
	if err != nil {
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrAmbiguous) {
			m.log.Warn().Err(err).Str("uuid", uuid).Msg("Replay not available, will retry later")
			if found {
				if err := m.attempts.TouchAttempt(uuid, now); err != nil {
					return false, fmt.Errorf("updating attempt record for %s: %w", uuid, err)
				}
			} else {
				if err := m.attempts.CreateAttempt(uuid, now); err != nil {
					return false, fmt.Errorf("creating attempt record for %s: %w", uuid, err)
				}
			}
			return false, nil
		}
		return false, err
	}

	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return false, fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(m.ReplayPath(uuid), raw, 0o644); err != nil {
		return false, fmt.Errorf("writing replay %s: %w", uuid, err)
	}
	m.log.Info().Str("uuid", uuid).Int("bytes", len(raw)).Msg("Downloaded replay")
	return true, nil
}

// retryDue applies the quarter-age pacing rule against the staleness
// ceiling. Both windows are measured from now so a record with first == last
// is due again immediately on the next pass.
func retryDue(first, last, now time.Time) bool {
	age := now.Sub(first)
	if age > staleness {
		return false
	}
	return now.Sub(last) > age/4
}
