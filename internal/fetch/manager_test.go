package fetch

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	calls int
	raw   []byte
	err   error
}

func (f *fakeDownloader) FetchReplay(ctx context.Context, uuid string) ([]byte, error) {
	f.calls++
	return f.raw, f.err
}

type attemptWindow struct {
	first, last time.Time
}

type fakeAttempts struct {
	records map[string]*attemptWindow
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{records: make(map[string]*attemptWindow)}
}

func (f *fakeAttempts) Attempt(uuid string) (time.Time, time.Time, bool, error) {
	w, ok := f.records[uuid]
	if !ok {
		return time.Time{}, time.Time{}, false, nil
	}
	return w.first, w.last, true, nil
}

func (f *fakeAttempts) CreateAttempt(uuid string, at time.Time) error {
	f.records[uuid] = &attemptWindow{first: at, last: at}
	return nil
}

func (f *fakeAttempts) TouchAttempt(uuid string, at time.Time) error {
	f.records[uuid].last = at
	return nil
}

func newTestManager(t *testing.T, dl *fakeDownloader, attempts *fakeAttempts) *Manager {
	t.Helper()
	m := NewManager(dl, attempts, t.TempDir(), zerolog.Nop())
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	return m
}

func TestEnsureDownloaded_Success(t *testing.T) {
	dl := &fakeDownloader{raw: []byte("replay data")}
	attempts := newFakeAttempts()
	m := newTestManager(t, dl, attempts)

	fetched, err := m.EnsureDownloaded(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, fetched)

	data, err := os.ReadFile(m.ReplayPath("u1"))
	require.NoError(t, err)
	assert.Equal(t, "replay data", string(data))
	assert.Empty(t, attempts.records, "success never creates an attempt record")
}

func TestEnsureDownloaded_AlreadyOnDisk(t *testing.T) {
	dl := &fakeDownloader{raw: []byte("replay data")}
	m := newTestManager(t, dl, newFakeAttempts())

	require.NoError(t, os.WriteFile(m.ReplayPath("u1"), []byte("old"), 0o644))

	fetched, err := m.EnsureDownloaded(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Zero(t, dl.calls)
}

func TestEnsureDownloaded_RecoverableFailureRecorded(t *testing.T) {
	dl := &fakeDownloader{err: ErrRateLimited}
	attempts := newFakeAttempts()
	m := newTestManager(t, dl, attempts)

	fetched, err := m.EnsureDownloaded(context.Background(), "u1")
	require.NoError(t, err, "recoverable failure is swallowed")
	assert.False(t, fetched)

	w := attempts.records["u1"]
	require.NotNil(t, w)
	assert.Equal(t, m.now(), w.first)
	assert.Equal(t, m.now(), w.last)
}

func TestEnsureDownloaded_RepeatFailureTouchesLast(t *testing.T) {
	dl := &fakeDownloader{err: ErrAmbiguous}
	attempts := newFakeAttempts()
	m := newTestManager(t, dl, attempts)

	now := m.now()
	attempts.records["u1"] = &attemptWindow{
		first: now.Add(-2 * time.Hour),
		last:  now.Add(-1 * time.Hour),
	}

	_, err := m.EnsureDownloaded(context.Background(), "u1")
	require.NoError(t, err)

	w := attempts.records["u1"]
	assert.Equal(t, now.Add(-2*time.Hour), w.first, "first attempt never moves")
	assert.Equal(t, now, w.last)
}

func TestEnsureDownloaded_NotDueYet(t *testing.T) {
	dl := &fakeDownloader{raw: []byte("replay data")}
	attempts := newFakeAttempts()
	m := newTestManager(t, dl, attempts)

	// age 2h, quarter 30m, last attempt 10m ago
	now := m.now()
	attempts.records["u1"] = &attemptWindow{
		first: now.Add(-2 * time.Hour),
		last:  now.Add(-10 * time.Minute),
	}

	fetched, err := m.EnsureDownloaded(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Zero(t, dl.calls)
}

func TestEnsureDownloaded_Stale(t *testing.T) {
	dl := &fakeDownloader{raw: []byte("replay data")}
	attempts := newFakeAttempts()
	m := newTestManager(t, dl, attempts)

	now := m.now()
	attempts.records["u1"] = &attemptWindow{
		first: now.Add(-25 * time.Hour),
		last:  now.Add(-20 * time.Hour),
	}

	fetched, err := m.EnsureDownloaded(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Zero(t, dl.calls, "stale replays are abandoned")
}

func TestEnsureDownloaded_TransportFailure(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("connection refused")}
	attempts := newFakeAttempts()
	m := newTestManager(t, dl, attempts)

	_, err := m.EnsureDownloaded(context.Background(), "u1")
	require.Error(t, err)
	assert.Empty(t, attempts.records, "transport failures do not consume the retry window")
}

func TestRetryDue(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cases := []struct {
		name        string
		first, last time.Duration // age before now
		want        bool
	}{
		{"fresh record, retried immediately", time.Second, time.Second, true},
		{"recently retried", 2 * time.Hour, 10 * time.Minute, false},
		{"quarter age elapsed", 2 * time.Hour, 40 * time.Minute, true},
		{"exactly at quarter age", 2 * time.Hour, 30 * time.Minute, false},
		{"stale", 25 * time.Hour, 20 * time.Hour, false},
		{"just inside ceiling", 23 * time.Hour, 10 * time.Hour, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := retryDue(now.Add(-tc.first), now.Add(-tc.last), now)
			assert.Equal(t, tc.want, got)
		})
	}
}
