package filesystem

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, config.InitialBackoff)
	assert.Equal(t, 500*time.Millisecond, config.MaxBackoff)
	assert.Nil(t, config.VolumeResolver)
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNFSStaleError(tt.err))
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"images": "/srv/images",
		"data":   "/var/lib/metapick",
		"empty":  "",
	})
	require.Len(t, vr.mounts, 2)

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "images root", path: "/srv/images", want: "images"},
		{name: "image file", path: "/srv/images/2024/a.png", want: "images"},
		{name: "statistics file", path: "/var/lib/metapick/statistics.json", want: "data"},
		{name: "sibling prefix", path: "/srv/images-old/a.png", want: "unknown"},
		{name: "unknown path", path: "/etc/hosts", want: "unknown"},
		{name: "root path", path: "/", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, vr.Resolve(tt.path))
		})
	}
}

func TestVolumeResolver_LongestPrefixWins(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"data":    "/data",
		"catalog": "/data/catalog",
	})

	assert.Equal(t, "catalog", vr.Resolve("/data/catalog/metapick.db"))
	assert.Equal(t, "data", vr.Resolve("/data/statistics.json"))
}

func TestVolumeResolver_Nil(t *testing.T) {
	var vr *VolumeResolver
	assert.Equal(t, "unknown", vr.Resolve("/anything"))
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	info, err := StatWithRetry(path, DefaultRetryConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())

	_, err = StatWithRetry(filepath.Join(dir, "missing.png"), DefaultRetryConfig())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenAndReadWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0o600))

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := ReadFileWithRetry(path, DefaultRetryConfig())
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	_, err = ReadFileWithRetry(filepath.Join(dir, "nope"), DefaultRetryConfig())
	assert.Error(t, err)
}

type recordingObserver struct {
	mu       sync.Mutex
	ops      []string
	attempts int
	stale    int
	failures int
	success  int
}

func (r *recordingObserver) ObserveOperation(_, operation string, _ float64, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, operation)
}

func (r *recordingObserver) ObserveRetryAttempt(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

func (r *recordingObserver) ObserveRetrySuccess(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
}

func (r *recordingObserver) ObserveRetryFailure(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingObserver) ObserveRetryDuration(_, _ string, _ float64) {}

func (r *recordingObserver) ObserveStaleError(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

// Tests below swap the package observer and must not run in parallel.

func TestWithRetry_StaleThenSuccess(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	calls := 0
	cfg := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	v, err := withRetry("stat", "/tmp/x", cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, obs.stale)
	assert.Equal(t, 2, obs.attempts)
	assert.Equal(t, 1, obs.success)
	assert.Equal(t, []string{"stat"}, obs.ops)
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	calls := 0
	cfg := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	_, err := withRetry("open", "/tmp/x", cfg, func() (string, error) {
		calls++
		return "", syscall.ESTALE
	})

	assert.ErrorIs(t, err, syscall.ESTALE)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, obs.failures)
	assert.Equal(t, 3, obs.stale)
	assert.Equal(t, 2, obs.attempts)
}

func TestWithRetry_NonStaleReturnsImmediately(t *testing.T) {
	calls := 0
	_, err := withRetry("read", "/tmp/x", DefaultRetryConfig(), func() ([]byte, error) {
		calls++
		return nil, os.ErrPermission
	})

	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, 1, calls)
}
