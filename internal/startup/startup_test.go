package startup

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metapick/internal/stats"
)

func TestGetBuildInfo(t *testing.T) {
	t.Parallel()

	info := GetBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
	assert.Equal(t, GoVersion, info.GoVersion)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(NewViper())
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, wd, cfg.DataDir)
	assert.Zero(t, cfg.Workers)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.ParserTimeout)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.Catalog)
	assert.True(t, cfg.MetricsEnabled)
	assert.Zero(t, cfg.ExtractInterval)
	assert.Equal(t, filepath.Join(wd, stats.StatisticsFile), cfg.StatisticsPath)
	assert.Equal(t, filepath.Join(wd, stats.MappingsFile), cfg.MappingsPath)
	assert.Equal(t, filepath.Join(wd, "metapick.db"), cfg.DatabasePath)
}

func TestLoadConfigEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("METAPICK_DATA_DIR", dir)
	t.Setenv("METAPICK_WORKERS", "4")
	t.Setenv("METAPICK_CACHE_TTL", "60")
	t.Setenv("METAPICK_PARSER_TIMEOUT", "2s")
	t.Setenv("METAPICK_WEBPMUX", "/opt/webpmux")
	t.Setenv("METAPICK_CATALOG", "false")

	cfg, err := LoadConfig(NewViper())
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.ParserTimeout)
	assert.Equal(t, "/opt/webpmux", cfg.WebPMux)
	assert.False(t, cfg.Catalog)
	assert.Equal(t, filepath.Join(dir, stats.StatisticsFile), cfg.StatisticsPath)
}

func TestReadConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	path := filepath.Join(dir, "custom.yaml")
	content := "data_dir: " + dataDir + "\n" +
		"similar_threshold: 0.6\n" +
		"suggest_min_count: 2\n" +
		"extract_interval: 15m\n" +
		"rules_file: /etc/metapick/rules.json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := NewViper()
	require.NoError(t, ReadConfigFile(v, path))

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.InDelta(t, 0.6, cfg.SimilarThreshold, 1e-9)
	assert.Equal(t, 2, cfg.SuggestMinCount)
	assert.Equal(t, 15*time.Minute, cfg.ExtractInterval)
	assert.Equal(t, "/etc/metapick/rules.json", cfg.RulesPath, "absolute names are kept")
	assert.Equal(t, filepath.Join(dataDir, "tag_blacklist.json"), cfg.BlacklistPath)
}

func TestReadConfigFileMissing(t *testing.T) {
	t.Parallel()

	err := ReadConfigFile(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"negative workers", KeyWorkers, -1},
		{"threshold above one", KeySimilarThreshold, 1.5},
		{"zero suggest threshold", KeySuggestThreshold, 0.0},
		{"zero min count", KeySuggestMinCount, 0},
		{"zero parser timeout", KeyParserTimeout, "0s"},
		{"unknown log level", KeyLogLevel, "chatty"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := NewViper()
			v.Set(tt.key, tt.value)
			_, err := LoadConfig(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestDurationSetting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Hour},
		{"90", 90 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"5m", 5 * time.Minute},
		{"not a duration", time.Hour},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()

			v := NewViper()
			v.Set("some_duration", tt.value)
			assert.Equal(t, tt.want, durationSetting(v, "some_duration", time.Hour))
		})
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	v := NewViper()
	v.Set(KeyDataDir, t.TempDir())
	v.Set(KeyCacheTTL, "30s")
	v.Set(KeyParserTimeout, "3s")
	v.Set(KeyLogFile, "/var/log/metapick.log")
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	so := cfg.StatsOptions()
	assert.Equal(t, cfg.StatisticsPath, so.Path)
	assert.Equal(t, cfg.MappingsPath, so.MappingsPath)
	assert.Equal(t, 30*time.Second, so.CacheTTL)
	assert.InDelta(t, 0.8, so.Consolidate.Threshold, 1e-9)
	assert.Equal(t, 5, so.Consolidate.MinCount)

	lo := cfg.LoaderOptions()
	assert.Equal(t, 3*time.Second, lo.ToolTimeout)
	assert.NotEmpty(t, lo.WebPMuxCandidates)

	logOpts := cfg.LoggingOptions()
	assert.Equal(t, "/var/log/metapick.log", logOpts.FilePath)
	assert.Equal(t, 10, logOpts.MaxSizeMB)

	assert.NotPanics(t, cfg.Log)
}

func TestPrepareDataDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "data")
	require.NoError(t, PrepareDataDir(&Config{DataDir: dir}))
	assert.DirExists(t, dir)
	assert.NoFileExists(t, filepath.Join(dir, ".write-test"))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, PrepareDataDir(&Config{DataDir: file}))
}

func TestGetRouteGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path, want string
	}{
		{"/api/tags/{category}", "api/tags"},
		{"/api/summary", "api/summary"},
		{"/health", "health"},
		{"/metrics", "metrics"},
		{"/", ""},
	}

	for _, tt := range tests {

		tt := tt
		assert.Equal(t, tt.want, getRouteGroup(tt.path), tt.path)
	}
}

func TestGetRoutes(t *testing.T) {
	t.Parallel()

	noop := func(http.ResponseWriter, *http.Request) {}
	r := mux.NewRouter()
	r.HandleFunc("/api/summary", noop).Methods(http.MethodGet).Name("summary")
	r.HandleFunc("/health", noop)

	routes, err := GetRoutes(r)
	require.NoError(t, err)
	assert.Equal(t, []RouteInfo{
		{Method: http.MethodGet, Path: "/api/summary", Name: "summary"},
		{Method: "*", Path: "/health"},
	}, routes)

	assert.NotPanics(t, func() { LogHTTPRoutes(r, true) })
}

func TestShutdownStep(t *testing.T) {
	t.Parallel()

	ran := 0
	ShutdownStep("ok", func() error { ran++; return nil })
	ShutdownStep("failing", func() error { ran++; return errors.New("boom") })
	assert.Equal(t, 2, ran)
}

func TestLogServerStarted(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		LogServerStarted(ServerConfig{Port: "8080"})
		LogServerStarted(ServerConfig{Port: "8080", Roots: []string{"/img"}, ExtractInterval: time.Hour})
	})
}

func TestLogBanner(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, LogBanner)
}

func TestLogDatabaseInit(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		LogDatabaseInit(time.Millisecond, time.Time{})
		LogDatabaseInit(time.Millisecond, time.Now().Add(-time.Hour))
	})
}
