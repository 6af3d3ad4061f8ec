package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"metapick/internal/logging"
	"metapick/internal/rawmeta"
	"metapick/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const rule = "------------------------------------------------------------"

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo describes one method of a registered route.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// section starts a titled block of startup output.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

// PrepareDataDir creates the data directory and checks that it is
// writable. Statistics and mapping files cannot be saved otherwise.
func PrepareDataDir(cfg *Config) error {
	logging.Debug("  Preparing data directory %s", cfg.DataDir)

	info, err := os.Stat(cfg.DataDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("data directory error: failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created %s", cfg.DataDir)
	case err != nil:
		return fmt.Errorf("data directory error: %w", err)
	case !info.IsDir():
		return fmt.Errorf("data directory error: %s is not a directory", cfg.DataDir)
	}

	probe, err := os.CreateTemp(cfg.DataDir, ".write-test-*")
	if err != nil {
		return fmt.Errorf("data directory is not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", name, err)
	}
	logging.Debug("    [OK] Data directory is writable")
	return nil
}

// LogBanner prints the banner and system information.
func LogBanner() {
	fmt.Println(rule)
	fmt.Println("  metapick: AI image generation metadata")
	fmt.Println(rule)
	logging.Info("  Version:    %s (commit %s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))

	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs:            %d (GOMAXPROCS %d)", runtime.NumCPU(), runtime.GOMAXPROCS(0))
	logging.Info("  Default workers: %d", workers.ForIO(0))
	if wd, err := os.Getwd(); err == nil {
		logging.Debug("  Working dir:     %s", wd)
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs catalog initialization and the completion time of
// the last recorded run. A zero lastRun means no run has completed yet.
func LogDatabaseInit(duration time.Duration, lastRun time.Time) {
	section("CATALOG INITIALIZATION")
	logging.Info("  [OK] Catalog database initialized in %v", duration)
	if lastRun.IsZero() {
		logging.Info("  Last run:        never")
		return
	}
	logging.Info("  Last run:        %s (%v ago)", lastRun.Format(time.RFC1123), time.Since(lastRun).Round(time.Second))
}

// LogExtractorInit logs loader initialization and checks for webpmux.
func LogExtractorInit(opts rawmeta.Options) {
	section("EXTRACTOR INITIALIZATION")
	logging.Info("  Parser timeout:  %v", opts.ToolTimeout)

	path, version, err := probeWebPMux(opts)
	if err != nil {
		logging.Warn("  webpmux check failed: %v", err)
		logging.Warn("  WebP metadata will be read with the built-in chunk reader only")
		return
	}
	logging.Info("  [OK] webpmux %s (%s)", version, path)
}

// LogStatisticsLoaded logs the statistics file load.
func LogStatisticsLoaded(path string, images int, duration time.Duration) {
	section("STATISTICS")
	logging.Info("  [OK] Loaded %d processed images from %s in %v", images, path, duration)
}

// GetRoutes lists every method of every route registered on router.
// Routes without a method matcher are reported with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the route table grouped by API area. The full table is
// only written at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		g := getRouteGroup(route.Path)
		groups[g] = append(groups[g], route)
	}
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)

	logging.Info("  %d routes in %d groups", len(routes), len(groups))
	if logging.IsDebugEnabled() {
		for _, g := range names {
			label := g
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, route := range groups[g] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set METAPICK_LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup returns the first path segment, or the first two for /api
// routes.
func getRouteGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if parts[0] == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}
	return parts[0]
}

// ServerConfig holds the values reported once the server is listening.
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	Roots           []string
	ExtractInterval time.Duration
	StartupDuration time.Duration
}

// LogServerStarted logs the endpoints and background extraction settings.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  API:             http://0.0.0.0:%s/api/summary", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("  Metrics:         %s", enabledString(false))
	}

	switch {
	case len(config.Roots) == 0:
		logging.Info("  Extraction:      none (serving stored statistics)")
	case config.ExtractInterval > 0:
		logging.Info("  Extraction:      %s every %v", strings.Join(config.Roots, ", "), config.ExtractInterval)
	default:
		logging.Info("  Extraction:      %s once at startup", strings.Join(config.Roots, ", "))
	}

	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// ShutdownStep runs one shutdown step and logs its outcome and duration.
func ShutdownStep(name string, fn func() error) {
	logging.Debug("  %s...", name)
	start := time.Now()
	if err := fn(); err != nil {
		logging.Warn("  [FAILED] %s: %v", name, err)
		return
	}
	logging.Info("  [OK] %s (%v)", name, time.Since(start).Round(time.Millisecond))
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// probeWebPMux finds the webpmux binary and asks it for its version.
func probeWebPMux(opts rawmeta.Options) (path, version string, err error) {
	candidates := opts.WebPMuxCandidates
	if opts.WebPMux != "" {
		candidates = []string{opts.WebPMux}
	}

	for _, c := range candidates {
		if p, lookErr := exec.LookPath(c); lookErr == nil {
			path = p
			break
		}
	}
	if path == "" {
		return "", "", fmt.Errorf("webpmux not found (tried %s)", strings.Join(candidates, ", "))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ToolTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return path, "", fmt.Errorf("failed to get webpmux version: %w", err)
	}
	return path, strings.TrimSpace(string(output)), nil
}
