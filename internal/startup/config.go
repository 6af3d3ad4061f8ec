package startup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"metapick/internal/logging"
	"metapick/internal/rawmeta"
	"metapick/internal/stats"
)

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "METAPICK"

// Configuration keys. Each key can be set in the config file, as
// METAPICK_<KEY> in the environment, or through a bound flag.
const (
	KeyDataDir          = "data_dir"
	KeyStatisticsFile   = "statistics_file"
	KeyMappingsFile     = "mappings_file"
	KeyRulesFile        = "rules_file"
	KeyBlacklistFile    = "blacklist_file"
	KeyDatabaseFile     = "database_file"
	KeyCatalog          = "catalog"
	KeyWorkers          = "workers"
	KeyCacheTTL         = "cache_ttl"
	KeyParserTimeout    = "parser_timeout"
	KeyMaxFileSize      = "max_file_size"
	KeyWebPMux          = "webpmux"
	KeySimilarThreshold = "similar_threshold"
	KeySuggestThreshold = "suggest_threshold"
	KeySuggestMinCount  = "suggest_min_count"
	KeyLogLevel         = "log_level"
	KeyLogFile          = "log_file"
	KeyLogMaxSize       = "log_max_size"
	KeyLogMaxBackups    = "log_max_backups"
	KeyLogMaxAge        = "log_max_age"
	KeyLogCompress      = "log_compress"
	KeyPort             = "port"
	KeyMetricsEnabled   = "metrics_enabled"
	KeyLogHealthChecks  = "log_health_checks"
	KeyExtractInterval  = "extract_interval"
)

// ConfigName is the config file base name searched for when no file is
// given explicitly.
const ConfigName = "metapick"

// Config holds all application configuration
type Config struct {
	ConfigFile string

	DataDir string
	Catalog bool

	Workers          int
	CacheTTL         time.Duration
	ParserTimeout    time.Duration
	MaxFileSize      int64
	WebPMux          string
	SimilarThreshold float64
	SuggestThreshold float64
	SuggestMinCount  int

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool

	Port            string
	MetricsEnabled  bool
	LogHealthChecks bool
	ExtractInterval time.Duration

	// Derived paths
	StatisticsPath string
	MappingsPath   string
	RulesPath      string
	BlacklistPath  string
	DatabasePath   string
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, ".")
	v.SetDefault(KeyStatisticsFile, stats.StatisticsFile)
	v.SetDefault(KeyMappingsFile, stats.MappingsFile)
	v.SetDefault(KeyRulesFile, "tag_consolidation_rules.json")
	v.SetDefault(KeyBlacklistFile, "tag_blacklist.json")
	v.SetDefault(KeyDatabaseFile, "metapick.db")
	v.SetDefault(KeyCatalog, true)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyCacheTTL, "300s")
	v.SetDefault(KeyParserTimeout, "10s")
	v.SetDefault(KeyMaxFileSize, int64(rawmeta.DefaultMaxFileSize))
	v.SetDefault(KeyWebPMux, "")
	v.SetDefault(KeySimilarThreshold, 0.7)
	v.SetDefault(KeySuggestThreshold, 0.8)
	v.SetDefault(KeySuggestMinCount, 5)
	v.SetDefault(KeyLogLevel, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSize, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAge, 28)
	v.SetDefault(KeyLogCompress, false)
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyLogHealthChecks, false)
	v.SetDefault(KeyExtractInterval, "0s")
}

// ReadConfigFile loads path, or searches for metapick.yaml in
// $HOME/.config/metapick and the working directory when path is empty. A
// missing file is only an error when path was given explicitly.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/metapick")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// LoadConfig builds the configuration from v and resolves derived paths.
func LoadConfig(v *viper.Viper) (*Config, error) {
	dataDir, err := filepath.Abs(v.GetString(KeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		ConfigFile:       v.ConfigFileUsed(),
		DataDir:          dataDir,
		Catalog:          v.GetBool(KeyCatalog),
		Workers:          v.GetInt(KeyWorkers),
		CacheTTL:         durationSetting(v, KeyCacheTTL, 300*time.Second),
		ParserTimeout:    durationSetting(v, KeyParserTimeout, rawmeta.DefaultToolTimeout),
		MaxFileSize:      v.GetInt64(KeyMaxFileSize),
		WebPMux:          v.GetString(KeyWebPMux),
		SimilarThreshold: v.GetFloat64(KeySimilarThreshold),
		SuggestThreshold: v.GetFloat64(KeySuggestThreshold),
		SuggestMinCount:  v.GetInt(KeySuggestMinCount),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFile:          v.GetString(KeyLogFile),
		LogMaxSize:       v.GetInt(KeyLogMaxSize),
		LogMaxBackups:    v.GetInt(KeyLogMaxBackups),
		LogMaxAge:        v.GetInt(KeyLogMaxAge),
		LogCompress:      v.GetBool(KeyLogCompress),
		Port:             v.GetString(KeyPort),
		MetricsEnabled:   v.GetBool(KeyMetricsEnabled),
		LogHealthChecks:  v.GetBool(KeyLogHealthChecks),
		ExtractInterval:  durationSetting(v, KeyExtractInterval, 0),
	}

	cfg.StatisticsPath = resolvePath(dataDir, v.GetString(KeyStatisticsFile))
	cfg.MappingsPath = resolvePath(dataDir, v.GetString(KeyMappingsFile))
	cfg.RulesPath = resolvePath(dataDir, v.GetString(KeyRulesFile))
	cfg.BlacklistPath = resolvePath(dataDir, v.GetString(KeyBlacklistFile))
	cfg.DatabasePath = resolvePath(dataDir, v.GetString(KeyDatabaseFile))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %d", KeyWorkers, c.Workers))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %v", KeyCacheTTL, c.CacheTTL))
	}
	if c.ParserTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", KeyParserTimeout, c.ParserTimeout))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyMaxFileSize, c.MaxFileSize))
	}
	for key, v := range map[string]float64{
		KeySimilarThreshold: c.SimilarThreshold,
		KeySuggestThreshold: c.SuggestThreshold,
	} {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", key, v))
		}
	}
	if c.SuggestMinCount < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeySuggestMinCount, c.SuggestMinCount))
	}
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			errs = append(errs, fmt.Errorf("unknown %s %q", KeyLogLevel, c.LogLevel))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// StatsOptions returns the statistics store options.
func (c *Config) StatsOptions() stats.Options {
	opts := stats.DefaultOptions(c.DataDir)
	opts.Path = c.StatisticsPath
	opts.MappingsPath = c.MappingsPath
	opts.CacheTTL = c.CacheTTL
	opts.SimilarThreshold = c.SimilarThreshold
	opts.Consolidate.Threshold = c.SuggestThreshold
	opts.Consolidate.MinCount = c.SuggestMinCount
	return opts
}

// LoaderOptions returns the metadata loader options.
func (c *Config) LoaderOptions() rawmeta.Options {
	opts := rawmeta.DefaultOptions()
	opts.WebPMux = c.WebPMux
	opts.ToolTimeout = c.ParserTimeout
	opts.MaxFileSize = c.MaxFileSize
	return opts
}

// LoggingOptions returns the log output options.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.LogLevel,
		FilePath:   c.LogFile,
		MaxSizeMB:  c.LogMaxSize,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAge,
		Compress:   c.LogCompress,
	}
}

// Log writes the configuration table.
func (c *Config) Log() {
	section("CONFIGURATION")
	if c.ConfigFile != "" {
		logging.Info("  Config file:        %s", c.ConfigFile)
	} else {
		logging.Info("  Config file:        (none, using defaults and environment)")
	}
	logging.Info("  DATA_DIR:           %s", c.DataDir)
	logging.Info("  WORKERS:            %s", workersString(c.Workers))
	logging.Info("  CACHE_TTL:          %v", c.CacheTTL)
	logging.Info("  PARSER_TIMEOUT:     %v", c.ParserTimeout)
	logging.Info("  MAX_FILE_SIZE:      %d", c.MaxFileSize)
	logging.Info("  WEBPMUX:            %s", valueOr(c.WebPMux, "(search PATH)"))
	logging.Info("  SIMILAR_THRESHOLD:  %v", c.SimilarThreshold)
	logging.Info("  SUGGEST_THRESHOLD:  %v", c.SuggestThreshold)
	logging.Info("  SUGGEST_MIN_COUNT:  %d", c.SuggestMinCount)
	logging.Info("  CATALOG:            %s", enabledString(c.Catalog))
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())
	logging.Info("  LOG_FILE:           %s", valueOr(c.LogFile, "(stderr only)"))
	logging.Info("")
	logging.Info("  Files:")
	logging.Info("    Statistics:  %s", c.StatisticsPath)
	logging.Info("    Mappings:    %s", c.MappingsPath)
	logging.Info("    Rules:       %s", c.RulesPath)
	logging.Info("    Blacklist:   %s", c.BlacklistPath)
	if c.Catalog {
		logging.Info("    Catalog:     %s", c.DatabasePath)
	}
	logging.Info("")
}

// resolvePath joins relative names onto dataDir.
func resolvePath(dataDir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dataDir, name)
}

// durationSetting reads a duration. Bare numbers are seconds; invalid
// values fall back to def with a warning.
func durationSetting(v *viper.Viper, key string, def time.Duration) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, s, def)
		return def
	}
	return d
}

func workersString(n int) string {
	if n <= 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
