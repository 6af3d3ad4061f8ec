// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is layered with viper: built-in defaults, then an optional
// YAML file, then METAPICK_* environment variables, then command line
// flags bound by the CLI. [ReadConfigFile] loads an explicit file or looks
// for metapick.yaml in $HOME/.config/metapick and the working directory.
//
// Commonly used settings:
//
//   - METAPICK_DATA_DIR: directory for statistics, mappings, rules and the catalog (default: .)
//   - METAPICK_WORKERS: extraction worker count, 0 for automatic (default: 0)
//   - METAPICK_CACHE_TTL: statistics query cache lifetime (default: 300s)
//   - METAPICK_PARSER_TIMEOUT: timeout for each webpmux call (default: 10s)
//   - METAPICK_WEBPMUX: path to the webpmux binary (default: search PATH)
//   - METAPICK_CATALOG: keep the SQLite record catalog (default: true)
//   - METAPICK_LOG_LEVEL: debug, info, warn or error (default: info)
//   - METAPICK_LOG_FILE: rotating log file in addition to stderr
//   - METAPICK_PORT: HTTP port for the serve command (default: 8080)
//
// Durations accept Go syntax ("90s", "5m") or a bare number of seconds.
// Relative file names are resolved against the data directory.
//
// # Startup Logging
//
// The package prints a banner with build information, a configuration
// table and one section per initialized component, followed by the HTTP
// routes and endpoint summary when serving.
package startup
