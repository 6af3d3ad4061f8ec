package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"metapick/internal/filesystem"
	"metapick/internal/logging"
	"metapick/internal/metrics"
	"metapick/internal/startup"
	"metapick/internal/stats"
)

// app carries the configuration shared by every subcommand. It is filled
// in by the root command's PersistentPreRunE.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *startup.Config
}

// NewRootCommand creates the metapick command tree with its own viper
// instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: startup.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "metapick",
		Short: "AI image generation metadata extractor",
		Long: `metapick reads generation parameters embedded in AI generated images
(Automatic1111, ComfyUI, NovelAI and others), keeps statistics about
models, prompt tags, sizes and samplers, and helps clean those
statistics up.`,
		SilenceUsage: true,
	}

	setupFlags(rootCmd, a)

	versionCmd := versionCommand()
	subcommands := []*cobra.Command{
		extractCommand(a),
		statsCommand(a),
		exportCommand(a),
		clearCommand(a),
		consolidateCommand(a),
		suggestCommand(a),
		fixCommand(a),
		removeTagCommand(a),
		moveTagsCommand(a),
		removeModelCommand(a),
		modelsCommand(a),
		renameCommand(a),
		serveCommand(a),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return a.initialize()
	}
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return logging.Close()
	}

	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// setupFlags defines the global flags and binds them to configuration keys.
func setupFlags(rootCmd *cobra.Command, a *app) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/metapick/metapick.yaml)")
	flags.String("data-dir", ".", "directory holding statistics, mappings and the catalog")
	flags.Int("workers", 0, "extraction workers (0 = automatic)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "also write logs to this rotating file")
	flags.String("webpmux", "", "path to the webpmux binary")
	flags.String("parser-timeout", "10s", "timeout for external metadata tools")
	flags.Bool("catalog", true, "keep extracted records in the SQLite catalog")

	bindFlag(a.v, flags.Lookup("data-dir"), startup.KeyDataDir)
	bindFlag(a.v, flags.Lookup("workers"), startup.KeyWorkers)
	bindFlag(a.v, flags.Lookup("log-level"), startup.KeyLogLevel)
	bindFlag(a.v, flags.Lookup("log-file"), startup.KeyLogFile)
	bindFlag(a.v, flags.Lookup("webpmux"), startup.KeyWebPMux)
	bindFlag(a.v, flags.Lookup("parser-timeout"), startup.KeyParserTimeout)
	bindFlag(a.v, flags.Lookup("catalog"), startup.KeyCatalog)
}

// initialize loads the configuration and prepares logging and the data
// directory before a subcommand runs.
func (a *app) initialize() error {
	if err := startup.ReadConfigFile(a.v, a.cfgFile); err != nil {
		return err
	}

	cfg, err := startup.LoadConfig(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logging.Configure(cfg.LoggingOptions()); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	cfg.Log()

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	a.configureVolumes(nil)

	return startup.PrepareDataDir(cfg)
}

// configureVolumes labels filesystem metrics by volume: the data directory
// and, when given, the first image root.
func (a *app) configureVolumes(roots []string) {
	volumes := map[string]string{"data": a.cfg.DataDir}
	if len(roots) > 0 {
		volumes["images"] = roots[0]
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes))
}

// openStore creates the statistics store and loads its files.
func (a *app) openStore() (*stats.Store, error) {
	store := stats.New(a.cfg.StatsOptions())
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}
	return store, nil
}

// persist saves the store after a mutating command.
func persist(store *stats.Store) error {
	if err := store.Persist(); err != nil {
		return fmt.Errorf("failed to save statistics: %w", err)
	}
	return nil
}
