// Package cli implements the megu command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/megu-dl/megu/internal/adapters/driven/config/file"
	"github.com/megu-dl/megu/internal/adapters/driven/download/httpdl"
	"github.com/megu-dl/megu/internal/adapters/driven/storage/sqlite"
	"github.com/megu-dl/megu/internal/core/ports/driven"
	"github.com/megu-dl/megu/internal/core/ports/driving"
	"github.com/megu-dl/megu/internal/core/services"
	"github.com/megu-dl/megu/internal/logger"
	"github.com/megu-dl/megu/internal/plugins/generic"
)

// version is overridden at build time via ldflags.
var version = "dev"

// Services used by the commands. Wired lazily by initServices so that
// metadata commands (version, help) never touch the filesystem; tests
// install fakes directly.
var (
	settingsStore *file.SettingsStore
	pluginCache   driven.PluginCache
	resolver      driving.PluginResolver
	pipeline      *services.Pipeline
)

var (
	verboseFlag bool
	configFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "megu",
	Short: "Download media content from the web",
	Long: `megu resolves URLs to site plugins, discovers the content they
point at, picks the best variant of each item, and downloads it with
checksum verification.

Sites without a dedicated plugin fall back to a plain HTTP download.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config directory (default ~/.megu)")
}

// Execute runs the root command.
func Execute() error {
	defer shutdown()
	return rootCmd.Execute()
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// initServices wires the pipeline from configuration. Idempotent;
// already-wired services (including test fakes) are left alone.
func initServices() error {
	if pipeline != nil {
		return nil
	}

	store, err := file.NewSettingsStore(configFlag)
	if err != nil {
		return err
	}
	settings := store.Settings()

	cache, err := sqlite.NewCache(settings.CacheDir)
	if err != nil {
		return err
	}

	downloader := httpdl.New(httpdl.Config{
		StagingDir:        settings.StagingDir,
		PoolSize:          settings.PoolSize,
		MaxAttempts:       settings.MaxAttempts,
		RetryBaseDelay:    settings.RetryBaseDelay.Std(),
		AttemptTimeout:    settings.AttemptTimeout.Std(),
		RequestsPerSecond: settings.RequestsPerSecond,
	})

	settingsStore = store
	pluginCache = cache
	resolver = services.NewPluginResolver(generic.New().WithCache(cache))
	pipeline = services.NewPipeline(resolver, downloader)
	return nil
}

// shutdown releases wired services.
func shutdown() {
	if pluginCache != nil {
		_ = pluginCache.Close()
		pluginCache = nil
	}
}
