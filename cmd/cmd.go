package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlsciences/oaih/internal/pkg/config"
	"github.com/dlsciences/oaih/internal/pkg/log"
)

var cfg *config.Config

func prepareRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oaih",
		Short: "OAI-PMH harvester",
		Long: `oaih harvests metadata records from OAI-PMH data providers,
either as one-shot harvests or on recurring schedules with
incremental updates and rotating zip backups.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.BindFlags(cmd.Flags())
			if err := config.InitConfig(); err != nil {
				return fmt.Errorf("error initializing config: %w", err)
			}
			cfg = config.Get()

			return startLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Stop()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config-file", "", "path to the configuration file")
	rootCmd.PersistentFlags().String("data-dir", "data", "directory for persistent state (schedules, harvest log)")
	rootCmd.PersistentFlags().String("harvest-dir", "", "directory harvested records are written to (default: <data-dir>/harvests)")
	rootCmd.PersistentFlags().String("zip-dir", "", "directory zip backups are written to (default: <data-dir>/zips)")
	rootCmd.PersistentFlags().Duration("http-timeout", 0, "timeout for requests to data providers (0 = none)")
	rootCmd.PersistentFlags().Int("notify-every", 100, "log progress every N harvested records")
	rootCmd.PersistentFlags().String("log-level", "info", "stdout log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-stdout-log", false, "disable logging to stdout")
	rootCmd.PersistentFlags().String("log-file-dir", "", "directory for log files (empty disables file logging)")
	rootCmd.PersistentFlags().String("log-file-level", "info", "log file level")
	rootCmd.PersistentFlags().Bool("no-file-logging", false, "disable logging to a file")
	rootCmd.PersistentFlags().String("metrics-address", "", "address to serve Prometheus metrics on (empty disables)")

	rootCmd.AddCommand(newIdentifyCmd())
	rootCmd.AddCommand(newFormatsCmd())
	rootCmd.AddCommand(newHarvestCmd())
	rootCmd.AddCommand(newSchedulerCmd())

	return rootCmd
}

func startLogging() error {
	logCfg := &log.Config{
		StdoutEnabled: !cfg.NoStdoutLog,
		StdoutLevel:   log.ParseLevel(cfg.LogLevel),
	}
	if cfg.LogFileDir != "" && !cfg.NoFileLogging {
		logCfg.File = &log.FileConfig{
			Dir:    cfg.LogFileDir,
			Prefix: "oaih",
			Level:  log.ParseLevel(cfg.LogFileLevel),
		}
	}
	return log.Start(logCfg)
}

// Run parses the command line and executes the selected command.
func Run() error {
	return prepareRootCmd().Execute()
}
