package main

import (
	"fmt"
	"os"

	"github.com/nishad/enasub/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version info
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// Global flags
var (
	configPath string
	noColor    bool
	quiet      bool
	verbose    bool
	debug      bool
	noLedger   bool
)

// Loaded once per invocation in PersistentPreRunE.
var (
	cfg    *config.Config
	logger *zap.Logger
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "enasub",
	Short: "Package sample metadata tables into ENA submission bundles",
	Long: `enasub turns a spreadsheet or tab-delimited table describing samples,
genome assemblies or sequencing runs into one submission directory per
sample: a manifest.txt plus the staged, gzip-compressed data files it
names. The bundles can then be handed to Webin-CLI with 'enasub submit'.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Example: `  # Package genome assemblies
  enasub genome assemblies.xlsx

  # Package raw reads into a custom directory
  enasub reads runs.tsv --submission-dir reads_submission

  # Validate the packaged manifests against the test service
  enasub submit --context reads --submission-dir reads_submission

  # Review previous runs
  enasub history`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $ENASUB_CONFIG, ./config.yaml or the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&noLedger, "no-ledger", false, "Do not record runs in the ledger")

	rootCmd.AddCommand(genomeCmd)
	rootCmd.AddCommand(readsCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", configPath, err)
	}

	logger, err = newLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	printDebug("config: %s", configPath)
	return nil
}

// newLogger builds a console logger on stderr. Warnings always show;
// --verbose adds progress and --debug adds per-file detail.
func newLogger() (*zap.Logger, error) {
	level := zapcore.WarnLevel
	switch {
	case debug:
		level = zapcore.DebugLevel
	case verbose:
		level = zapcore.InfoLevel
	case quiet:
		level = zapcore.ErrorLevel
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	zc.DisableCaller = !debug
	zc.EncoderConfig.TimeKey = ""
	if !colorEnabled(os.Stderr) {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zc.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
