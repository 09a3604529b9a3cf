package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/nishad/enasub/internal/config"
	"github.com/nishad/enasub/internal/paths"
	"github.com/nishad/enasub/internal/webin"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create enasub configuration",
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the files and directories enasub uses",
	Long: `List the configuration file, ledger, submission and log directories, and
the submission client files, with their environment overrides and whether
they exist.`,
	Args: cobra.NoArgs,
	RunE: runConfigPaths,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Long: `Write the default configuration to the file named by --config, or to
the user configuration directory when --config is not given.`,
	Example: `  enasub config init
  enasub --config ./enasub.yaml config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and submission client settings",
	Long: `Validate the configuration values, then confirm the Webin-CLI jar can be
located and the credentials file holds a username and password.`,
	Args: cobra.NoArgs,
	RunE: runConfigCheck,
}

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Replace an existing file")

	configCmd.AddCommand(configPathsCmd, configShowCmd, configInitCmd, configCheckCmd)
}

type pathEntry struct {
	label string
	path  string
	env   string
}

func runConfigPaths(cmd *cobra.Command, args []string) error {
	dirs := paths.GetPaths()
	entries := []pathEntry{
		{"config file", configPath, "ENASUB_CONFIG"},
		{"config dir", dirs.ConfigDir, "ENASUB_CONFIG_HOME"},
		{"data dir", dirs.DataDir, "ENASUB_DATA_HOME"},
		{"state dir", dirs.StateDir, "ENASUB_STATE_HOME"},
		{"ledger", cfg.Ledger.Path, "ENASUB_LEDGER_PATH"},
		{"submissions", cfg.SubmissionDir, ""},
		{"client logs", cfg.LogsDir, ""},
		{"webin jar", cfg.Webin.Jar, ""},
		{"credentials", cfg.Webin.Credentials, ""},
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATH\tSTATUS\tOVERRIDE")
	for _, e := range entries {
		override := "-"
		if e.env != "" && os.Getenv(e.env) != "" {
			override = e.env
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.label, orDash(e.path), pathStatus(e.path), override)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !cfg.Ledger.Enabled || noLedger {
		fmt.Println()
		printInfo("Run ledger is disabled")
	}
	return nil
}

func pathStatus(path string) string {
	if path == "" {
		return "unset"
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return "missing"
	case info.IsDir():
		return "dir"
	default:
		return "file"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err != nil {
		fmt.Printf("# %s not found; showing defaults\n", configPath)
	} else {
		fmt.Printf("# %s\n", configPath)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	target := paths.GetConfigFile()
	if cmd.Flags().Changed("config") {
		target = configPath
	}

	if _, err := os.Stat(target); err == nil && !configForce {
		return fmt.Errorf("%s already exists; pass --force to replace it", target)
	}

	if err := config.DefaultConfig().Save(target); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	printSuccess("Wrote default configuration to %s", target)
	return nil
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	problems := 0
	report := func(name string, err error) {
		if err != nil {
			problems++
			printError("%s: %v", name, err)
			return
		}
		printSuccess("%s", name)
	}

	report("configuration values", cfg.Validate())

	jar, err := webin.FindJar(cfg.Webin.Jar, ".")
	report("webin-cli jar", err)
	if err == nil && verbose {
		printInfo("  using %s", jar)
	}

	_, err = webin.LoadCredentials(cfg.Webin.Credentials)
	report("credentials", err)

	if problems > 0 {
		return fmt.Errorf("%d configuration problem(s) found", problems)
	}
	return nil
}
