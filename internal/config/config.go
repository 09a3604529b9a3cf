package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nishad/enasub/internal/paths"
	"gopkg.in/yaml.v3"
)

// Config represents the enasub configuration
type Config struct {
	SubmissionDir string         `yaml:"submission_dir"`
	LogsDir       string         `yaml:"logs_dir"`
	Table         TableConfig    `yaml:"table"`
	Assembly      AssemblyConfig `yaml:"assembly"`
	Reads         ReadsConfig    `yaml:"reads"`
	Staging       StagingConfig  `yaml:"staging"`
	Webin         WebinConfig    `yaml:"webin"`
	Ledger        LedgerConfig   `yaml:"ledger"`
}

// TableConfig controls how metadata tables are read
type TableConfig struct {
	ColumnCase   string `yaml:"column_case"`    // upper or lower
	NaNAsMissing bool   `yaml:"nan_as_missing"` // treat literal "nan" cells as empty
	CopyInput    bool   `yaml:"copy_input"`     // keep a copy of the table in the submission dir
}

// AssemblyConfig holds pipeline-wide defaults for genome rows
type AssemblyConfig struct {
	Table        string `yaml:"table"`          // default metadata table
	DefaultLevel string `yaml:"default_level"`  // used when ASSEMBLY_LEVEL is absent
	MinGapLength int    `yaml:"min_gap_length"` // 0 means unset
	GapThreshold int    `yaml:"gap_threshold"`  // N-run length for the contig-level warning
	LinkMode     string `yaml:"link_mode"`      // hard or symbolic
}

// ReadsConfig holds settings for raw-read rows
type ReadsConfig struct {
	Table    string `yaml:"table"`
	LinkMode string `yaml:"link_mode"`
}

// StagingConfig sizes the streaming copy/compress buffers
type StagingConfig struct {
	BufferSize       int `yaml:"buffer_size"`       // bytes
	CompressionLevel int `yaml:"compression_level"` // gzip 1-9
}

// WebinConfig describes the external submission client
type WebinConfig struct {
	Jar         string `yaml:"jar"`
	Java        string `yaml:"java"`
	Credentials string `yaml:"credentials"`
	Live        bool   `yaml:"live"`
}

// LedgerConfig contains run ledger settings
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SubmissionDir: "submission",
		LogsDir:       "logs",
		Table: TableConfig{
			ColumnCase:   "upper",
			NaNAsMissing: true,
			CopyInput:    true,
		},
		Assembly: AssemblyConfig{
			DefaultLevel: "chromosome",
			MinGapLength: 0,
			GapThreshold: 10,
			LinkMode:     "symbolic",
		},
		Reads: ReadsConfig{
			LinkMode: "hard",
		},
		Staging: StagingConfig{
			BufferSize:       1 << 20, // 1 MiB
			CompressionLevel: 6,
		},
		Webin: WebinConfig{
			Java:        "java",
			Credentials: "credentials.txt",
			Live:        false,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    paths.GetLedgerPath(),
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.SubmissionDir = expandPath(config.SubmissionDir)
	config.LogsDir = expandPath(config.LogsDir)
	config.Assembly.Table = expandPath(config.Assembly.Table)
	config.Reads.Table = expandPath(config.Reads.Table)
	config.Webin.Jar = expandPath(config.Webin.Jar)
	config.Webin.Credentials = expandPath(config.Webin.Credentials)
	config.Ledger.Path = expandPath(config.Ledger.Path)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks enumerated and numeric settings
func (c *Config) Validate() error {
	switch strings.ToLower(c.Table.ColumnCase) {
	case "upper", "lower":
	default:
		return fmt.Errorf("table.column_case must be upper or lower, got %q", c.Table.ColumnCase)
	}
	for name, mode := range map[string]string{
		"assembly.link_mode": c.Assembly.LinkMode,
		"reads.link_mode":    c.Reads.LinkMode,
	} {
		switch strings.ToLower(mode) {
		case "hard", "symbolic":
		default:
			return fmt.Errorf("%s must be hard or symbolic, got %q", name, mode)
		}
	}
	if c.Assembly.MinGapLength < 0 {
		return fmt.Errorf("assembly.min_gap_length must not be negative")
	}
	if c.Assembly.GapThreshold < 1 {
		return fmt.Errorf("assembly.gap_threshold must be at least 1")
	}
	if c.Staging.CompressionLevel < 1 || c.Staging.CompressionLevel > 9 {
		return fmt.Errorf("staging.compression_level must be between 1 and 9, got %d", c.Staging.CompressionLevel)
	}
	if c.Staging.BufferSize < 4096 {
		return fmt.Errorf("staging.buffer_size must be at least 4096 bytes")
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if path := os.Getenv("ENASUB_CONFIG"); path != "" {
		return path
	}

	// A config.yaml next to the metadata tables wins, as with the old scripts.
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	return paths.GetConfigFile()
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}

	return path
}
