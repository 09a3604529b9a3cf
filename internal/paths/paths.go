package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	ConfigDir string
	DataDir   string
	StateDir  string
}

// GetPaths returns all base paths respecting environment variables
func GetPaths() Paths {
	return Paths{
		ConfigDir: getDir("ENASUB_CONFIG_HOME", "XDG_CONFIG_HOME", ".config", "enasub"),
		DataDir:   getDir("ENASUB_DATA_HOME", "XDG_DATA_HOME", ".local/share", "enasub"),
		StateDir:  getDir("ENASUB_STATE_HOME", "XDG_STATE_HOME", ".local/state", "enasub"),
	}
}

func getDir(appEnv, xdgEnv, defaultBase, appName string) string {
	if dir := os.Getenv(appEnv); dir != "" {
		return dir
	}

	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// GetLedgerPath returns the path to the run ledger database
func GetLedgerPath() string {
	if path := os.Getenv("ENASUB_LEDGER_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().StateDir, "ledger.db")
}

// GetConfigFile returns the default location of the YAML config file
func GetConfigFile() string {
	return filepath.Join(GetPaths().ConfigDir, "config.yaml")
}

// EnsureDirectories creates all necessary directories
func EnsureDirectories() error {
	p := GetPaths()
	for _, dir := range []string{p.ConfigDir, p.DataDir, p.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
