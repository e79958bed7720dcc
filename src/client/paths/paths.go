// Package paths resolves the per-OS directories and files of the ocv
// command: XDG locations on Linux and macOS, AppData on Windows.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	projectOrg  = "oneclickvirt"
	projectName = "console"
)

// ConfigDir returns the config directory
// Linux: ~/.config/oneclickvirt/console/
// Windows: %APPDATA%\oneclickvirt\console\
func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), projectOrg, projectName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", projectOrg, projectName)
}

// DataDir returns the data directory, home of the persisted session
// Linux: ~/.local/share/oneclickvirt/console/
// Windows: %LOCALAPPDATA%\oneclickvirt\console\data\
func DataDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), projectOrg, projectName, "data")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", projectOrg, projectName)
}

// LogDir returns the log directory
// Linux: ~/.local/log/oneclickvirt/console/
// Windows: %LOCALAPPDATA%\oneclickvirt\console\log\
func LogDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), projectOrg, projectName, "log")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "log", projectOrg, projectName)
}

// ConfigFile returns the config file path
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "cli.yml")
}

// LogFile returns the log file path
func LogFile() string {
	return filepath.Join(LogDir(), "cli.log")
}

// SessionFile returns where the file session backend keeps its keys
func SessionFile() string {
	return filepath.Join(DataDir(), "session.yml")
}

// SessionDB returns where the sqlite session backend keeps its keys
func SessionDB() string {
	return filepath.Join(DataDir(), "session.db")
}

// EnsureDirs creates every directory with owner-only permissions.
// Called on startup before any file is touched.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), DataDir(), LogDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
		if err := os.Chmod(dir, 0700); err != nil {
			return fmt.Errorf("chmod dir %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureFile creates the parent directories of path
func EnsureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	return nil
}

// Expand replaces a leading ~ with the home directory
func Expand(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

// ResolveConfigPath resolves the --config flag. Empty means the default
// file, relative paths live in the config directory, and a missing
// extension becomes .yml unless a .yaml file exists.
func ResolveConfigPath(configFlag string) string {
	if configFlag == "" {
		return ConfigFile()
	}
	configFlag = Expand(configFlag)
	if !filepath.IsAbs(configFlag) {
		configFlag = filepath.Join(ConfigDir(), configFlag)
	}
	return addExtIfNeeded(configFlag)
}

func addExtIfNeeded(path string) string {
	if filepath.Ext(path) != "" {
		return path
	}
	for _, ext := range []string{".yml", ".yaml"} {
		if _, err := os.Stat(path + ext); err == nil {
			return path + ext
		}
	}
	return path + ".yml"
}
