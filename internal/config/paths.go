package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the default data directory for zerotrace.
// Windows: %LOCALAPPDATA%\zerotrace
// Linux/Mac: ~/.local/share/zerotrace
func DataDir() string {
	if dir := os.Getenv("ZEROTRACE_DATA_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "zerotrace")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "zerotrace")
}

// InstallDir returns the default directory the web UI bundle is unpacked into.
func InstallDir() string {
	return filepath.Join(DataDir(), "webui")
}

// CheckpointDir returns where model checkpoints live inside an install.
func CheckpointDir(installDir string) string {
	return filepath.Join(installDir, "models", "Stable-diffusion")
}

// LicensesFile returns the static license page shipped with the web UI.
func LicensesFile(installDir string) string {
	return filepath.Join(installDir, "html", "licenses.html")
}

// EnsureDirs creates the required directories if they don't exist.
func EnsureDirs(cfg *Config) error {
	dirs := []string{DataDir(), cfg.InstallDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
