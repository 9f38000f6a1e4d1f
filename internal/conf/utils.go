// utils.go: helpers for config file locations and atomic file moves.
package conf

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultConfigPaths returns a list of directories to search for the
// config file, in priority order. The first entry is where a default config
// is created when none exists.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			paths = append(paths, filepath.Join(appData, "baseera-go"))
		} else {
			paths = append(paths, filepath.Join(homeDir, "AppData", "Local", "baseera-go"))
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			paths = append(paths, filepath.Join(xdgConfig, "baseera-go"))
		} else {
			paths = append(paths, filepath.Join(homeDir, ".config", "baseera-go"))
		}
	}

	// Current working directory takes effect when a config.yaml sits next to
	// the binary, useful for development and container deployments.
	paths = append(paths, ".")

	return paths, nil
}

// FindConfigFile locates the active config file in the default paths.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range configPaths {
		configPath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	return "", fmt.Errorf("config.yaml not found in any of the default paths")
}

// GetBasePath expands a possibly relative directory to an absolute path and
// ensures the directory exists.
func GetBasePath(path string) string {
	basePath, err := filepath.Abs(path)
	if err != nil {
		log.Printf("Failed to get absolute path of %s: %v", path, err)
		basePath = path
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		log.Printf("Failed to create directory %s: %v", basePath, err)
	}
	return basePath
}

// moveFile copies src to dst and removes src, used when os.Rename fails
// across filesystems.
func moveFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// suitable for use as a session secret. The output is 43 characters long,
// providing 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Failed to generate random secret: %v", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
