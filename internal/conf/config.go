// config.go: This file contains the configuration for the Baseera application.
// It defines the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains settings common to all commands.
type MainSettings struct {
	Name string    // name of this node, used in logs
	Log  LogConfig // main log settings
}

// ModelSettings contains settings for the plate classification model.
type ModelSettings struct {
	Path       string // path to the TensorFlow Lite model file
	LabelPath  string // path to the class label file, one label per line
	InputSize  int    // width and height of the model input tensor
	Threads    int    // number of CPU threads for inference, 0 for all cores
	UseXNNPACK bool   // true to use XNNPACK delegate for inference acceleration
}

// StorageSettings contains settings for durable record and image storage.
type StorageSettings struct {
	DataDir string // base directory for the dataset file and uploaded images
}

// SQLiteSettings contains settings for the optional SQLite record mirror.
type SQLiteSettings struct {
	Enabled bool   // true to mirror records into a SQLite database
	Path    string // path to the SQLite database file
}

// OutputSettings contains settings for secondary record outputs.
type OutputSettings struct {
	SQLite SQLiteSettings // SQLite output settings
}

// DashboardSettings contains settings for the web dashboard.
type DashboardSettings struct {
	ChartsDir string // directory of pre-rendered chart images
	AssetsDir string // directory of static assets (logo, dish thumbnails)
}

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Enabled       bool              // true to enable the web dashboard
	Port          string            // port to listen on
	Debug         bool              // true to enable HTTP debug logging
	SessionSecret string            // secret for the session cookie store
	AnalyzeLimit  RateLimitSettings // rate limit for the analyze endpoint
	Log           LogConfig         // web server log settings
}

// RateLimitSettings bounds the request rate of an endpoint.
type RateLimitSettings struct {
	RPS   float64 // sustained requests per second
	Burst int     // momentary burst allowance
}

// DishConfig is one entry of the fixed dish catalog.
type DishConfig struct {
	ID    string // short key, used in URLs
	Name  string // display name
	Image string // thumbnail path, relative to the assets directory
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug mode

	Main      MainSettings
	Model     ModelSettings
	Storage   StorageSettings
	Output    OutputSettings
	Dashboard DashboardSettings
	WebServer WebServerSettings
	Dishes    []DishConfig
}

// DatasetPath returns the location of the JSON dataset file.
func (s *Settings) DatasetPath() string {
	return filepath.Join(s.Storage.DataDir, "dataset.json")
}

// ImagesDir returns the directory holding persisted uploaded images.
func (s *Settings) ImagesDir() string {
	return filepath.Join(s.Storage.DataDir, "images")
}

// settingsInstance is the settings loaded by Load, kept so SaveSettings can
// write the active configuration back out.
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the current instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// SaveSettings saves the current settings to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write the YAML data to a temporary file first to get an atomic replace.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Rename is atomic on most filesystems; fall back to copy & delete for
	// cross-device moves.
	if err := os.Rename(tempFileName, configPath); err != nil {
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}
