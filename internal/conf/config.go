// Package conf loads and provides access to the application settings.
// Settings come from config.yaml, environment variables and command line
// flags, merged through viper.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ConverterSettings controls the external sequence conversion tool.
type ConverterSettings struct {
	Command string        // conversion tool executable, e.g. python3
	Script  string        // path to the conversion script given as first argument
	Timeout time.Duration // maximum runtime for a single conversion
}

// MatcherSettings controls the species matching heuristic.
type MatcherSettings struct {
	ConfidenceFloor float64 // minimum confidence for an accepted match
	Seed            int64   // non-zero pins the scoring RNG for reproducible runs
}

// PipelineSettings controls sample pipeline dispatch.
type PipelineSettings struct {
	Workers     int  // admission limit for concurrently processing samples
	KeepUploads bool // true to keep original upload artifacts after processing
}

// StorageSettings holds filesystem locations for sample artifacts.
type StorageSettings struct {
	UploadPath    string // directory for uploaded sample files
	ProcessedPath string // directory for converted FASTA output
}

// SQLiteSettings holds SQLite database settings.
type SQLiteSettings struct {
	Enabled bool   // true to enable the SQLite backend
	Path    string // path to the database file
}

// MySQLSettings holds MySQL database settings.
type MySQLSettings struct {
	Enabled  bool // true to enable the MySQL backend
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// OutputSettings selects and configures the datastore backend.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// WebServerSettings configures the HTTP ingest API.
type WebServerSettings struct {
	Enabled bool
	Port    string
	Debug   bool // true to enable request logging
}

// MQTTSettings configures the optional MQTT mirror of pipeline events.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string // topic prefix for published events
	Username string
	Password string
}

// SpeciesSettings configures the species catalog.
type SpeciesSettings struct {
	SeedFile string // YAML catalog used by the species seed command
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug bool // true to enable debug log output

	Main struct {
		Name    string // node name for this instance
		LogFile string // pipeline log file path, empty disables file logging
	}

	Storage   StorageSettings
	Converter ConverterSettings
	Matcher   MatcherSettings
	Pipeline  PipelineSettings
	Species   SpeciesSettings
	Output    OutputSettings
	WebServer WebServerSettings
	MQTT      MQTTSettings
}

var (
	settingsInstance *Settings
	settingsOnce     sync.Once
)

// Load reads the configuration and returns the populated Settings.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

// initViper initializes viper with default values and reads the
// configuration file when one exists.
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

	viper.SetEnvPrefix("EDNA")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// Missing config file is fine, defaults apply.
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for
// config.yaml, in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "edna-go"))
	}

	return paths, nil
}

// Setting returns the loaded settings, loading them on first use.
func Setting() *Settings {
	settingsOnce.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	return settingsInstance
}
