package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Gateway  GatewayConfig  `toml:"gateway"`
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Import   ImportConfig   `toml:"import"`
	Scanner  ScannerConfig  `toml:"scanner"`
	Player   PlayerConfig   `toml:"player"`
	Logging  LoggingConfig  `toml:"logging"`
}

// GatewayConfig selects and configures the record backend.
type GatewayConfig struct {
	Driver      string `toml:"driver"` // "pocketbase" or "sqlite"
	URL         string `toml:"url"`
	Email       string `toml:"email"`
	Password    string `toml:"password"`
	Timeout     int    `toml:"timeout_seconds"`
	SessionFile string `toml:"session_file"` // Where the CLI keeps the signed-in session
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StorageConfig is where the sqlite backend keeps uploaded files.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	PublicURL     string `toml:"public_url"`
	SessionSecret string `toml:"session_secret"`
	SessionHours  int    `toml:"session_hours"`
}

// ImportConfig tunes the import pipelines.
type ImportConfig struct {
	Workers       int     `toml:"workers"`
	RateLimit     float64 `toml:"rate_limit"`
	MaxDownloadMB int     `toml:"max_download_mb"`
}

// ScannerConfig tunes the QR scan loop.
type ScannerConfig struct {
	FPS int `toml:"fps"`
}

// PlayerConfig tunes the audio player.
type PlayerConfig struct {
	SkipSeconds int `toml:"skip_seconds"`
}

// LoggingConfig controls log level and the TUI log file.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values not present in the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads a .env file into the process environment when one exists.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides config values with CARDQUIZ_* environment variables.
func ApplyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("CARDQUIZ_GATEWAY_DRIVER", &c.Gateway.Driver)
	str("CARDQUIZ_GATEWAY_URL", &c.Gateway.URL)
	str("CARDQUIZ_GATEWAY_EMAIL", &c.Gateway.Email)
	str("CARDQUIZ_GATEWAY_PASSWORD", &c.Gateway.Password)
	str("CARDQUIZ_SESSION_FILE", &c.Gateway.SessionFile)
	str("CARDQUIZ_DATABASE_PATH", &c.Database.Path)
	str("CARDQUIZ_STORAGE_DIR", &c.Storage.Dir)
	str("CARDQUIZ_SERVER_HOST", &c.Server.Host)
	num("CARDQUIZ_SERVER_PORT", &c.Server.Port)
	str("CARDQUIZ_PUBLIC_URL", &c.Server.PublicURL)
	str("CARDQUIZ_SESSION_SECRET", &c.Server.SessionSecret)
	num("CARDQUIZ_IMPORT_WORKERS", &c.Import.Workers)
	str("CARDQUIZ_LOG_LEVEL", &c.Logging.Level)
}
