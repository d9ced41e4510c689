package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
	WebDir      string `yaml:"web_dir" envconfig:"WEB_DIR" default:"web"`
	ArchiveFile string `yaml:"archive_file" envconfig:"ARCHIVE_FILE" default:"data/archive.db"`
}

// PipelineConfig contains the data pipeline defaults. Every value can be
// overridden per request; these only seed the initial behavior.
type PipelineConfig struct {
	DateFormat           string        `yaml:"date_format" envconfig:"DATE_FORMAT" default:"2006-01-02 15:04:05"`
	OutlierThreshold     float64       `yaml:"outlier_threshold" envconfig:"OUTLIER_THRESHOLD" default:"1.5"`
	BulkZScoreThreshold  float64       `yaml:"bulk_zscore_threshold" envconfig:"BULK_ZSCORE_THRESHOLD" default:"3.0"`
	FlowMinThreshold     float64       `yaml:"flow_min_threshold" envconfig:"FLOW_MIN_THRESHOLD" default:"0"`
	FlowMaxOutlierFactor float64       `yaml:"flow_max_outlier_factor" envconfig:"FLOW_MAX_OUTLIER_FACTOR" default:"10"`
	PumpVariables        []string      `yaml:"pump_variables" envconfig:"PUMP_VARIABLES" default:"Pump_1,Pump_2"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`
	SessionTTL           time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"2h"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("IOTPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	configFile := getConfigFilePath()
	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Ensure required directories exist
	if err := cfg.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.Server.ReadTimeout == 0 {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if envConfig.Server.WriteTimeout == 0 {
		envConfig.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if envConfig.Logging.Level == "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if envConfig.Paths.DataDir == "" {
		envConfig.Paths.DataDir = fileConfig.Paths.DataDir
	}
	if envConfig.Paths.ArchiveFile == "" {
		envConfig.Paths.ArchiveFile = fileConfig.Paths.ArchiveFile
	}
	if envConfig.Pipeline.DateFormat == "" {
		envConfig.Pipeline.DateFormat = fileConfig.Pipeline.DateFormat
	}
	if envConfig.Pipeline.OutlierThreshold == 0 {
		envConfig.Pipeline.OutlierThreshold = fileConfig.Pipeline.OutlierThreshold
	}
	if len(envConfig.Pipeline.PumpVariables) == 0 {
		envConfig.Pipeline.PumpVariables = fileConfig.Pipeline.PumpVariables
	}

	return envConfig
}

// GetDataDir returns the resolved data directory path
func (c *Config) GetDataDir() string {
	if filepath.IsAbs(c.Paths.DataDir) {
		return c.Paths.DataDir
	}
	return c.Paths.DataDir
}

// GetArchiveFile returns the archive database path.
func (c *Config) GetArchiveFile() string {
	return c.Paths.ArchiveFile
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if c.Pipeline.OutlierThreshold < 0 {
		return fmt.Errorf("outlier threshold must not be negative")
	}

	if c.Pipeline.FlowMaxOutlierFactor <= 0 {
		return fmt.Errorf("flow max outlier factor must be positive")
	}

	if c.Pipeline.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	return nil
}

// ensureDirectories creates the data and logs directories when missing.
func (c *Config) ensureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogsDir}
	if archiveDir := filepath.Dir(c.Paths.ArchiveFile); archiveDir != "." {
		dirs = append(dirs, archiveDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:     "data",
			LogsDir:     "logs",
			WebDir:      "web",
			ArchiveFile: "data/archive.db",
		},
		Pipeline: PipelineConfig{
			DateFormat:           "2006-01-02 15:04:05",
			OutlierThreshold:     1.5,
			BulkZScoreThreshold:  3.0,
			FlowMinThreshold:     0,
			FlowMaxOutlierFactor: 10,
			PumpVariables:        []string{"Pump_1", "Pump_2"},
			MaxUploadBytes:       50 << 20,
			SessionTTL:           2 * time.Hour,
		},
	}
}
