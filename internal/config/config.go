package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Intake     IntakeConfig     `mapstructure:"intake"`
	Staging    StagingConfig    `mapstructure:"staging"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds sqlite configuration for the persistence endpoints
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExtractionConfig holds the external extraction service connection
type ExtractionConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IntakeConfig holds batch intake behavior settings
type IntakeConfig struct {
	DefaultVATRate  float64       `mapstructure:"default_vat_rate"`
	DefaultCurrency string        `mapstructure:"default_currency"`
	PersistenceURL  string        `mapstructure:"persistence_url"`
	CommitTimeout   time.Duration `mapstructure:"commit_timeout"`
}

// StagingConfig holds upload staging settings
type StagingConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/invoices.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Extraction service defaults
	viper.SetDefault("extraction.timeout", 120*time.Second)

	// Intake defaults
	viper.SetDefault("intake.default_vat_rate", 0.18)
	viper.SetDefault("intake.default_currency", "ILS")
	viper.SetDefault("intake.commit_timeout", 60*time.Second)

	// Staging defaults
	viper.SetDefault("staging.dir", "data/staging")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("extraction.base_url", "EXTRACTION_BASE_URL")
	viper.BindEnv("intake.persistence_url", "PERSISTENCE_BASE_URL")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Extraction.BaseURL == "" {
		return fmt.Errorf("extraction.base_url is required")
	}
	if c.Intake.DefaultVATRate < 0 || c.Intake.DefaultVATRate >= 1 {
		return fmt.Errorf("intake.default_vat_rate must be in [0, 1), got %v", c.Intake.DefaultVATRate)
	}
	if c.Intake.DefaultCurrency == "" {
		return fmt.Errorf("intake.default_currency is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}
