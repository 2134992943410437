package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration. Sources,
// routing rules and futures overrides live in a separate sources file
// (see LoadSources) so operators can edit the bid configuration without
// touching server settings.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Fetch    FetchConfig    `yaml:"fetch" envconfig:"FETCH"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Output   OutputConfig   `yaml:"output" envconfig:"OUTPUT"`
	// SourcesFile points at the YAML file holding sources, processor
	// rules and default futures overrides.
	SourcesFile string `yaml:"sources_file" envconfig:"SOURCES_FILE" default:"sources.yaml"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output string `yaml:"output" envconfig:"OUTPUT" default:"console"`
}

// FetchConfig tunes the page fetcher. The pipeline core never performs
// network I/O itself; these settings only apply to the fetch collaborator.
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"20s"`
	// RatePerHost caps requests per second against a single co-op host.
	RatePerHost float64 `yaml:"rate_per_host" envconfig:"RATE_PER_HOST" default:"2"`
	RateBurst   int     `yaml:"rate_burst" envconfig:"RATE_BURST" default:"4"`
	// EnableBrowser turns on the headless-browser strategy for co-op
	// pages that render their bid tables with JavaScript.
	EnableBrowser  bool          `yaml:"enable_browser" envconfig:"ENABLE_BROWSER" default:"false"`
	BrowserTimeout time.Duration `yaml:"browser_timeout" envconfig:"BROWSER_TIMEOUT" default:"45s"`
}

// PipelineConfig tunes the bid pipeline itself.
type PipelineConfig struct {
	// Concurrency bounds how many sources are processed at once.
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY" default:"4"`
	// DropUnrouted discards rows matching no processor rule instead of
	// passing them through unrouted.
	DropUnrouted bool `yaml:"drop_unrouted" envconfig:"DROP_UNROUTED" default:"false"`
	// SuppressEmptyBids drops rows whose price fields are all null.
	SuppressEmptyBids bool `yaml:"suppress_empty_bids" envconfig:"SUPPRESS_EMPTY_BIDS" default:"false"`
}

// OutputConfig contains export destinations for the CLI run mode.
type OutputConfig struct {
	Dir       string `yaml:"dir" envconfig:"DIR" default:"out"`
	CSVName   string `yaml:"csv_name" envconfig:"CSV_NAME" default:"cash_bids.csv"`
	ExcelName string `yaml:"excel_name" envconfig:"EXCEL_NAME" default:"cash_bids.xlsx"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables take precedence over the file.
func Load() (*Config, error) {
	return LoadFrom(configFilePath())
}

// LoadFrom loads configuration using the given config file path.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("GRAINBIDS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileCfg, cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func configFilePath() string {
	if path := os.Getenv("GRAINBIDS_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

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

// mergeConfigs merges file config over the env-loaded config. Values set
// in the file win over envconfig defaults; unset file fields keep whatever
// the environment resolved.
func mergeConfigs(fileConfig, envConfig Config) Config {
	if fileConfig.Server.Port != 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if fileConfig.Server.ReadTimeout != 0 {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if fileConfig.Server.WriteTimeout != 0 {
		envConfig.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if fileConfig.Server.IdleTimeout != 0 {
		envConfig.Server.IdleTimeout = fileConfig.Server.IdleTimeout
	}
	if fileConfig.Server.ShutdownTimeout != 0 {
		envConfig.Server.ShutdownTimeout = fileConfig.Server.ShutdownTimeout
	}
	if fileConfig.Logging.Level != "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if fileConfig.Logging.Format != "" {
		envConfig.Logging.Format = fileConfig.Logging.Format
	}
	if fileConfig.Logging.Output != "" {
		envConfig.Logging.Output = fileConfig.Logging.Output
	}
	if fileConfig.Fetch.Timeout != 0 {
		envConfig.Fetch.Timeout = fileConfig.Fetch.Timeout
	}
	if fileConfig.Fetch.RatePerHost != 0 {
		envConfig.Fetch.RatePerHost = fileConfig.Fetch.RatePerHost
	}
	if fileConfig.Fetch.RateBurst != 0 {
		envConfig.Fetch.RateBurst = fileConfig.Fetch.RateBurst
	}
	if fileConfig.Fetch.EnableBrowser {
		envConfig.Fetch.EnableBrowser = true
	}
	if fileConfig.Fetch.BrowserTimeout != 0 {
		envConfig.Fetch.BrowserTimeout = fileConfig.Fetch.BrowserTimeout
	}
	if fileConfig.Pipeline.Concurrency != 0 {
		envConfig.Pipeline.Concurrency = fileConfig.Pipeline.Concurrency
	}
	if fileConfig.Pipeline.DropUnrouted {
		envConfig.Pipeline.DropUnrouted = true
	}
	if fileConfig.Pipeline.SuppressEmptyBids {
		envConfig.Pipeline.SuppressEmptyBids = true
	}
	if fileConfig.Output.Dir != "" {
		envConfig.Output.Dir = fileConfig.Output.Dir
	}
	if fileConfig.Output.CSVName != "" {
		envConfig.Output.CSVName = fileConfig.Output.CSVName
	}
	if fileConfig.Output.ExcelName != "" {
		envConfig.Output.ExcelName = fileConfig.Output.ExcelName
	}
	if fileConfig.SourcesFile != "" {
		envConfig.SourcesFile = fileConfig.SourcesFile
	}
	return envConfig
}

// validate checks configuration bounds.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.Fetch.Timeout)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	return nil
}
