package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. FINSIGHT_SERVER_PORT.
const EnvPrefix = "FINSIGHT"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Detection DetectionConfig `yaml:"detection" envconfig:"DETECTION"`
	Provider  ProviderConfig  `yaml:"provider" envconfig:"PROVIDER"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Batch     BatchConfig     `yaml:"batch" envconfig:"BATCH"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes   int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// TelemetryConfig controls tracing and the Prometheus metrics endpoint
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// DetectionConfig holds the default detection parameters and the range callers may
// choose from.
type DetectionConfig struct {
	ZMultiplier        float64 `yaml:"z_multiplier" envconfig:"Z_MULTIPLIER"`
	PreEventWindowDays int     `yaml:"pre_event_window_days" envconfig:"PRE_EVENT_WINDOW_DAYS"`
	MinZMultiplier     float64 `yaml:"min_z_multiplier" envconfig:"MIN_Z_MULTIPLIER"`
	MaxZMultiplier     float64 `yaml:"max_z_multiplier" envconfig:"MAX_Z_MULTIPLIER"`
	MinWindowDays      int     `yaml:"min_window_days" envconfig:"MIN_WINDOW_DAYS"`
	MaxWindowDays      int     `yaml:"max_window_days" envconfig:"MAX_WINDOW_DAYS"`
	// MinRangeDays and MaxRangeDays bound a requested [start, end] span. Zero disables.
	MinRangeDays int `yaml:"min_range_days" envconfig:"MIN_RANGE_DAYS"`
	MaxRangeDays int `yaml:"max_range_days" envconfig:"MAX_RANGE_DAYS"`
}

// ProviderConfig selects and configures the market data source
type ProviderConfig struct {
	Kind              string        `yaml:"kind" envconfig:"KIND"`
	APIKey            string        `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RequestsPerMinute int           `yaml:"requests_per_minute" envconfig:"REQUESTS_PER_MINUTE"`
	MaxRetries        int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
}

// ExportConfig controls report output
type ExportConfig struct {
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	Precision  int    `yaml:"precision" envconfig:"PRECISION"`
	BOM        bool   `yaml:"bom" envconfig:"BOM"`
}

// BatchConfig bounds multi-symbol analyses and the in-memory report store
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY"`
	MaxSymbols     int `yaml:"max_symbols" envconfig:"MAX_SYMBOLS"`
	StoreCapacity  int `yaml:"store_capacity" envconfig:"STORE_CAPACITY"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first without overriding variables
// that are already set.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// ALPHA_VANTAGE_API_KEY is the variable name the provider documents.
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("ALPHA_VANTAGE_API_KEY")
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the keys present in a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
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

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if err := c.Detection.validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Provider.Kind) {
	case ProviderAlphaVantage, ProviderYahoo:
		c.Provider.Kind = strings.ToLower(c.Provider.Kind)
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}

	if c.Provider.RequestsPerMinute <= 0 {
		return fmt.Errorf("provider requests per minute must be positive")
	}

	if c.Export.Precision < 0 || c.Export.Precision > 8 {
		return fmt.Errorf("export precision must be between 0 and 8, got %d", c.Export.Precision)
	}

	if c.Batch.MaxConcurrency <= 0 {
		c.Batch.MaxConcurrency = DefaultBatchConcurrency
	}
	if c.Batch.StoreCapacity <= 0 {
		c.Batch.StoreCapacity = DefaultStoreCapacity
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

func (d DetectionConfig) validate() error {
	if d.MinZMultiplier <= 0 || d.MinZMultiplier > d.MaxZMultiplier {
		return fmt.Errorf("invalid z multiplier bounds [%v, %v]", d.MinZMultiplier, d.MaxZMultiplier)
	}
	if d.ZMultiplier < d.MinZMultiplier || d.ZMultiplier > d.MaxZMultiplier {
		return fmt.Errorf("default z multiplier %v outside [%v, %v]", d.ZMultiplier, d.MinZMultiplier, d.MaxZMultiplier)
	}
	if d.MinWindowDays < 1 || d.MinWindowDays > d.MaxWindowDays {
		return fmt.Errorf("invalid window bounds [%d, %d]", d.MinWindowDays, d.MaxWindowDays)
	}
	if d.PreEventWindowDays < d.MinWindowDays || d.PreEventWindowDays > d.MaxWindowDays {
		return fmt.Errorf("default window %d outside [%d, %d]", d.PreEventWindowDays, d.MinWindowDays, d.MaxWindowDays)
	}
	if d.MaxRangeDays > 0 && d.MinRangeDays > d.MaxRangeDays {
		return fmt.Errorf("invalid date range bounds [%d, %d]", d.MinRangeDays, d.MaxRangeDays)
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

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
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      60 * time.Second,
			MaxHeaderBytes:   1 << 20, // 1MB
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: DefaultOperationTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimitRPS,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TracingEnabled: false,
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
		Detection: DetectionConfig{
			ZMultiplier:        DefaultZMultiplier,
			PreEventWindowDays: DefaultPreEventWindowDays,
			MinZMultiplier:     MinZMultiplier,
			MaxZMultiplier:     MaxZMultiplier,
			MinWindowDays:      MinWindowDays,
			MaxWindowDays:      MaxWindowDays,
			MinRangeDays:       0,
			MaxRangeDays:       0,
		},
		Provider: ProviderConfig{
			Kind:              ProviderAlphaVantage,
			BaseURL:           "https://www.alphavantage.co",
			Timeout:           DefaultHTTPTimeout,
			RequestsPerMinute: DefaultProviderRequestsPerMinute,
			MaxRetries:        DefaultProviderRetries,
		},
		Export: ExportConfig{
			ReportsDir: DefaultReportsDir,
			Precision:  DefaultExportPrecision,
			BOM:        true,
		},
		Batch: BatchConfig{
			MaxConcurrency: DefaultBatchConcurrency,
			MaxSymbols:     DefaultBatchMaxSymbols,
			StoreCapacity:  DefaultStoreCapacity,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}
