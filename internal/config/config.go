package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Client   ClientConfig   `yaml:"client" mapstructure:"client"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxUploadMB      int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	SubmitRatePerMin int      `yaml:"submit_rate_per_min" mapstructure:"submit_rate_per_min"`
	SubmitBurst      int      `yaml:"submit_burst" mapstructure:"submit_burst"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StorageConfig configures where uploaded files are kept.
type StorageConfig struct {
	Provider string      `yaml:"provider" mapstructure:"provider"`
	Dir      string      `yaml:"dir" mapstructure:"dir"`
	BaseURL  string      `yaml:"base_url" mapstructure:"base_url"`
	MinIO    MinIOConfig `yaml:"minio" mapstructure:"minio"`
}

// MinIOConfig holds S3-compatible object storage settings.
type MinIOConfig struct {
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint"`
	Region         string `yaml:"region" mapstructure:"region"`
	Bucket         string `yaml:"bucket" mapstructure:"bucket"`
	AccessKey      string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey      string `yaml:"secret_key" mapstructure:"secret_key"`
	UseSSL         bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	PresignTTLMins int    `yaml:"presign_ttl_mins" mapstructure:"presign_ttl_mins"`
}

// ExtractConfig configures document text extraction.
type ExtractConfig struct {
	PDFProvider    string `yaml:"pdf_provider" mapstructure:"pdf_provider"`
	PdfToTextPath  string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MaxConcurrency int    `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// AnalysisConfig configures metric and narrative extraction.
type AnalysisConfig struct {
	MaxSentences    int `yaml:"max_sentences" mapstructure:"max_sentences"`
	ExcerptMaxChars int `yaml:"excerpt_max_chars" mapstructure:"excerpt_max_chars"`
}

// ClientConfig configures the remote comparison client.
type ClientConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HLCOMPARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:3002"})
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.submit_rate_per_min", 30)
	v.SetDefault("server.submit_burst", 5)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "hl_compare.db")
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.dir", "uploads")
	v.SetDefault("storage.base_url", "/files")
	v.SetDefault("storage.minio.region", "us-east-1")
	v.SetDefault("storage.minio.bucket", "hl-compare")
	v.SetDefault("storage.minio.presign_ttl_mins", 60)
	v.SetDefault("extract.pdf_provider", "native")
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("extract.max_concurrency", 4)
	v.SetDefault("analysis.max_sentences", 3)
	v.SetDefault("analysis.excerpt_max_chars", 280)
	v.SetDefault("client.base_url", "http://localhost:8000")
	v.SetDefault("client.timeout_secs", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "serve", "compare" (in-process), "remote" (client only) and "results".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			problems = append(problems, "server.max_upload_mb must be > 0")
		}
		if c.Server.SubmitRatePerMin < 0 || c.Server.SubmitBurst < 0 {
			problems = append(problems, "server submit rate and burst must be >= 0")
		}
		problems = append(problems, c.validateBackend()...)
	case "compare":
		problems = append(problems, c.validateBackend()...)
	case "results":
		problems = append(problems, c.validateStore()...)
	case "remote":
		if c.Client.BaseURL == "" {
			problems = append(problems, "client.base_url is required")
		}
		if c.Client.TimeoutSecs <= 0 {
			problems = append(problems, "client.timeout_secs must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateBackend() []string {
	problems := c.validateStore()

	switch c.Storage.Provider {
	case "local", "":
		if c.Storage.Dir == "" {
			problems = append(problems, "storage.dir is required")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" {
			problems = append(problems, "storage.minio.endpoint is required")
		}
		if c.Storage.MinIO.Bucket == "" {
			problems = append(problems, "storage.minio.bucket is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.provider %q is not supported", c.Storage.Provider))
	}

	if c.Extract.MaxConcurrency < 1 || c.Extract.MaxConcurrency > 32 {
		problems = append(problems, "extract.max_concurrency must be between 1 and 32")
	}
	if c.Analysis.MaxSentences < 1 {
		problems = append(problems, "analysis.max_sentences must be >= 1")
	}
	return problems
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
