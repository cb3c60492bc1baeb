package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Watson    WatsonConfig    `yaml:"watson" mapstructure:"watson"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Models    ModelsConfig    `yaml:"models" mapstructure:"models"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// WatsonConfig holds Watson Machine Learning scoring settings.
type WatsonConfig struct {
	Endpoint      string  `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	IAMURL        string  `yaml:"iam_url" mapstructure:"iam_url"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// AnthropicConfig holds settings for the Claude-backed predictor.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	HTTPTimeout    int    `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	HTTPUserAgent  string `yaml:"http_user_agent" mapstructure:"http_user_agent"`
	FTPTimeoutSecs int    `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
}

// PipelineConfig configures prediction runs.
type PipelineConfig struct {
	PageSize            int           `yaml:"page_size" mapstructure:"page_size"`
	ScoreBatchSize      int           `yaml:"score_batch_size" mapstructure:"score_batch_size"`
	Concurrency         int           `yaml:"concurrency" mapstructure:"concurrency"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	FailFast            bool          `yaml:"fail_fast" mapstructure:"fail_fast"`
	Retry               RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit             CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig configures scoring call retries.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the scoring circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ModelsConfig configures the model registry.
type ModelsConfig struct {
	SeedFile string `yaml:"seed_file" mapstructure:"seed_file"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("PREDICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "predict.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("watson.iam_url", "https://iam.cloud.ibm.com/identity/token")
	v.SetDefault("watson.rate_per_second", 1)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("ingest.batch_size", 30000)
	v.SetDefault("ingest.http_timeout_secs", 30)
	v.SetDefault("ingest.http_user_agent", "predict-cli/1.0")
	v.SetDefault("ingest.ftp_timeout_secs", 30)
	v.SetDefault("pipeline.page_size", 30000)
	v.SetDefault("pipeline.score_batch_size", 250)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.confidence_threshold", 0.8)
	v.SetDefault("pipeline.fail_fast", false)
	v.SetDefault("pipeline.retry.max_attempts", 3)
	v.SetDefault("pipeline.retry.initial_backoff_ms", 500)
	v.SetDefault("pipeline.retry.max_backoff_ms", 30000)
	v.SetDefault("pipeline.retry.multiplier", 2.0)
	v.SetDefault("pipeline.retry.jitter_fraction", 0.25)
	v.SetDefault("pipeline.circuit.failure_threshold", 5)
	v.SetDefault("pipeline.circuit.reset_timeout_secs", 60)
	v.SetDefault("models.seed_file", "models.yaml")

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

// Validate checks that the configuration is usable for the given mode.
// Shared bounds are checked for every mode; mode-specific checks cover
// the credentials and connection settings that mode actually needs.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Pipeline.PageSize < 1 {
		problems = append(problems, "pipeline.page_size must be >= 1")
	}
	if c.Pipeline.ScoreBatchSize < 1 {
		problems = append(problems, "pipeline.score_batch_size must be >= 1")
	}
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 64 {
		problems = append(problems, "pipeline.concurrency must be between 1 and 64")
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		problems = append(problems, "pipeline.confidence_threshold must be between 0 and 1")
	}
	if c.Pipeline.Retry.MaxAttempts < 1 {
		problems = append(problems, "pipeline.retry.max_attempts must be >= 1")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	switch mode {
	case "ingest", "correct", "query":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "predict":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Watson.APIKey == "" && c.Anthropic.Key == "" {
			problems = append(problems, "watson.api_key or anthropic.key is required")
		}
		if c.Watson.APIKey != "" && c.Watson.Endpoint == "" {
			problems = append(problems, "watson.endpoint is required")
		}
	case "serve":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		problems = append(problems, "unknown mode: "+mode)
	}

	if len(problems) > 0 {
		return eris.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
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
