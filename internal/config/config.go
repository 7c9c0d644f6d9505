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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Taxonomy   TaxonomyConfig   `yaml:"taxonomy" mapstructure:"taxonomy"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Suggest    SuggestConfig    `yaml:"suggest" mapstructure:"suggest"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// TaxonomyConfig locates the category definitions document.
type TaxonomyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ClassifierConfig holds the noise-filter and scoring thresholds. The
// normalization formula and confidence floor are tunable heuristics
// validated against a labeled sample, not fixed constants.
type ClassifierConfig struct {
	MinLength        int     `yaml:"min_length" mapstructure:"min_length"`
	MinAlphaRatio    float64 `yaml:"min_alpha_ratio" mapstructure:"min_alpha_ratio"`
	MaxRepeatRun     int     `yaml:"max_repeat_run" mapstructure:"max_repeat_run"`
	MinDistinctRatio float64 `yaml:"min_distinct_ratio" mapstructure:"min_distinct_ratio"`
	ConfidenceFloor  float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Size         int `yaml:"size" mapstructure:"size"`
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries   int `yaml:"max_retries" mapstructure:"max_retries"`
	ExploreLimit int `yaml:"explore_limit" mapstructure:"explore_limit"`
}

// ImportConfig configures the Excel importer.
type ImportConfig struct {
	TextColumns []string `yaml:"text_columns" mapstructure:"text_columns"`
}

// SuggestConfig configures the keyword suggestion miner.
type SuggestConfig struct {
	TopK       int    `yaml:"top_k" mapstructure:"top_k"`
	MaxRecords int    `yaml:"max_records" mapstructure:"max_records"`
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
}

// ServerConfig configures the preview HTTP server.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// MonitoringConfig configures the background quality checker used by the
// preview server. Rates are fractions of classified records, 0 disables
// the check. WebhookURL receives alert payloads as JSON POSTs.
type MonitoringConfig struct {
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	ManualReviewRateMax float64 `yaml:"manual_review_rate_max" mapstructure:"manual_review_rate_max"`
	NoiseRateMax        float64 `yaml:"noise_rate_max" mapstructure:"noise_rate_max"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
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
	v.SetEnvPrefix("FEEDBACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "feedback.db")
	v.SetDefault("taxonomy.path", "categories.yml")
	v.SetDefault("classifier.min_length", 3)
	v.SetDefault("classifier.min_alpha_ratio", 0.5)
	v.SetDefault("classifier.max_repeat_run", 5)
	v.SetDefault("classifier.min_distinct_ratio", 0.15)
	v.SetDefault("classifier.confidence_floor", 0.3)
	v.SetDefault("batch.size", 5000)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.max_retries", 3)
	v.SetDefault("batch.explore_limit", 10000)
	v.SetDefault("import.text_columns", []string{"motivo", "comentario"})
	v.SetDefault("suggest.top_k", 50)
	v.SetDefault("suggest.max_records", 20000)
	v.SetDefault("suggest.output_path", "keyword_suggestions.txt")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.manual_review_rate_max", 0.35)
	v.SetDefault("monitoring.noise_rate_max", 0.25)
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
