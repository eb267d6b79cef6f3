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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Analyze AnalyzeConfig `yaml:"analyze" mapstructure:"analyze"`
	Screen  ScreenConfig  `yaml:"screen" mapstructure:"screen"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnalyzeConfig holds scoring defaults.
type AnalyzeConfig struct {
	Framework string `yaml:"framework" mapstructure:"framework"`
}

// ScreenConfig holds screening defaults.
type ScreenConfig struct {
	Screener string `yaml:"screener" mapstructure:"screener"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentStocks int     `yaml:"max_concurrent_stocks" mapstructure:"max_concurrent_stocks"`
	RatePerSecond       float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ReportConfig configures report rendering.
type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	OutDir string `yaml:"out_dir" mapstructure:"out_dir"`
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
	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "screener.db")
	v.SetDefault("analyze.framework", "value_investing")
	v.SetDefault("screen.screener", "quality_screener")
	v.SetDefault("batch.max_concurrent_stocks", 5)
	v.SetDefault("batch.rate_per_second", 10.0)
	v.SetDefault("report.format", "table")
	v.SetDefault("report.out_dir", ".")
	v.SetDefault("server.port", 8080)
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

// Validate checks the settings a command mode depends on. Modes:
// "store" for commands that open the database, "batch" for concurrent
// runs, "serve" for the HTTP server.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}
	requireBatch := func() {
		if c.Batch.MaxConcurrentStocks < 1 || c.Batch.MaxConcurrentStocks > 50 {
			problems = append(problems, "batch.max_concurrent_stocks must be between 1 and 50")
		}
		if c.Batch.RatePerSecond <= 0 {
			problems = append(problems, "batch.rate_per_second must be > 0")
		}
	}

	switch mode {
	case "store":
		requireStore()
	case "batch":
		requireStore()
		requireBatch()
	case "serve":
		requireStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
