package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Yandex     YandexConfig     `yaml:"yandex" mapstructure:"yandex"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Tenderland TenderlandConfig `yaml:"tenderland" mapstructure:"tenderland"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Elastic    ElasticConfig    `yaml:"elastic" mapstructure:"elastic"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the tender record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	Model          string `yaml:"model" mapstructure:"model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchThreshold int    `yaml:"batch_threshold" mapstructure:"batch_threshold"`
	PromptsFile    string `yaml:"prompts_file" mapstructure:"prompts_file"`
}

// GoogleConfig holds Google Custom Search credentials.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	CX      string `yaml:"cx" mapstructure:"cx"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// YandexConfig holds Yandex Search API settings.
type YandexConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	FolderID         string `yaml:"folder_id" mapstructure:"folder_id"`
	GroupsOnPage     int    `yaml:"groups_on_page" mapstructure:"groups_on_page"`
	PollIntervalSecs int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollTimeoutSecs  int    `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fallback scraper only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearchConfig configures the item enrichment search fan-out.
type SearchConfig struct {
	Backends        []string `yaml:"backends" mapstructure:"backends"`
	MaxQueries      int      `yaml:"max_queries" mapstructure:"max_queries"`
	SiteConcurrency int      `yaml:"site_concurrency" mapstructure:"site_concurrency"`
	RulesFile       string   `yaml:"rules_file" mapstructure:"rules_file"`
	CacheTTLMins    int      `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit       float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RedisConfig configures the search result cache. An empty Addr selects
// the in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// TenderlandConfig holds the tender discovery feed settings.
type TenderlandConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	AutosearchID int     `yaml:"autosearch_id" mapstructure:"autosearch_id"`
	BatchSize    int     `yaml:"batch_size" mapstructure:"batch_size"`
	Limit        int     `yaml:"limit" mapstructure:"limit"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PipelineConfig configures document acquisition and enrichment.
type PipelineConfig struct {
	WorkDir             string `yaml:"work_dir" mapstructure:"work_dir"`
	ConvertConcurrency  int    `yaml:"convert_concurrency" mapstructure:"convert_concurrency"`
	MaxNesting          int    `yaml:"max_nesting" mapstructure:"max_nesting"`
	DownloadTimeoutSecs int    `yaml:"download_timeout_secs" mapstructure:"download_timeout_secs"`
	FetchTimeoutSecs    int    `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	UserAgent           string `yaml:"user_agent" mapstructure:"user_agent"`
	AntiwordPath        string `yaml:"antiword_path" mapstructure:"antiword_path"`
	SofficePath         string `yaml:"soffice_path" mapstructure:"soffice_path"`
	KeepFiles           bool   `yaml:"keep_files" mapstructure:"keep_files"`
	// ScrapeExclude lists URL path globs never fetched during enrichment.
	// Empty selects the shop defaults (cart, checkout, account pages).
	ScrapeExclude []string `yaml:"scrape_exclude" mapstructure:"scrape_exclude"`
}

// DiscoveryConfig configures the scheduled discovery feed.
type DiscoveryConfig struct {
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
	Analyze  bool   `yaml:"analyze" mapstructure:"analyze"`
}

// NotionConfig holds Notion API credentials for report publishing.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReportDB string `yaml:"report_db" mapstructure:"report_db"`
}

// ElasticConfig configures the final report archive index.
type ElasticConfig struct {
	Addresses []string `yaml:"addresses" mapstructure:"addresses"`
	Index     string   `yaml:"index" mapstructure:"index"`
	Username  string   `yaml:"username" mapstructure:"username"`
	Password  string   `yaml:"password" mapstructure:"password"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the run health checker. Alerts are only
// delivered when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	BacklogThreshold     int     `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
	StuckAfterMins       int     `yaml:"stuck_after_mins" mapstructure:"stuck_after_mins"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 20000)
	v.SetDefault("anthropic.timeout_secs", 180)
	v.SetDefault("anthropic.batch_threshold", 8)
	v.SetDefault("google.base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("yandex.groups_on_page", 10)
	v.SetDefault("yandex.poll_interval_secs", 1)
	v.SetDefault("yandex.poll_timeout_secs", 30)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("search.backends", []string{"google", "yandex"})
	v.SetDefault("search.max_queries", 5)
	v.SetDefault("search.site_concurrency", 8)
	v.SetDefault("search.cache_ttl_mins", 720)
	v.SetDefault("search.timeout_secs", 30)
	v.SetDefault("search.rate_limit", 5.0)
	v.SetDefault("tenderland.base_url", "https://tenderland.ru/api/v1")
	v.SetDefault("tenderland.batch_size", 50)
	v.SetDefault("tenderland.limit", 100)
	v.SetDefault("tenderland.rate_limit", 1.0)
	v.SetDefault("pipeline.work_dir", filepath.Join(os.TempDir(), "tender-cli"))
	v.SetDefault("pipeline.convert_concurrency", 4)
	v.SetDefault("pipeline.max_nesting", 8)
	v.SetDefault("pipeline.download_timeout_secs", 300)
	v.SetDefault("pipeline.fetch_timeout_secs", 5)
	v.SetDefault("pipeline.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("pipeline.antiword_path", "antiword")
	v.SetDefault("pipeline.soffice_path", "soffice")
	v.SetDefault("discovery.schedule", "0 */15 8-20 * * *")
	v.SetDefault("elastic.index", "tender-reports")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.backlog_threshold", 200)
	v.SetDefault("monitoring.stuck_after_mins", 60)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

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

// InitLogger initializes the global zap logger. When cfg.File is set, log
// lines are also written as JSON to a size-rotated file.
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

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), zapCfg.Level)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)

	return nil
}
