package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide, typed configuration value described in
// spec.md §9 ("model as an explicit, typed configuration value ... never
// mutate fields in place"). It is loaded once at startup and its fields are
// not mutated afterwards. There is no runtime reload: a changed setting
// takes effect only after a restart.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Retention RetentionConfig `mapstructure:"retention"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Tenant    TenantConfig    `mapstructure:"tenant"`
	Egress    EgressConfig    `mapstructure:"egress"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	FilePath          string `mapstructure:"file_path"`
}

type DBConfig struct {
	URL             string        `mapstructure:"url"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// UsesRemote reports whether a remote (Postgres) DSN was configured; when
// false, the store falls back to the local SQLite file at Path, per spec §6.
func (c DBConfig) UsesRemote() bool {
	return strings.TrimSpace(c.URL) != ""
}

type UpstreamConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	FallbackBaseURL string        `mapstructure:"fallback_base_url"`
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay   time.Duration `mapstructure:"retry_max_delay"`
	RetryMaxAttempts int          `mapstructure:"retry_max_attempts"`
}

type IngestConfig struct {
	Period          time.Duration `mapstructure:"period"`
	WindowedPeriod  time.Duration `mapstructure:"windowed_period"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	ErrorBackoffAt  int           `mapstructure:"error_backoff_at"`
}

type CatalogConfig struct {
	Period    time.Duration `mapstructure:"period"`
	CachePath string        `mapstructure:"cache_path"`
}

type RetentionConfig struct {
	Days         int           `mapstructure:"days"`
	PrunePeriod  time.Duration `mapstructure:"prune_period"`
}

// DetectorConfig holds the global engine thresholds spec.md §4.D names,
// with the spec-stated defaults.
type DetectorConfig struct {
	MarginMin        int64   `mapstructure:"margin_min"`
	DumpDropPct      float64 `mapstructure:"dump_drop_pct"`
	SpikeRisePct     float64 `mapstructure:"spike_rise_pct"`
	MinVolume        int64   `mapstructure:"min_volume"`
	HighLimitThreshold int   `mapstructure:"high_limit_threshold"`
}

type TenantConfig struct {
	ConfigRoot          string   `mapstructure:"config_root"`
	CreateIfMissing     bool     `mapstructure:"create_if_missing"`
	AllowedWebhookHosts []string `mapstructure:"allowed_webhook_hosts"`
	SeedFile            string   `mapstructure:"seed_file"`
}

type EgressConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryMaxAttempts int        `mapstructure:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
}

type SecurityConfig struct {
	AdminKey           string   `mapstructure:"admin_key"`
	CORSOrigins        []string `mapstructure:"cors_origins"`
	AllowPublicAdmin   bool     `mapstructure:"allow_public_admin"`
	RatePerSecond      float64  `mapstructure:"rate_per_second"`
	RateBurst          int      `mapstructure:"rate_burst"`
	MaxBodyBytes       int64    `mapstructure:"max_body_bytes"`
}

// Load reads process configuration the way the teacher's config.Load does:
// defaults registered first, an optional file overlaid, then environment
// variables (bound to the literal names spec.md §6 requires) taking final
// precedence.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("log.file_path", "")

	v.SetDefault("db.path", "./data/marketwatch.db")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "1h")
	v.SetDefault("db.conn_max_idle_time", "10m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("upstream.base_url", "https://prices.runescape.wiki/api/v1/osrs")
	v.SetDefault("upstream.fallback_base_url", "")
	v.SetDefault("upstream.user_agent", "market-event-detector/1.0 (contact: ops@example.com)")
	v.SetDefault("upstream.timeout", "20s")
	v.SetDefault("upstream.retry_base_delay", "1s")
	v.SetDefault("upstream.retry_max_delay", "30s")
	v.SetDefault("upstream.retry_max_attempts", 3)

	v.SetDefault("ingest.period", "60s")
	v.SetDefault("ingest.windowed_period", "5m")
	v.SetDefault("ingest.batch_size", 1000)
	v.SetDefault("ingest.max_backoff", "300s")
	v.SetDefault("ingest.error_backoff_at", 5)

	v.SetDefault("catalog.period", "6h")
	v.SetDefault("catalog.cache_path", "./data/item_cache.json")

	v.SetDefault("retention.days", 7)
	v.SetDefault("retention.prune_period", "1h")

	v.SetDefault("detector.margin_min", 100_000)
	v.SetDefault("detector.dump_drop_pct", 5.0)
	v.SetDefault("detector.spike_rise_pct", 5.0)
	v.SetDefault("detector.min_volume", 100)
	v.SetDefault("detector.high_limit_threshold", 10_000)

	v.SetDefault("tenant.config_root", "./data/tenants")
	v.SetDefault("tenant.create_if_missing", true)
	v.SetDefault("tenant.allowed_webhook_hosts", []string{"discord.com", "discordapp.com"})
	v.SetDefault("tenant.seed_file", "")

	v.SetDefault("egress.timeout", "10s")
	v.SetDefault("egress.retry_max_attempts", 3)
	v.SetDefault("egress.retry_base_delay", "1s")
	v.SetDefault("egress.retry_max_delay", "30s")

	v.SetDefault("security.admin_key", "")
	v.SetDefault("security.cors_origins", []string{})
	v.SetDefault("security.allow_public_admin", false)
	v.SetDefault("security.rate_per_second", 5.0)
	v.SetDefault("security.rate_burst", 10)
	v.SetDefault("security.max_body_bytes", 10*1024)

	// Literal environment variables spec.md §6 names, bound explicitly so
	// they work regardless of the MED_ prefix/replacer above.
	_ = v.BindEnv("db.url", "DB_URL")
	_ = v.BindEnv("db.path", "DB_PATH")
	_ = v.BindEnv("security.admin_key", "ADMIN_KEY")
	_ = v.BindEnv("security.cors_origins", "CORS_ORIGINS")
	_ = v.BindEnv("upstream.base_url", "UPSTREAM_BASE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if !envOnly {
			if err := v.ReadInConfig(); err != nil {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	// INGEST_PERIOD_SECONDS / CATALOG_PERIOD_SECONDS / RETENTION_DAYS are
	// plain integers per spec.md §6, not viper-parseable durations, so they
	// are applied manually after the structured unmarshal.
	if raw := os.Getenv("INGEST_PERIOD_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Ingest.Period = time.Duration(n) * time.Second
		}
	}
	if raw := os.Getenv("CATALOG_PERIOD_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Catalog.Period = time.Duration(n) * time.Second
		}
	}
	if raw := os.Getenv("RETENTION_DAYS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Retention.Days = n
		}
	}

	return cfg, nil
}
