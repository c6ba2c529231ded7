package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "UNTOLD_"

// listKeys are comma-separated when they come from the environment.
var listKeys = map[string]bool{
	"allowed_hosts": true,
	"allowed_cidrs": true,
	"cors_origins":  true,
}

type Config struct {
	ListenPort      string        `koanf:"listen_port" validate:"required"`  // ex: ":8080"
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"` // ex: 5s
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`  // per-request deadline

	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"`
	PrettyLog bool   `koanf:"pretty_log"` // true => zap dev (color), false => zap prod (JSON)

	// Durable store
	DatabaseDriver string `koanf:"database_driver" validate:"oneof=sqlite postgres"`
	DatabaseDSN    string `koanf:"database_dsn" validate:"required_if=DatabaseDriver postgres"`

	// Redis (empty address disables the session cache)
	RedisAddr           string        `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	RedisUser           string        `koanf:"redis_username"`
	RedisPassword       string        `koanf:"redis_password"`
	RedisDB             int           `koanf:"redis_db" validate:"gte=0"`
	RedisDT             time.Duration `koanf:"redis_dial_timeout" validate:"gt=0"`
	RedisRT             time.Duration `koanf:"redis_read_timeout" validate:"gt=0"`
	RedisWT             time.Duration `koanf:"redis_write_timeout" validate:"gt=0"`
	RedisPoolSize       int           `koanf:"redis_pool_size" validate:"gt=0"`
	RedisConnectTimeout time.Duration `koanf:"redis_connect_timeout" validate:"gt=0"`
	RedisRetryInterval  time.Duration `koanf:"redis_retry_interval" validate:"gt=0"`
	RedisMaxWait        time.Duration `koanf:"redis_max_wait" validate:"gt=0"`
	RedisPingTimeout    time.Duration `koanf:"redis_ping_timeout" validate:"gt=0"`
	RedisWarnThreshold  int           `koanf:"redis_warn_threshold" validate:"gte=0"`

	// Sessions and workers
	SessionTTL        time.Duration `koanf:"session_ttl" validate:"gt=0"`
	SessionIdleTTL    time.Duration `koanf:"session_idle_ttl" validate:"gt=0"`
	GCInterval        time.Duration `koanf:"gc_interval" validate:"gt=0"`
	WidgetGCThreshold time.Duration `koanf:"widget_gc_threshold" validate:"gt=0"`
	WidgetFile        string        `koanf:"widget_settings_file"` // empty = no widget catalog
	ReloadInterval    time.Duration `koanf:"reload_interval" validate:"gt=0"`
	FeedbackQueueSize int           `koanf:"feedback_queue_size" validate:"gt=0"`

	// Collaborators
	RLBaseURL        string        `koanf:"rl_base_url" validate:"omitempty,url"` // empty = local heuristic
	RLTimeout        time.Duration `koanf:"rl_timeout" validate:"gt=0"`
	SentimentURL     string        `koanf:"sentiment_url" validate:"omitempty,url"` // empty = neutral mood
	SentimentTimeout time.Duration `koanf:"sentiment_timeout" validate:"gt=0"`

	// Access restrictions
	AllowedHosts    []string `koanf:"allowed_hosts"`                         // optional, restrict ops endpoints to these Host headers
	AllowedCIDRS    []string `koanf:"allowed_cidrs" validate:"dive,cidr|ip"` // optional, restrict ops endpoints to these IPs
	TrustProxy      bool     `koanf:"trust_proxy"`                           // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CORSOrigins     []string `koanf:"cors_origins" validate:"dive,url"`
	RateLimitBurst  int      `koanf:"rate_limit_burst" validate:"gte=0"` // 0 disables the /api limit
	RateLimitPerMin int      `koanf:"rate_limit_per_min" validate:"gte=0"`

	// Tracing
	OtelEnabled     bool    `koanf:"otel_enabled"`
	OtelEndpoint    string  `koanf:"otel_endpoint"` // host:port of an OTLP/HTTP collector, empty = stdout
	OtelInsecure    bool    `koanf:"otel_insecure"` // plain HTTP to the collector
	OtelSampleRatio float64 `koanf:"otel_sample_ratio" validate:"gte=0,lte=1"`

	ConfigFile string `koanf:"config"`
}

// flags declares every key with its default. Flag names use dashes; they
// map to the underscore keys above.
func flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("untold", pflag.ContinueOnError)

	fs.String("config", "", "optional YAML configuration file")
	fs.String("listen-port", ":8080", "HTTP listen address")
	fs.Duration("shutdown-timeout", 5*time.Second, "graceful shutdown deadline")
	fs.Duration("request-timeout", 10*time.Second, "per-request deadline")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.Bool("pretty-log", false, "human readable logs")

	fs.String("database-driver", "sqlite", "sqlite or postgres")
	fs.String("database-dsn", "untold.db", "database DSN (sqlite file path or postgres URL)")

	fs.String("redis-addr", "", "Redis address, empty disables the session cache")
	fs.String("redis-username", "", "Redis username")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database number")
	fs.Duration("redis-dial-timeout", 5*time.Second, "Redis dial timeout")
	fs.Duration("redis-read-timeout", 3*time.Second, "Redis read timeout")
	fs.Duration("redis-write-timeout", 3*time.Second, "Redis write timeout")
	fs.Int("redis-pool-size", 10, "Redis connection pool size")
	fs.Duration("redis-connect-timeout", 30*time.Second, "total time spent connecting to Redis")
	fs.Duration("redis-retry-interval", 2*time.Second, "initial wait between Redis connection attempts")
	fs.Duration("redis-max-wait", 10*time.Second, "maximum wait between Redis connection attempts")
	fs.Duration("redis-ping-timeout", 5*time.Second, "timeout of each Redis ping")
	fs.Int("redis-warn-threshold", 3, "warn after this many failed Redis attempts")

	fs.Duration("session-ttl", 48*time.Hour, "lifetime of a cached session snapshot")
	fs.Duration("session-idle-ttl", 2*time.Hour, "idle time after which a session leaves memory")
	fs.Duration("gc-interval", 15*time.Minute, "garbage collector interval")
	fs.Duration("widget-gc-threshold", 30*24*time.Hour, "age after which disabled widgets are removed")
	fs.String("widget-settings-file", "", "YAML file listing installed widgets")
	fs.Duration("reload-interval", time.Hour, "widget settings reload interval")
	fs.Int("feedback-queue-size", 256, "pending feedback payloads before new ones are dropped")

	fs.String("rl-base-url", "", "layout-suggestion service URL, empty uses the local heuristic")
	fs.Duration("rl-timeout", 10*time.Second, "layout-suggestion request timeout")
	fs.String("sentiment-url", "", "sentiment endpoint URL, empty disables mood analysis")
	fs.Duration("sentiment-timeout", 5*time.Second, "sentiment request timeout")

	fs.StringSlice("allowed-hosts", nil, "Host headers allowed on operational endpoints")
	fs.StringSlice("allowed-cidrs", nil, "IPs/CIDRs allowed on operational endpoints")
	fs.Bool("trust-proxy", false, "resolve client IPs from proxy headers")
	fs.StringSlice("cors-origins", nil, "browser origins allowed to call /api")
	fs.Int("rate-limit-burst", 60, "per-IP burst on /api, 0 disables")
	fs.Int("rate-limit-per-min", 120, "per-IP refill rate on /api")

	fs.Bool("otel-enabled", false, "enable OpenTelemetry tracing")
	fs.String("otel-endpoint", "", "OTLP/HTTP collector host:port, empty exports to stdout")
	fs.Bool("otel-insecure", false, "use plain HTTP for the OTLP collector")
	fs.Float64("otel-sample-ratio", 1, "trace sampling ratio")

	return fs
}

// Load builds the configuration from, lowest to highest precedence: flag
// defaults, the YAML file named by --config (or UNTOLD_CONFIG), UNTOLD_*
// environment variables and explicitly set flags.
func Load(args []string) (*Config, error) {
	fs := flags()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	path := k.String("config")
	if f := fs.Lookup("config"); f != nil && f.Changed {
		path = f.Value.String()
	}
	if path != "" {
		// The file sits below the environment, so it is loaded into a fresh
		// instance and the environment merged on top.
		base := koanf.New(".")
		if err := base.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		if err := base.Merge(k); err != nil {
			return nil, fmt.Errorf("failed to merge environment: %w", err)
		}
		k = base
	}

	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagValue(fs)), nil); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg, nil
}

func envValue(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if listKeys[key] {
		return key, splitAndTrim(value)
	}
	return key, value
}

func flagValue(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	c.AllowedHosts = splitAndTrim(strings.Join(c.AllowedHosts, ","))
	c.AllowedCIDRS = splitAndTrim(strings.Join(c.AllowedCIDRS, ","))
	c.CORSOrigins = splitAndTrim(strings.Join(c.CORSOrigins, ","))
}

// Validate checks the struct tags and reports the first offending key.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid configuration: %s (rule %q, value %v)", fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	if cp.DatabaseDriver == "postgres" && cp.DatabaseDSN != "" {
		cp.DatabaseDSN = "***REDACTED***"
	}
	return cp
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
