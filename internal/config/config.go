package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string        `validate:"required"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	RailFeedURL  string         `validate:"required,url"`
	BusFeedURL   string         `validate:"required,url"`
	FetchTimeout time.Duration  `validate:"gt=0"`
	PollInterval time.Duration  `validate:"gte=1s"`
	Timezone     string         `validate:"required"`
	Location     *time.Location `validate:"-"`

	AllowedOrigins []string `validate:"dive,required"`

	RedisEnabled  bool
	RedisAddr     string `validate:"required_if=RedisEnabled true"`
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	CacheTTL      time.Duration `validate:"gt=0"`

	NATSEnabled       bool
	NATSURL           string `validate:"required_if=NATSEnabled true"`
	NATSSubjectPrefix string `validate:"required_if=NATSEnabled true"`

	RateLimitPerWindow int           `validate:"gte=0"`
	RateLimitWindow    time.Duration `validate:"gt=0"`
	RateLimitWhitelist []string
}

// Load reads .env (if present), the optional CONFIG_FILE overlay and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		RailFeedURL:  getEnv("RAIL_FEED_URL", firstNonEmpty(file.RailFeedURL, "https://www.rmv.de/auskunft/bin/jp/stboard.exe/dn?L=vs_anzeigetafel&cfgfile=FreiWeinhe_4001657_133772753&dataOnly=true&start=1&maxJourneys=20&wb=COOL")),
		BusFeedURL:   getEnv("BUS_FEED_URL", firstNonEmpty(file.BusFeedURL, "https://www.ingelheim.de/abfahrtsmonitor/bahnhof")),
		FetchTimeout: getDurationEnv("FETCH_TIMEOUT", file.fetchTimeout.or(15*time.Second)),
		PollInterval: getDurationEnv("POLL_INTERVAL", file.pollInterval.or(time.Minute)),
		Timezone:     getEnv("TIMEZONE", firstNonEmpty(file.Timezone, "Europe/Berlin")),

		AllowedOrigins: getCSVEnvOr("ALLOWED_ORIGINS", firstNonEmptyList(file.AllowedOrigins, []string{"https://ingelheim-fahrplan.web.app"})),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CacheTTL:      getDurationEnv("CACHE_TTL", 30*time.Minute),

		NATSEnabled:       getBoolEnv("NATS_ENABLED", false),
		NATSURL:           getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "fahrplan"),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and resolves the timezone
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	return splitCSV(os.Getenv(key))
}

func getCSVEnvOr(key string, defaultVal []string) []string {
	if v := splitCSV(os.Getenv(key)); len(v) > 0 {
		return v
	}
	return defaultVal
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
