package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	commoncfg "github.com/zukhriddin2012/c-space-niya-sub004/common/config"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/resolver"
)

// Notification channels accepted by NOTIFY_CHANNEL.
const (
	ChannelBot    = "bot"
	ChannelStream = "stream"
	ChannelMQTT   = "mqtt"
	ChannelLog    = "log"
)

// Config presence engine configuration (all binaries)
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig
	Log       struct {
		Level  string
		Format string
	}

	Presence PresenceConfig
	Notify   NotifyConfig
	MQTT     MQTTConfig
	Sweeper  SweeperConfig

	ShiftCacheTTL time.Duration
}

// PresenceConfig workplace rules
type PresenceConfig struct {
	Timezone        string
	NightKeywords   []string
	FallbackCutoffs map[domain.ShiftCode]int // civil minutes since midnight
}

// NotifyConfig outbound prompt settings
type NotifyConfig struct {
	Channel       string
	BotAPIURL     string
	BotToken      string
	WebhookSecret string // expected X-Telegram-Bot-Api-Secret-Token; empty disables the check
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	Templates     notify.Templates
}

// MQTTConfig broker plus the per-worker topic prefix
type MQTTConfig struct {
	commoncfg.MQTTConfig
	Topic string
}

// SweeperConfig due-reminder sweep
type SweeperConfig struct {
	Interval   time.Duration
	BatchSize  int
	StaleAfter time.Duration // re-send sent reminders unanswered this long
}

// fileOverlay is the optional YAML file named by PRESENCE_CONFIG_FILE.
type fileOverlay struct {
	Timezone        string            `yaml:"timezone"`
	NightKeywords   []string          `yaml:"night_keywords"`
	FallbackCutoffs map[string]string `yaml:"fallback_cutoffs"` // shift code -> HH:MM
	Templates       notify.Templates  `yaml:"templates"`
	Sweeper         struct {
		Interval   string `yaml:"interval"`
		BatchSize  int    `yaml:"batch_size"`
		StaleAfter string `yaml:"stale_after"`
	} `yaml:"sweeper"`
}

// Load reads .env (if present), the environment, then the YAML overlay.
// Values in the overlay file win over the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "presence",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Presence.Timezone = getEnv("WORKPLACE_TIMEZONE", "Asia/Tashkent")
	cfg.Presence.NightKeywords = append([]string(nil), resolver.DefaultNightKeywords...)
	cfg.Presence.FallbackCutoffs = map[domain.ShiftCode]int{}
	for code, cutoff := range resolver.DefaultFallbackCutoffs {
		cfg.Presence.FallbackCutoffs[code] = cutoff
	}

	cfg.Notify.Channel = strings.ToLower(getEnv("NOTIFY_CHANNEL", ChannelLog))
	cfg.Notify.BotAPIURL = getEnv("BOT_API_URL", "https://api.telegram.org")
	cfg.Notify.BotToken = getEnv("BOT_TOKEN", "")
	cfg.Notify.WebhookSecret = getEnv("BOT_WEBHOOK_SECRET", "")
	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "presence:prompts")
	cfg.Notify.ConsumerGroup = getEnv("NOTIFY_CONSUMER_GROUP", "notify-relay")
	cfg.Notify.ConsumerName = getEnv("NOTIFY_CONSUMER_NAME", hostnameOr("notify-relay-1"))
	cfg.Notify.Templates = notify.DefaultTemplates()

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "presence-engine"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "presence/prompts")

	cfg.ShiftCacheTTL = parseDuration(getEnv("SHIFT_CACHE_TTL", "5m"), 5*time.Minute)

	cfg.Sweeper.Interval = parseDuration(getEnv("SWEEP_INTERVAL", "1m"), time.Minute)
	cfg.Sweeper.BatchSize = parseInt(getEnv("SWEEP_BATCH_SIZE", "100"), 100)
	cfg.Sweeper.StaleAfter = parseDuration(getEnv("SWEEP_STALE_AFTER", "2h"), 2*time.Hour)

	if path := os.Getenv("PRESENCE_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var f fileOverlay
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if f.Timezone != "" {
		c.Presence.Timezone = f.Timezone
	}
	if len(f.NightKeywords) > 0 {
		c.Presence.NightKeywords = f.NightKeywords
	}
	for code, hhmm := range f.FallbackCutoffs {
		sc, ok := domain.ParseShiftCode(code)
		if !ok {
			return fmt.Errorf("fallback_cutoffs: unknown shift code %q", code)
		}
		tod, err := clock.ParseTimeOfDay(hhmm)
		if err != nil {
			return fmt.Errorf("fallback_cutoffs.%s: %w", code, err)
		}
		c.Presence.FallbackCutoffs[sc] = tod.Minutes()
	}
	if f.Templates.Body != "" {
		c.Notify.Templates.Body = f.Templates.Body
	}
	for rt, label := range f.Templates.Labels {
		if _, err := domain.ParseResponseType(string(rt)); err != nil {
			return fmt.Errorf("templates.labels: unknown response type %q", rt)
		}
		c.Notify.Templates.Labels[rt] = label
	}
	if f.Sweeper.Interval != "" {
		d, err := time.ParseDuration(f.Sweeper.Interval)
		if err != nil {
			return fmt.Errorf("sweeper.interval: %w", err)
		}
		c.Sweeper.Interval = d
	}
	if f.Sweeper.BatchSize > 0 {
		c.Sweeper.BatchSize = f.Sweeper.BatchSize
	}
	if f.Sweeper.StaleAfter != "" {
		d, err := time.ParseDuration(f.Sweeper.StaleAfter)
		if err != nil {
			return fmt.Errorf("sweeper.stale_after: %w", err)
		}
		c.Sweeper.StaleAfter = d
	}
	return nil
}

// Validate rejects settings no binary can run with.
func (c *Config) Validate() error {
	if _, err := clock.NewCivil(c.Presence.Timezone); err != nil {
		return err
	}
	switch c.Notify.Channel {
	case ChannelBot:
		if c.Notify.BotToken == "" {
			return fmt.Errorf("BOT_TOKEN is required when NOTIFY_CHANNEL=bot")
		}
	case ChannelStream, ChannelMQTT, ChannelLog:
	default:
		return fmt.Errorf("unknown NOTIFY_CHANNEL %q", c.Notify.Channel)
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func hostnameOr(def string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return def
}
