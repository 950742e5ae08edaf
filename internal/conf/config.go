// Package conf handles application configuration loaded via Viper from a
// YAML file and SENTINEL_* environment variables.
package conf

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Database backend types.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// MainSettings identifies the instance and its log verbosity.
type MainSettings struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"loglevel"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// IngestRateLimit caps ingest requests per second per client; 0 disables.
	IngestRateLimit float64 `mapstructure:"ingestratelimit"`
}

// Addr returns the host:port listen address.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseSettings selects and configures the storage backend.
type DatabaseSettings struct {
	Type string `mapstructure:"type"` // "sqlite" or "mysql"
	Path string `mapstructure:"path"` // SQLite database file
	DSN  string `mapstructure:"dsn"`  // MySQL connection string
}

// CorrelationSettings tunes the rule evaluation engine.
type CorrelationSettings struct {
	// GroupAttribute is the event metadata key used to derive the
	// correlation group key (typically a host identifier).
	GroupAttribute string `mapstructure:"groupattribute"`
	// DefaultThrottle is applied to rules that leave throttle unset.
	DefaultThrottle Duration `mapstructure:"defaultthrottle"`
}

// MQTTSettings configures the optional MQTT ingest source.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"` // e.g. tcp://localhost:1883
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"clientid"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// NotificationSettings configures alert fan-out targets.
type NotificationSettings struct {
	// WebhookURL receives a JSON POST per created alert; empty disables.
	WebhookURL string `mapstructure:"webhookurl"`
	// PushURLs are shoutrrr service URLs (telegram://..., ntfy://...).
	PushURLs []string `mapstructure:"pushurls"`
}

// SentrySettings configures optional error reporting.
type SentrySettings struct {
	DSN string `mapstructure:"dsn"`
}

// Settings is the root configuration.
type Settings struct {
	Main         MainSettings         `mapstructure:"main"`
	Server       ServerSettings       `mapstructure:"server"`
	Database     DatabaseSettings     `mapstructure:"database"`
	Correlation  CorrelationSettings  `mapstructure:"correlation"`
	MQTT         MQTTSettings         `mapstructure:"mqtt"`
	Notification NotificationSettings `mapstructure:"notification"`
	Sentry       SentrySettings       `mapstructure:"sentry"`
}

var (
	settings   *Settings
	settingsMu sync.RWMutex
)

// GetSettings returns the loaded settings, or nil before Load has run.
func GetSettings() *Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings
}

// SetSettings replaces the global settings. Intended for tests and Load.
func SetSettings(s *Settings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	settings = s
}

// Load reads configuration from the given file (or the default search
// paths when path is empty), applies defaults and environment overrides,
// and stores the result globally.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("sentinel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sentinel")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !asConfigNotFound(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	SetSettings(s)
	return s, nil
}

// Validate checks cross-field constraints a decoded config must satisfy.
func (s *Settings) Validate() error {
	switch s.Database.Type {
	case DatabaseSQLite:
		if s.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DatabaseMySQL:
		if s.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("unsupported database.type %q", s.Database.Type)
	}
	if s.Correlation.GroupAttribute == "" {
		return fmt.Errorf("correlation.groupattribute must not be empty")
	}
	if s.Correlation.DefaultThrottle < 0 {
		return fmt.Errorf("correlation.defaultthrottle must not be negative")
	}
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("main.name", "sentinel")
	v.SetDefault("main.loglevel", "info")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.ingestratelimit", 50.0)
	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.path", "sentinel.db")
	v.SetDefault("correlation.groupattribute", "host")
	v.SetDefault("correlation.defaultthrottle", (60 * time.Second).String())
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.topic", "sentinel/events")
	v.SetDefault("mqtt.clientid", "sentinel")
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok { //nolint:errorlint // viper returns a value type
		*target = e
		return true
	}
	return false
}
