package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// ErrInvalidConfig is matched by every ConfigurationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigurationError reports an invalid option. It is fatal at startup only.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

type Config struct {
	// MQTT Configuration
	MQTTBroker            string
	MQTTTopic             string
	MQTTClientID          string
	MQTTKeepAlive         time.Duration
	MQTTProtocolVersion   uint
	MQTTCleanSession      bool
	MQTTReconnectInterval time.Duration
	MQTTConnectTimeout    time.Duration
	MQTTTLSInsecure       bool // skips broker certificate validation; known risk

	// Derived state
	HistoryCapacity int
	TrendWindow     int

	// Presentation boundary (empty disables the HTTP gateway)
	HTTPAddr string

	// ClickHouse archive (empty address disables it)
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	LogLevel string
}

var allowedSchemes = map[string]bool{
	"tcp": true, "mqtt": true, "ssl": true, "tls": true, "mqtts": true, "ws": true, "wss": true,
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		MQTTBroker:            getEnv("MQTT_BROKER", "wss://broker.hivemq.com:8884/mqtt"),
		MQTTTopic:             getEnv("MQTT_TOPIC", "wokwi/jardim/dados"),
		MQTTClientID:          getEnv("MQTT_CLIENT_ID", ""),
		MQTTKeepAlive:         time.Duration(getEnvInt("MQTT_KEEPALIVE_SECONDS", 60)) * time.Second,
		MQTTProtocolVersion:   uint(getEnvInt("MQTT_PROTOCOL_VERSION", 4)),
		MQTTCleanSession:      getEnvBool("MQTT_CLEAN_SESSION", true),
		MQTTReconnectInterval: time.Duration(getEnvInt("MQTT_RECONNECT_INTERVAL_MS", 1000)) * time.Millisecond,
		MQTTConnectTimeout:    time.Duration(getEnvInt("MQTT_CONNECT_TIMEOUT_MS", 30_000)) * time.Millisecond,
		MQTTTLSInsecure:       getEnvBool("MQTT_TLS_INSECURE", true),

		HistoryCapacity: getEnvInt("HISTORY_CAPACITY", 20),
		TrendWindow:     getEnvInt("TREND_WINDOW", 3),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "garden"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = GenerateClientID()
	}
	return cfg
}

// GenerateClientID returns a unique broker client identifier.
func GenerateClientID() string {
	return "garden_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Validate reports the first invalid option as a *ConfigurationError.
func (c *Config) Validate() error {
	u, err := url.Parse(c.MQTTBroker)
	if err != nil {
		return &ConfigurationError{Field: "MQTT_BROKER", Reason: err.Error()}
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return &ConfigurationError{Field: "MQTT_BROKER", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigurationError{Field: "MQTT_BROKER", Reason: "missing host"}
	}

	if strings.TrimSpace(c.MQTTTopic) == "" {
		return &ConfigurationError{Field: "MQTT_TOPIC", Reason: "must not be empty"}
	}
	if strings.ContainsAny(c.MQTTTopic, "+#") {
		return &ConfigurationError{Field: "MQTT_TOPIC", Reason: "wildcards are not supported; subscribe to a single device topic"}
	}
	if c.MQTTClientID == "" {
		return &ConfigurationError{Field: "MQTT_CLIENT_ID", Reason: "must not be empty"}
	}

	if c.MQTTKeepAlive < time.Second {
		return &ConfigurationError{Field: "MQTT_KEEPALIVE_SECONDS", Reason: "must be at least 1"}
	}
	if c.MQTTProtocolVersion != 3 && c.MQTTProtocolVersion != 4 {
		return &ConfigurationError{Field: "MQTT_PROTOCOL_VERSION", Reason: "must be 3 (MQTT 3.1) or 4 (MQTT 3.1.1)"}
	}
	if c.MQTTReconnectInterval <= 0 {
		return &ConfigurationError{Field: "MQTT_RECONNECT_INTERVAL_MS", Reason: "must be positive"}
	}
	if c.MQTTConnectTimeout <= 0 {
		return &ConfigurationError{Field: "MQTT_CONNECT_TIMEOUT_MS", Reason: "must be positive"}
	}

	if c.HistoryCapacity < 2 {
		return &ConfigurationError{Field: "HISTORY_CAPACITY", Reason: "must be at least 2"}
	}
	// The current snapshot occupies one slot, so at most capacity-1 earlier
	// readings feed the trend.
	if c.TrendWindow < 1 || c.TrendWindow >= c.HistoryCapacity {
		return &ConfigurationError{Field: "TREND_WINDOW", Reason: fmt.Sprintf("must be between 1 and %d", c.HistoryCapacity-1)}
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return &ConfigurationError{Field: "LOG_LEVEL", Reason: err.Error()}
	}
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Config: failed to parse int, using default", "key", key, "error", err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Config: failed to parse bool, using default", "key", key, "error", err)
		return defaultValue
	}
	return boolValue
}
