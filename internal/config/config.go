package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	dbconfig "chatterbox/pkg/database"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "CHATTERBOX_"

// Session backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config is the complete server configuration
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Chat      *ChatConfig      `json:"chat"`
	Session   *SessionConfig   `json:"session"`
	Log       *LogConfig       `json:"log"`
}

// DatabaseConfig configures the SQLite store
type DatabaseConfig struct {
	Path           string        `json:"path"`
	Timeout        time.Duration `json:"timeout"`
	MaxConnections int           `json:"max_connections"`
	PasswordCost   int           `json:"password_cost"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

// WebSocketConfig covers the per-connection transport. SendTimeout bounds a
// single broadcast delivery; SendBuffer is the outbound queue length.
type WebSocketConfig struct {
	PingInterval  time.Duration `json:"ping_interval"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	SendTimeout   time.Duration `json:"send_timeout"`
	SendBuffer    int           `json:"send_buffer"`
	MaxFrameBytes int64         `json:"max_frame_bytes"`
}

// ChatConfig holds message rules. RateLimitPerMinute of 0 disables limiting.
type ChatConfig struct {
	HistoryLimit       int `json:"history_limit"`
	MaxMessageLength   int `json:"max_message_length"`
	RateLimitPerMinute int `json:"rate_limit_per_minute"`
}

type SessionConfig struct {
	Backend        string `json:"backend"`
	RedisAddr      string `json:"redis_addr"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns settings suitable for a single local server
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:           "./chat.db",
			Timeout:        30 * time.Second,
			MaxConnections: 10,
			PasswordCost:   bcrypt.DefaultCost,
		},
		HTTP: &HTTPConfig{
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval:  30 * time.Second,
			ReadTimeout:   60 * time.Second,
			WriteTimeout:  10 * time.Second,
			SendTimeout:   5 * time.Second,
			SendBuffer:    256,
			MaxFrameBytes: 16 << 20,
		},
		Chat: &ChatConfig{
			HistoryLimit:       50,
			MaxMessageLength:   5000,
			RateLimitPerMinute: 100,
		},
		Session: &SessionConfig{
			Backend:        SessionBackendMemory,
			RedisAddr:      "localhost:6379",
			RedisKeyPrefix: "chatterbox:session:",
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}
	if c.Database.PasswordCost < bcrypt.MinCost || c.Database.PasswordCost > bcrypt.MaxCost {
		return fmt.Errorf("password cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	// port 0 asks the kernel for a free port
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.SendTimeout <= 0 {
		return fmt.Errorf("WebSocket send timeout must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("WebSocket send buffer must be positive")
	}
	if c.WebSocket.MaxFrameBytes <= 0 {
		return fmt.Errorf("WebSocket max frame bytes must be positive")
	}

	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.HistoryLimit < 0 {
		return fmt.Errorf("history limit cannot be negative")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive")
	}
	if c.Chat.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}

	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	if c.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}

	return nil
}

// DatabaseManagerConfig converts the database section for the storage layer
func (c *Config) DatabaseManagerConfig() *dbconfig.Config {
	dbCfg := dbconfig.DefaultConfig()
	dbCfg.DatabasePath = c.Database.Path
	dbCfg.WriteTimeout = c.Database.Timeout
	dbCfg.MaxConnections = c.Database.MaxConnections
	dbCfg.PasswordCost = c.Database.PasswordCost
	return dbCfg
}

// Address is the HTTP listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// LoadFromEnv overlays CHATTERBOX_* environment variables on the defaults.
// Unparseable values are reported rather than ignored.
func LoadFromEnv() (*Config, error) {
	config := DefaultConfig()
	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("DATABASE_PATH", &config.Database.Path)
	dur("DATABASE_TIMEOUT", &config.Database.Timeout)
	num("DATABASE_MAX_CONNECTIONS", &config.Database.MaxConnections)
	num("DATABASE_PASSWORD_COST", &config.Database.PasswordCost)

	num("HTTP_PORT", &config.HTTP.Port)
	str("HTTP_HOST", &config.HTTP.Host)
	dur("HTTP_READ_TIMEOUT", &config.HTTP.ReadTimeout)
	dur("HTTP_WRITE_TIMEOUT", &config.HTTP.WriteTimeout)

	dur("WEBSOCKET_PING_INTERVAL", &config.WebSocket.PingInterval)
	dur("WEBSOCKET_READ_TIMEOUT", &config.WebSocket.ReadTimeout)
	dur("WEBSOCKET_WRITE_TIMEOUT", &config.WebSocket.WriteTimeout)
	dur("WEBSOCKET_SEND_TIMEOUT", &config.WebSocket.SendTimeout)
	num("WEBSOCKET_SEND_BUFFER", &config.WebSocket.SendBuffer)
	var frame int
	num("WEBSOCKET_MAX_FRAME_BYTES", &frame)
	if frame != 0 {
		config.WebSocket.MaxFrameBytes = int64(frame)
	}

	num("CHAT_HISTORY_LIMIT", &config.Chat.HistoryLimit)
	num("CHAT_MAX_MESSAGE_LENGTH", &config.Chat.MaxMessageLength)
	num("CHAT_RATE_LIMIT_PER_MINUTE", &config.Chat.RateLimitPerMinute)

	str("SESSION_BACKEND", &config.Session.Backend)
	str("SESSION_REDIS_ADDR", &config.Session.RedisAddr)
	str("SESSION_REDIS_PASSWORD", &config.Session.RedisPassword)
	num("SESSION_REDIS_DB", &config.Session.RedisDB)
	str("SESSION_REDIS_KEY_PREFIX", &config.Session.RedisKeyPrefix)

	str("LOG_LEVEL", &config.Log.Level)
	str("LOG_FORMAT", &config.Log.Format)

	return errors.Join(errs...)
}

// ConfigFile is the JSON layout on disk; durations are strings like "30s".
// Absent fields keep their previous value.
type ConfigFile struct {
	Database  *DatabaseConfigFile  `json:"database"`
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Chat      *ChatConfigFile      `json:"chat"`
	Session   *SessionConfigFile   `json:"session"`
	Log       *LogConfigFile       `json:"log"`
}

type DatabaseConfigFile struct {
	Path           string `json:"path"`
	Timeout        string `json:"timeout"`
	MaxConnections int    `json:"max_connections"`
	PasswordCost   int    `json:"password_cost"`
}

type HTTPConfigFile struct {
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Host         string `json:"host"`
}

type WebSocketConfigFile struct {
	PingInterval  string `json:"ping_interval"`
	ReadTimeout   string `json:"read_timeout"`
	WriteTimeout  string `json:"write_timeout"`
	SendTimeout   string `json:"send_timeout"`
	SendBuffer    int    `json:"send_buffer"`
	MaxFrameBytes int64  `json:"max_frame_bytes"`
}

// ChatConfigFile uses pointers so an explicit 0 (e.g. disabling the rate
// limit) can be told apart from an absent field.
type ChatConfigFile struct {
	HistoryLimit       *int `json:"history_limit"`
	MaxMessageLength   *int `json:"max_message_length"`
	RateLimitPerMinute *int `json:"rate_limit_per_minute"`
}

type SessionConfigFile struct {
	Backend        string `json:"backend"`
	RedisAddr      string `json:"redis_addr"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`
}

type LogConfigFile struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// LoadFromFile reads a JSON config file on top of the defaults
func LoadFromFile(filepath string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, filepath); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}
	return config, nil
}

func applyFile(config *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	var errs []error
	dur := func(name, value string, dst *time.Duration) {
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	if f := file.Database; f != nil {
		if f.Path != "" {
			config.Database.Path = f.Path
		}
		dur("database.timeout", f.Timeout, &config.Database.Timeout)
		if f.MaxConnections > 0 {
			config.Database.MaxConnections = f.MaxConnections
		}
		if f.PasswordCost > 0 {
			config.Database.PasswordCost = f.PasswordCost
		}
	}

	if f := file.HTTP; f != nil {
		if f.Port > 0 {
			config.HTTP.Port = f.Port
		}
		if f.Host != "" {
			config.HTTP.Host = f.Host
		}
		dur("http.read_timeout", f.ReadTimeout, &config.HTTP.ReadTimeout)
		dur("http.write_timeout", f.WriteTimeout, &config.HTTP.WriteTimeout)
	}

	if f := file.WebSocket; f != nil {
		dur("websocket.ping_interval", f.PingInterval, &config.WebSocket.PingInterval)
		dur("websocket.read_timeout", f.ReadTimeout, &config.WebSocket.ReadTimeout)
		dur("websocket.write_timeout", f.WriteTimeout, &config.WebSocket.WriteTimeout)
		dur("websocket.send_timeout", f.SendTimeout, &config.WebSocket.SendTimeout)
		if f.SendBuffer > 0 {
			config.WebSocket.SendBuffer = f.SendBuffer
		}
		if f.MaxFrameBytes > 0 {
			config.WebSocket.MaxFrameBytes = f.MaxFrameBytes
		}
	}

	if f := file.Chat; f != nil {
		if f.HistoryLimit != nil {
			config.Chat.HistoryLimit = *f.HistoryLimit
		}
		if f.MaxMessageLength != nil {
			config.Chat.MaxMessageLength = *f.MaxMessageLength
		}
		if f.RateLimitPerMinute != nil {
			config.Chat.RateLimitPerMinute = *f.RateLimitPerMinute
		}
	}

	if f := file.Session; f != nil {
		if f.Backend != "" {
			config.Session.Backend = strings.ToLower(f.Backend)
		}
		if f.RedisAddr != "" {
			config.Session.RedisAddr = f.RedisAddr
		}
		if f.RedisPassword != "" {
			config.Session.RedisPassword = f.RedisPassword
		}
		if f.RedisDB > 0 {
			config.Session.RedisDB = f.RedisDB
		}
		if f.RedisKeyPrefix != "" {
			config.Session.RedisKeyPrefix = f.RedisKeyPrefix
		}
	}

	if f := file.Log; f != nil {
		if f.Level != "" {
			config.Log.Level = f.Level
		}
		if f.Format != "" {
			config.Log.Format = f.Format
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid values in %s: %w", filepath, err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from envFile into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment
// (including envFile) > defaults, then validates the result.
func LoadConfigWithPrecedence(filepath, envFile string) (*Config, error) {
	if err := LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := applyEnv(config); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if filepath != "" {
		if err := applyFile(config, filepath); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
