package config

import "time"

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	StoreDriver   string `mapstructure:"store_driver" yaml:"store_driver"`
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix" yaml:"redis_prefix"`

	SaveDebounce       time.Duration `mapstructure:"save_debounce" yaml:"save_debounce"`
	WriteWorkers       int           `mapstructure:"write_workers" yaml:"write_workers"`
	MaxRoomsPerSession int           `mapstructure:"max_rooms_per_session" yaml:"max_rooms_per_session"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	EventsPerMinute    int           `mapstructure:"events_per_minute" yaml:"events_per_minute"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":5000",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		LogLevel:           "info",
		StoreDriver:        StoreSQLite,
		DatabasePath:       "./data/codecollab.db",
		RedisAddr:          "localhost:6379",
		RedisPrefix:        "codecollab:",
		SaveDebounce:       time.Second,
		WriteWorkers:       4,
		MaxRoomsPerSession: 16,
		MaxMessageBytes:    1 << 20,
		EventsPerMinute:    1200,
		AllowedOrigins:     []string{"*"},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.StoreDriver != "" {
		c.StoreDriver = other.StoreDriver
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.SaveDebounce != 0 {
		c.SaveDebounce = other.SaveDebounce
	}
}
