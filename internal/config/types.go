package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Vault     VaultConfig     `yaml:"vault" mapstructure:"vault"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// PrivacyConfig contains PII detection configuration
type PrivacyConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// VaultConfig controls at-rest encryption of the persisted store.
type VaultConfig struct {
	// Enabled is the explicit off-switch. When false ResolveKey returns
	// no key and the store is persisted in plaintext.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// RequireEncryption turns the availability-first degrade path into a
	// hard failure: missing key material becomes an error instead of a
	// plaintext fallback.
	RequireEncryption bool   `yaml:"require_encryption" mapstructure:"require_encryption"`
	KeyFile           string `yaml:"key_file" mapstructure:"key_file"`
	SaltFile          string `yaml:"salt_file" mapstructure:"salt_file"`
}

// AuditConfig contains audit trail configuration
type AuditConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // file or postgres
	FilePath    string `yaml:"file_path" mapstructure:"file_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
}

// CacheConfig contains detection cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// SessionConfig contains anonymization scope lifecycle configuration
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	DefaultMode   string        `yaml:"default_mode" mapstructure:"default_mode"`
}

// SecurityConfig contains request throttling configuration
type SecurityConfig struct {
	RateLimit struct {
		Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
		Burst          int  `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains dashboard feed configuration
type WebSocketConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	Path               string `yaml:"path" mapstructure:"path"`
	BroadcastDecisions bool   `yaml:"broadcast_decisions" mapstructure:"broadcast_decisions"`
	BroadcastSystem    bool   `yaml:"broadcast_system" mapstructure:"broadcast_system"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8085,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Privacy: PrivacyConfig{
			Enabled: true,
		},
		Vault: VaultConfig{
			Enabled:  true,
			KeyFile:  "data/vault.key",
			SaltFile: "data/vault.salt",
		},
		Audit: AuditConfig{
			Backend:      "file",
			FilePath:     "data/audit.log",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     15 * time.Minute,
			KeyPrefix:      "privguard:detect:",
		},
		Session: SessionConfig{
			IdleTTL:       30 * time.Minute,
			SweepInterval: time.Minute,
			DefaultMode:   "cloud-anonymized",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:            true,
			Path:               "/ws",
			BroadcastDecisions: true,
			BroadcastSystem:    true,
		},
	}
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RequestsPerMin = 120
	cfg.Security.RateLimit.Burst = 20
	return cfg
}
