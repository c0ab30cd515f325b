package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server           ServerConfig           `yaml:"server" mapstructure:"server"`
	Pseudonymization PseudonymizationConfig `yaml:"pseudonymization" mapstructure:"pseudonymization"`
	Recognizer       RecognizerConfig       `yaml:"recognizer" mapstructure:"recognizer"`
	Synthesis        SynthesisConfig        `yaml:"synthesis" mapstructure:"synthesis"`
	Audit            AuditConfig            `yaml:"audit" mapstructure:"audit"`
	Cache            CacheConfig            `yaml:"cache" mapstructure:"cache"`
	RateLimit        RateLimitConfig        `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging          LoggingConfig          `yaml:"logging" mapstructure:"logging"`
	WebSocket        WebSocketConfig        `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`

	// Sessions unused for this long are dropped from memory; 0 keeps them
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout" mapstructure:"session_idle_timeout"`
}

// PseudonymizationConfig selects which entity types are replaced and how
type PseudonymizationConfig struct {
	MaskPersons     bool     `yaml:"mask_persons" mapstructure:"mask_persons" json:"mask_persons"`
	MaskOrgs        bool     `yaml:"mask_orgs" mapstructure:"mask_orgs" json:"mask_orgs"`
	MaskLocations   bool     `yaml:"mask_locations" mapstructure:"mask_locations" json:"mask_locations"`
	MaskDates       bool     `yaml:"mask_dates" mapstructure:"mask_dates" json:"mask_dates"`
	MaskEmails      bool     `yaml:"mask_emails" mapstructure:"mask_emails" json:"mask_emails"`
	MaskPhones      bool     `yaml:"mask_phones" mapstructure:"mask_phones" json:"mask_phones"`
	MaskOther       bool     `yaml:"mask_other" mapstructure:"mask_other" json:"mask_other"`
	UsePlaceholders bool     `yaml:"use_placeholders" mapstructure:"use_placeholders" json:"use_placeholders"`
	ReplacementChar string   `yaml:"replacement_char" mapstructure:"replacement_char" json:"replacement_char"`
	PreserveLength  bool     `yaml:"preserve_length" mapstructure:"preserve_length" json:"preserve_length"`
	FallbackLength  int      `yaml:"fallback_length" mapstructure:"fallback_length" json:"fallback_length"`
	Detectors       []string `yaml:"detectors" mapstructure:"detectors" json:"detectors"`
}

// DirectoryConfig lists name directory files per placeholder kind
type DirectoryConfig struct {
	Persons       []string `yaml:"persons" mapstructure:"persons"`
	Organizations []string `yaml:"organizations" mapstructure:"organizations"`
	Locations     []string `yaml:"locations" mapstructure:"locations"`
}

// RecognizerConfig points at the external entity recognizer
type RecognizerConfig struct {
	Type        string          `yaml:"type" mapstructure:"type"` // none, http, or lexicon
	Endpoint    string          `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout     time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	Directories DirectoryConfig `yaml:"directories" mapstructure:"directories"`
}

// SynthesisConfig contains training-data generation defaults
type SynthesisConfig struct {
	Templates   string          `yaml:"templates" mapstructure:"templates"`
	Directories DirectoryConfig `yaml:"directories" mapstructure:"directories"`
	Count       int             `yaml:"count" mapstructure:"count"`
	Seed        uint64          `yaml:"seed" mapstructure:"seed"`
	Output      string          `yaml:"output" mapstructure:"output"`
	MaxCount    int             `yaml:"max_count" mapstructure:"max_count"`
}

// AuditConfig contains the audit trail database configuration
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// CacheConfig contains the Redis session cache configuration
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL     string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL          time.Duration `yaml:"ttl" mapstructure:"ttl"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// RateLimitConfig contains per-client request limits for the HTTP API
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains event hub configuration
type WebSocketConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Path     string `yaml:"path" mapstructure:"path"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Events   struct {
		BroadcastDocuments   bool `yaml:"broadcast_documents" mapstructure:"broadcast_documents"`
		BroadcastSynthesis   bool `yaml:"broadcast_synthesis" mapstructure:"broadcast_synthesis"`
		BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8080,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        60 * time.Second,
			MaxBodyBytes:       10 << 20,
			SessionIdleTimeout: 24 * time.Hour,
		},
		Pseudonymization: PseudonymizationConfig{
			MaskPersons:     true,
			MaskOrgs:        true,
			MaskLocations:   true,
			MaskDates:       true,
			MaskEmails:      true,
			MaskPhones:      true,
			MaskOther:       false,
			UsePlaceholders: false,
			ReplacementChar: "X",
			PreserveLength:  true,
			FallbackLength:  3,
			Detectors:       []string{"all"},
		},
		Recognizer: RecognizerConfig{
			Type:    "none",
			Timeout: 10 * time.Second,
		},
		Synthesis: SynthesisConfig{
			Count:    1000,
			Output:   "training_data.json",
			MaxCount: 10000,
		},
		Audit: AuditConfig{
			Enabled:         false,
			DatabaseURL:     "sqlite://pseudonymizer.db",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:      false,
			RedisURL:     "redis://localhost:6379/0",
			KeyPrefix:    "pseudo:",
			TTL:          24 * time.Hour,
			PoolSize:     10,
			MinIdleConns: 1,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 120,
			Burst:          20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
			Path:    "/ws",
		},
	}

	cfg.Logging.File.Path = "logs/pseudonymizer.log"
	cfg.WebSocket.Events.BroadcastDocuments = true
	cfg.WebSocket.Events.BroadcastSynthesis = true
	cfg.WebSocket.Events.BroadcastSystem = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
