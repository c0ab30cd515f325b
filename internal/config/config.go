package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "PSEUDO"

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	// Read configuration
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/text-pseudonymizer/")
	v.AddConfigPath("$HOME/.text-pseudonymizer/")

	// Environment variable overrides
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, GetDefaults())

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	config := GetDefaults()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so environment variables can override
// settings that are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.session_idle_timeout", d.Server.SessionIdleTimeout)

	p := d.Pseudonymization
	v.SetDefault("pseudonymization.mask_persons", p.MaskPersons)
	v.SetDefault("pseudonymization.mask_orgs", p.MaskOrgs)
	v.SetDefault("pseudonymization.mask_locations", p.MaskLocations)
	v.SetDefault("pseudonymization.mask_dates", p.MaskDates)
	v.SetDefault("pseudonymization.mask_emails", p.MaskEmails)
	v.SetDefault("pseudonymization.mask_phones", p.MaskPhones)
	v.SetDefault("pseudonymization.mask_other", p.MaskOther)
	v.SetDefault("pseudonymization.use_placeholders", p.UsePlaceholders)
	v.SetDefault("pseudonymization.replacement_char", p.ReplacementChar)
	v.SetDefault("pseudonymization.preserve_length", p.PreserveLength)
	v.SetDefault("pseudonymization.fallback_length", p.FallbackLength)
	v.SetDefault("pseudonymization.detectors", p.Detectors)

	v.SetDefault("recognizer.type", d.Recognizer.Type)
	v.SetDefault("recognizer.endpoint", d.Recognizer.Endpoint)
	v.SetDefault("recognizer.timeout", d.Recognizer.Timeout)
	v.SetDefault("recognizer.directories.persons", d.Recognizer.Directories.Persons)
	v.SetDefault("recognizer.directories.organizations", d.Recognizer.Directories.Organizations)
	v.SetDefault("recognizer.directories.locations", d.Recognizer.Directories.Locations)

	v.SetDefault("synthesis.templates", d.Synthesis.Templates)
	v.SetDefault("synthesis.directories.persons", d.Synthesis.Directories.Persons)
	v.SetDefault("synthesis.directories.organizations", d.Synthesis.Directories.Organizations)
	v.SetDefault("synthesis.directories.locations", d.Synthesis.Directories.Locations)
	v.SetDefault("synthesis.count", d.Synthesis.Count)
	v.SetDefault("synthesis.seed", d.Synthesis.Seed)
	v.SetDefault("synthesis.output", d.Synthesis.Output)
	v.SetDefault("synthesis.max_count", d.Synthesis.MaxCount)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.database_url", d.Audit.DatabaseURL)
	v.SetDefault("audit.max_open_conns", d.Audit.MaxOpenConns)
	v.SetDefault("audit.max_idle_conns", d.Audit.MaxIdleConns)
	v.SetDefault("audit.conn_max_lifetime", d.Audit.ConnMaxLifetime)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.pool_size", d.Cache.PoolSize)
	v.SetDefault("cache.min_idle_conns", d.Cache.MinIdleConns)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_min", d.RateLimit.RequestsPerMin)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file.enabled", d.Logging.File.Enabled)
	v.SetDefault("logging.file.path", d.Logging.File.Path)

	v.SetDefault("websocket.enabled", d.WebSocket.Enabled)
	v.SetDefault("websocket.path", d.WebSocket.Path)
	v.SetDefault("websocket.username", d.WebSocket.Username)
	v.SetDefault("websocket.password", d.WebSocket.Password)
	v.SetDefault("websocket.events.broadcast_documents", d.WebSocket.Events.BroadcastDocuments)
	v.SetDefault("websocket.events.broadcast_synthesis", d.WebSocket.Events.BroadcastSynthesis)
	v.SetDefault("websocket.events.broadcast_system", d.WebSocket.Events.BroadcastSystem)
	v.SetDefault("websocket.events.broadcast_connections", d.WebSocket.Events.BroadcastConnections)
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.SessionIdleTimeout < 0 {
		return fmt.Errorf("invalid session_idle_timeout: %s", config.Server.SessionIdleTimeout)
	}

	if config.Pseudonymization.ReplacementChar == "" {
		return fmt.Errorf("replacement_char must not be empty")
	}

	if config.Pseudonymization.FallbackLength <= 0 {
		return fmt.Errorf("invalid fallback_length: %d", config.Pseudonymization.FallbackLength)
	}

	switch config.Recognizer.Type {
	case "none", "lexicon":
	case "http":
		if config.Recognizer.Endpoint == "" {
			return fmt.Errorf("recognizer type http requires an endpoint")
		}
	default:
		return fmt.Errorf("invalid recognizer type: %s (must be none, http, or lexicon)", config.Recognizer.Type)
	}

	if config.Synthesis.Count < 0 {
		return fmt.Errorf("invalid synthesis count: %d", config.Synthesis.Count)
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.RateLimit.RequestsPerMin)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes. Reloads that fail
// to decode or validate are reported through onError and otherwise ignored.
func Watch(configPath string, callback func(*Config), onError func(error)) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
