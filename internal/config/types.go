package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Recognizer RecognizerConfig `yaml:"recognizer" mapstructure:"recognizer"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	WebSocket  WebSocketConfig  `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodySize  int64         `yaml:"max_body_size" mapstructure:"max_body_size"`
}

// EngineConfig contains anonymization engine configuration
type EngineConfig struct {
	Mode     string         `yaml:"mode" mapstructure:"mode"` // pattern, recognizer, or hybrid
	Defaults DefaultsConfig `yaml:"defaults" mapstructure:"defaults"`
}

// DefaultsConfig holds the per-request settings applied when a request
// leaves them unset.
type DefaultsConfig struct {
	EntityTypes         []string `yaml:"entity_types" mapstructure:"entity_types"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	PreserveLegalRefs   bool     `yaml:"preserve_legal_refs" mapstructure:"preserve_legal_refs"`
	ConsistentReplace   bool     `yaml:"consistent_replace" mapstructure:"consistent_replace"`
	Language            string   `yaml:"language" mapstructure:"language"`
}

// RecognizerConfig contains NER model configuration
type RecognizerConfig struct {
	ModelPath   string        `yaml:"model_path" mapstructure:"model_path"`
	MaxLength   int           `yaml:"max_length" mapstructure:"max_length"`
	BatchSize   int           `yaml:"batch_size" mapstructure:"batch_size"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UseFallback bool          `yaml:"use_fallback" mapstructure:"use_fallback"`
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

// AuditConfig contains audit trail persistence configuration
type AuditConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
}

// RateLimitConfig contains per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
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

// WebSocketConfig controls the live event stream endpoint.
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodySize:  10 << 20, // 10 MB
		},
		Engine: EngineConfig{
			Mode: "hybrid",
			Defaults: DefaultsConfig{
				EntityTypes: []string{
					"PERSON", "ORGANIZATION", "LOCATION", "DATE",
					"EMAIL", "PHONE", "IDENTIFICATION",
				},
				ConfidenceThreshold: 0.7,
				PreserveLegalRefs:   true,
				ConsistentReplace:   true,
				Language:            "en",
			},
		},
		Recognizer: RecognizerConfig{
			ModelPath:   "./models/ner.onnx",
			MaxLength:   256,
			BatchSize:   8,
			Timeout:     10 * time.Second,
			UseFallback: true,
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     time.Hour,
			KeyPrefix:      "lexredact:ner:",
		},
		Audit: AuditConfig{
			Enabled:      false,
			DatabaseURL:  "postgres://localhost:5432/lexredact?sslmode=disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: struct {
				Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
				Path     string `yaml:"path" mapstructure:"path"`
				MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
				MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
				Compress bool   `yaml:"compress" mapstructure:"compress"`
			}{
				Enabled:  false,
				Path:     "logs/lexredact.log",
				MaxSize:  100, // MB
				MaxAge:   30,  // days
				Compress: true,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
		},
	}
}
