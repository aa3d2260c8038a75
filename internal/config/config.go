// Package config loads the relay configuration from defaults, an optional
// TOML file, and FOUNDRY_RELAY_ environment variables, in that precedence
// order. The loaded struct is validated once and treated as immutable.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix selects the environment variables considered during loading.
// Double underscores separate section from key: FOUNDRY_RELAY_SERVER__ADDR
// sets server.addr.
const envPrefix = "FOUNDRY_RELAY_"

// Config is the complete relay configuration.
type Config struct {
	Server  Server  `koanf:"server"`
	Backend Backend `koanf:"backend"`
	Auth    Auth    `koanf:"auth"`
	Models  Models  `koanf:"models"`
	Log     Log     `koanf:"log"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	MaxRequestBytes int64         `koanf:"max_request_bytes" validate:"gte=1024"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Backend configures the per-request Foundry calls.
type Backend struct {
	RequestTimeout   time.Duration `koanf:"request_timeout" validate:"gte=0"`
	DefaultMaxTokens int64         `koanf:"default_max_tokens" validate:"gte=1"`
}

// Auth configures relay access. DevDefaultCredential substitutes for a
// missing Authorization header during local development; ProxyTokens, when
// present, gate every chat and embeddings request.
type Auth struct {
	DevDefaultCredential string       `koanf:"dev_default_credential"`
	ProxyTokens          []ProxyToken `koanf:"proxy_tokens" validate:"dive"`
}

// ProxyToken is one configured relay access token. Only the SHA-256 digest is
// stored; the label identifies the caller in usage metrics.
type ProxyToken struct {
	Label  string `koanf:"label" validate:"required"`
	SHA256 string `koanf:"sha256" validate:"required,len=64,hexadecimal"`
}

// Models configures the model listing endpoint.
type Models struct {
	Default string `koanf:"default" validate:"required"`
}

// Log configures the stdout log handler.
type Log struct {
	Level  string `koanf:"level" validate:"required,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"required,oneof=text json"`
}

// defaults hold the built-in configuration, overridable by file and
// environment.
var defaults = map[string]any{
	"server.addr":                 "127.0.0.1:18000",
	"server.max_request_bytes":    int64(10 << 20),
	"server.shutdown_timeout":     "5s",
	"backend.request_timeout":     "2m",
	"backend.default_max_tokens":  int64(1024),
	"auth.dev_default_credential": "",
	"models.default":              "model-from-client-config",
	"log.level":                   "info",
	"log.format":                  "text",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load builds the configuration from defaults, the optional TOML file at
// path, and environment variables. environ substitutes the process
// environment in tests; nil means os.Environ.
func Load(path string, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:      envPrefix,
		EnvironFunc: environ,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.ReplaceAll(key, "__", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
