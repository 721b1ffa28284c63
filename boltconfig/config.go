// Package boltconfig assembles driver configuration from functional
// options, a YAML file, and BOLT_*-prefixed environment variables, then
// validates it before it's handed to a Dialer/Pool.
package boltconfig

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gobolt/driver/bolterr"
)

// Config is the full set of driver-level settings, populated in layers:
// defaults, functional Options, an optional YAML file, and finally
// BOLT_*-prefixed environment overrides.
type Config struct {
	Host string `yaml:"host" validate:"required,hostname|ip"`
	Port int    `yaml:"port" validate:"required,min=1,max=65535"`

	UserAgent string `yaml:"user_agent" validate:"required"`

	BaseSize    int    `yaml:"base_size" validate:"min=1"`
	MaxOverflow int    `yaml:"max_overflow" validate:"min=0"`
	Strategy    string `yaml:"strategy" validate:"oneof=fifo lifo"`

	ConnectTimeoutMS int `yaml:"connect_timeout_ms" validate:"min=0"`
	QueryTimeoutMS   int `yaml:"query_timeout_ms" validate:"min=0"`
	IdleTTLMS        int `yaml:"idle_ttl_ms" validate:"min=0"`
}

// Default returns a Config with the module's baseline pool shape: base 10,
// overflow 5, FIFO, matching §6's listed defaults.
func Default() Config {
	return Config{
		UserAgent:        "gobolt/1",
		BaseSize:         10,
		MaxOverflow:      5,
		Strategy:         "fifo",
		ConnectTimeoutMS: 5000,
		QueryTimeoutMS:   30000,
	}
}

// Option mutates a Config under construction, mirroring the teacher's
// New(config, executor) nil-check pattern generalized to a chain of
// functional options.
type Option func(*Config)

// WithAddress sets Host/Port directly.
func WithAddress(host string, port int) Option {
	return func(c *Config) { c.Host = host; c.Port = port }
}

// WithPoolShape sets BaseSize/MaxOverflow/Strategy.
func WithPoolShape(base, overflow int, strategy string) Option {
	return func(c *Config) { c.BaseSize = base; c.MaxOverflow = overflow; c.Strategy = strategy }
}

// WithUserAgent overrides the HELLO user_agent field.
func WithUserAgent(ua string) Option {
	return func(c *Config) { c.UserAgent = ua }
}

// New builds a Config starting from Default and applying opts in order.
func New(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// Load decodes a YAML document at path into a copy of base, overwriting
// only the fields present in the document (zero-value fields in the
// document leave base's value in place is NOT guaranteed by yaml.v3 — this
// mirrors how every other example repo in the pack uses yaml.v3: decode
// into the struct directly, so an explicit zero in the file does win).
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("boltconfig: load %s: %w", path, err)
	}
	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return Config{}, fmt.Errorf("boltconfig: parse %s: %w", path, err)
	}
	return out, nil
}

// LoadEnv overlays BOLT_<FIELD> environment variables onto a copy of base.
// If envFile is non-empty and exists, it is loaded into the process
// environment first via godotenv, so a .env file can seed the same
// variables in local development.
func LoadEnv(prefix string, envFile string, base Config) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("boltconfig: load env file %s: %w", envFile, err)
			}
		}
	}
	out := base

	if v := os.Getenv(prefix + "HOST"); v != "" {
		out.Host = v
	}
	if v := os.Getenv(prefix + "PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("boltconfig: %sPORT: %w", prefix, err)
		}
		out.Port = p
	}
	if v := os.Getenv(prefix + "USER_AGENT"); v != "" {
		out.UserAgent = v
	}
	if v := os.Getenv(prefix + "BASE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("boltconfig: %sBASE_SIZE: %w", prefix, err)
		}
		out.BaseSize = n
	}
	if v := os.Getenv(prefix + "MAX_OVERFLOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("boltconfig: %sMAX_OVERFLOW: %w", prefix, err)
		}
		out.MaxOverflow = n
	}
	if v := os.Getenv(prefix + "STRATEGY"); v != "" {
		out.Strategy = strings.ToLower(v)
	}
	return out, nil
}

var validate = validator.New()

// Validate runs struct-tag validation (pool size, strategy name, port
// range) and returns a *bolterr.InvalidArgument naming the first violation.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &bolterr.InvalidArgument{Reason: fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())}
		}
		return &bolterr.InvalidArgument{Reason: err.Error()}
	}
	return nil
}

// Addr returns the host:port pair used for connection.Dial.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ParseURI parses a bolt://host[:port] URI, the only scheme this module
// supports (see Non-goals: no routing, no TLS negotiation scheme variants
// such as bolt+s/neo4j). Any other scheme returns bolterr.InvalidArgument.
func ParseURI(uri string) (host string, port int, err error) {
	const schemePrefix = "bolt://"
	if !strings.HasPrefix(uri, schemePrefix) {
		return "", 0, &bolterr.InvalidArgument{Reason: fmt.Sprintf("unsupported scheme in %q: only bolt:// is supported", uri)}
	}
	rest := strings.TrimPrefix(uri, schemePrefix)
	if rest == "" {
		return "", 0, &bolterr.InvalidArgument{Reason: "empty host in bolt:// URI"}
	}

	h, p, splitErr := net.SplitHostPort(rest)
	if splitErr != nil {
		// No port given: bare host, default to 7687.
		return rest, 7687, nil
	}
	portNum, convErr := strconv.Atoi(p)
	if convErr != nil {
		return "", 0, &bolterr.InvalidArgument{Reason: fmt.Sprintf("invalid port in %q: %v", uri, convErr)}
	}
	return h, portNum, nil
}
