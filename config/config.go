// Package config loads the trickle command's settings.
//
// Values are resolved in order: defaults, then a YAML file, then TRICKLE_*
// environment variables. Command-line flags are applied by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/adamwoolhether/trickle/client/throttle"
	"github.com/adamwoolhether/trickle/pace"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, as in TRICKLE_URL.
const EnvPrefix = "TRICKLE"

// Config holds everything the trickle command needs.
type Config struct {
	URL             string            `yaml:"url" env:"URL" validate:"omitempty,url"`
	Method          string            `yaml:"method" env:"METHOD" validate:"required,oneof=POST PUT PATCH"`
	CharsPerSecond  float64           `yaml:"chars_per_second" env:"CHARS_PER_SECOND" validate:"gt=0"`
	ChunkSize       int               `yaml:"chunk_size" env:"CHUNK_SIZE" validate:"gte=0"`
	ContentType     string            `yaml:"content_type" env:"CONTENT_TYPE"`
	Headers         map[string]string `yaml:"headers" env:"-"`
	Username        string            `yaml:"username" env:"USERNAME"`
	Password        string            `yaml:"password" env:"PASSWORD"`
	Timeout         time.Duration     `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"`
	UserAgent       string            `yaml:"user_agent" env:"USER_AGENT"`
	RequestIDHeader string            `yaml:"request_id_header" env:"REQUEST_ID_HEADER"`
	Progress        bool              `yaml:"progress" env:"PROGRESS"`
	Throttle        ThrottleConfig    `yaml:"throttle" env:"THROTTLE"`
	Listen          ListenConfig      `yaml:"listen" env:"LISTEN"`
	Log             LogConfig         `yaml:"log" env:"LOG"`
}

// ThrottleConfig limits outgoing requests. Zero RPS disables it.
type ThrottleConfig struct {
	RPS         int `yaml:"rps" env:"RPS" validate:"gte=0"`
	Burst       int `yaml:"burst" env:"BURST" validate:"gte=0,required_with=RPS"`
	MaxInFlight int `yaml:"max_in_flight" env:"MAX_IN_FLIGHT" validate:"gte=0"`
}

// ListenConfig configures the measuring receiver.
type ListenConfig struct {
	Addr              string        `yaml:"addr" env:"ADDR" validate:"required"`
	MaxCharsPerSecond float64       `yaml:"max_chars_per_second" env:"MAX_CHARS_PER_SECOND" validate:"gte=0"`
	Burst             int           `yaml:"burst" env:"BURST" validate:"gte=0"`
	MaxBodySize       int64         `yaml:"max_body_size" env:"MAX_BODY_SIZE" validate:"gt=0"`
	Echo              bool          `yaml:"echo" env:"ECHO"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gte=0"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" validate:"oneof=text json"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Method:         "POST",
		CharsPerSecond: pace.DefaultCharsPerSecond,
		Timeout:        5 * time.Minute,
		UserAgent:      "trickle/1.0",
		Listen: ListenConfig{
			Addr:            ":8080",
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 20 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load resolves the configuration. An empty path skips the file;
// a path that does not exist is an error.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadEnv(&cfg, EnvPrefix, getenv); err != nil {
		return Config{}, fmt.Errorf("loading env: %w", err)
	}

	cfg.Method = strings.ToUpper(cfg.Method)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration against its field rules.
func (c Config) Validate() error {
	return validateStruct(c)
}

// RequireURL reports a field error when no target URL is set.
func (c Config) RequireURL() error {
	if c.URL == "" {
		return FieldErrors{{Field: "url", Err: "This field is required"}}
	}

	return nil
}

// Pace returns the pacing settings.
func (c Config) Pace() pace.Config {
	return pace.Config{
		CharsPerSecond: c.CharsPerSecond,
		ChunkSize:      c.ChunkSize,
	}
}

// ThrottleEnabled reports whether outgoing requests are throttled.
func (c Config) ThrottleEnabled() bool {
	return c.Throttle.RPS > 0
}

// ThrottleConfig converts the throttle section for the client.
func (c Config) ThrottleConfig() throttle.Config {
	return throttle.Config{
		RPS:         c.Throttle.RPS,
		Burst:       c.Throttle.Burst,
		MaxInFlight: c.Throttle.MaxInFlight,
	}
}

// NewLogger builds a logger writing to w with the configured level and format.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
