// Package config loads the csrfd configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// environment variables with the CSRFD_ prefix. A double underscore nests:
// CSRFD_SERVER__PORT sets server.port and CSRFD_CSRF__SAME_SITE sets
// csrf.same_site.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/JeanGrijp/csrfchain/csrf"
	"github.com/JeanGrijp/csrfchain/pipeline"
)

// EnvPrefix marks the environment variables read by Load.
const EnvPrefix = "CSRFD_"

// Config holds the complete application configuration.
type Config struct {
	Server    Server    `koanf:"server"`
	CSRF      CSRF      `koanf:"csrf"`
	Log       Log       `koanf:"log"`
	Telemetry Telemetry `koanf:"telemetry"`
}

// Server configures the HTTP listener.
type Server struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	HealthPath      string        `koanf:"health_path" validate:"required,startswith=/"`
}

// CSRF mirrors csrf.Config. Zero values and absent lists take the csrf
// package defaults; an explicit empty except list exempts nothing.
type CSRF struct {
	CookieName         string        `koanf:"cookie_name" validate:"omitempty,cookiename"`
	CookiePath         string        `koanf:"cookie_path"`
	CookieDomain       string        `koanf:"cookie_domain"`
	CookieSecure       bool          `koanf:"cookie_secure" validate:"required_if=SameSite none"`
	SameSite           string        `koanf:"same_site" validate:"oneof=lax strict none"`
	Expiry             time.Duration `koanf:"expiry" validate:"gte=0"`
	HeaderNames        []string      `koanf:"header_names" validate:"omitempty,dive,required"`
	FormField          string        `koanf:"form_field"`
	Methods            []string      `koanf:"methods" validate:"omitempty,dive,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	Except             []string      `koanf:"except" validate:"omitempty,dive,pathpattern"`
	EnforceOriginCheck bool          `koanf:"enforce_origin_check"`
	AllowedOrigin      string        `koanf:"allowed_origin"`
	TokenBytes         int           `koanf:"token_bytes" validate:"omitempty,min=32"`
}

// Log configures structured logging.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// Telemetry configures tracing and the metrics endpoint.
type Telemetry struct {
	Tracing     bool   `koanf:"tracing"`
	ServiceName string `koanf:"service_name" validate:"required"`
	MetricsPath string `koanf:"metrics_path" validate:"omitempty,startswith=/"`
}

var defaults = map[string]any{
	"server.host":             "0.0.0.0",
	"server.port":             8989,
	"server.read_timeout":     15 * time.Second,
	"server.write_timeout":    15 * time.Second,
	"server.shutdown_timeout": 10 * time.Second,
	"server.health_path":      "/healthz",
	"csrf.same_site":          "lax",
	"log.level":               "info",
	"log.format":              "json",
	"telemetry.service_name":  "csrfd",
	"telemetry.metrics_path":  "/metrics",
}

// Load reads configuration from the given YAML file path, then applies
// environment variable overrides. If path is empty, only defaults and
// environment variables are used.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, v); err != nil {
				return Config{}, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.CSRF.SameSite = strings.ToLower(c.CSRF.SameSite)
	for i, m := range c.CSRF.Methods {
		c.CSRF.Methods[i] = strings.ToUpper(m)
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("pathpattern", func(fl validator.FieldLevel) bool {
		_, err := pipeline.CompilePattern(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("cookiename", func(fl validator.FieldLevel) bool {
		return (&http.Cookie{Name: fl.Field().String(), Value: "0"}).Valid() == nil
	})
	return v
}

// Validate checks that the configuration is internally consistent.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the listen address as "host:port".
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Options converts c into the csrf package configuration.
func (c CSRF) Options() csrf.Config {
	return csrf.Config{
		CookieName:         c.CookieName,
		CookiePath:         c.CookiePath,
		CookieDomain:       c.CookieDomain,
		CookieSecure:       c.CookieSecure,
		CookieSameSite:     sameSiteMode(c.SameSite),
		Expiry:             c.Expiry,
		HeaderNames:        c.HeaderNames,
		FormField:          c.FormField,
		Methods:            c.Methods,
		Except:             c.Except,
		EnforceOriginCheck: c.EnforceOriginCheck,
		AllowedOrigin:      c.AllowedOrigin,
		TokenBytes:         c.TokenBytes,
	}
}

func sameSiteMode(s string) http.SameSite {
	switch s {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	}
	return 0
}

// SlogLevel maps the configured level name to a slog.Level.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
