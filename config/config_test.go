package config_test

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JeanGrijp/csrfchain/config"
	"github.com/JeanGrijp/csrfchain/csrf"
)

// isolate hides CSRFD_* variables from the host environment and returns a
// path for a config file holding body.
func isolate(t *testing.T, body string) string {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	if body == "" {
		return ""
	}
	path := filepath.Join(t.TempDir(), "csrfd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func load(t *testing.T, body string) config.Config {
	t.Helper()
	cfg, err := config.Load(isolate(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := load(t, "")

	if cfg.Server.Addr() != "0.0.0.0:8989" {
		t.Errorf("Addr = %q", cfg.Server.Addr())
	}
	if cfg.Server.ReadTimeout != 15*time.Second || cfg.Server.HealthPath != "/healthz" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.CSRF.SameSite != "lax" {
		t.Errorf("same_site = %q", cfg.CSRF.SameSite)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Telemetry.MetricsPath != "/metrics" || cfg.Telemetry.Tracing {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}

	opts := cfg.CSRF.Options()
	if opts.Except != nil {
		t.Errorf("absent except list must fall back to the csrf default, got %v", opts.Except)
	}
	if opts.CookieSameSite != http.SameSiteLaxMode {
		t.Errorf("CookieSameSite = %v", opts.CookieSameSite)
	}

	p, err := csrf.New(opts)
	if err != nil {
		t.Fatalf("csrf.New: %v", err)
	}
	if got := p.Config(); len(got.Except) != 1 || got.Except[0] != "/" || got.Expiry != csrf.DefaultExpiry {
		t.Errorf("effective csrf config = %+v", got)
	}
}

func TestFile(t *testing.T) {
	cfg := load(t, `
server:
  port: 9090
  read_timeout: 5s
csrf:
  cookie_name: my-csrf
  cookie_secure: true
  same_site: Strict
  expiry: 30m
  methods: [post, delete]
  except:
    - /webhooks/*
log:
  level: DEBUG
  format: text
`)

	if cfg.Server.Port != 9090 || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.WriteTimeout != 15*time.Second {
		t.Errorf("unset write_timeout should keep its default, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.CSRF.SameSite != "strict" || cfg.Log.Level != "debug" {
		t.Errorf("values not normalized: %q %q", cfg.CSRF.SameSite, cfg.Log.Level)
	}
	if strings.Join(cfg.CSRF.Methods, ",") != "POST,DELETE" {
		t.Errorf("methods = %v", cfg.CSRF.Methods)
	}

	opts := cfg.CSRF.Options()
	if opts.CookieName != "my-csrf" || !opts.CookieSecure {
		t.Errorf("cookie = %q secure=%v", opts.CookieName, opts.CookieSecure)
	}
	if opts.CookieSameSite != http.SameSiteStrictMode || opts.Expiry != 30*time.Minute {
		t.Errorf("same_site=%v expiry=%v", opts.CookieSameSite, opts.Expiry)
	}
	if len(opts.Except) != 1 || opts.Except[0] != "/webhooks/*" {
		t.Errorf("except = %v", opts.Except)
	}
}

func TestEmptyExceptVerifiesEverything(t *testing.T) {
	cfg := load(t, "csrf:\n  except: []\n")

	if cfg.CSRF.Except == nil || len(cfg.CSRF.Except) != 0 {
		t.Fatalf("expected an empty, non-nil except list, got %#v", cfg.CSRF.Except)
	}
	p, err := csrf.New(cfg.CSRF.Options())
	if err != nil {
		t.Fatalf("csrf.New: %v", err)
	}
	if len(p.Config().Except) != 0 {
		t.Fatalf("Except = %v", p.Config().Except)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := isolate(t, "server:\n  port: 9090\nlog:\n  format: text\n")
	t.Setenv("CSRFD_SERVER__PORT", "7000")
	t.Setenv("CSRFD_CSRF__COOKIE_NAME", "from-env")
	t.Setenv("CSRFD_TELEMETRY__TRACING", "true")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("format = %q, file value should survive", cfg.Log.Format)
	}
	if cfg.CSRF.CookieName != "from-env" || !cfg.Telemetry.Tracing {
		t.Errorf("env values not applied: %q tracing=%v", cfg.CSRF.CookieName, cfg.Telemetry.Tracing)
	}
}

func TestMissingFile(t *testing.T) {
	isolate(t, "")
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"unknown same_site", "csrf:\n  same_site: sometimes\n"},
		{"same_site none without secure", "csrf:\n  same_site: none\n"},
		{"token too short", "csrf:\n  token_bytes: 16\n"},
		{"bad except pattern", "csrf:\n  except: ['/files/[a-']\n"},
		{"unknown method", "csrf:\n  methods: [FETCH]\n"},
		{"invalid cookie name", "csrf:\n  cookie_name: 'bad name'\n"},
		{"unknown log level", "log:\n  level: loud\n"},
		{"health path without slash", "server:\n  health_path: healthz\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := config.Load(isolate(t, tt.yaml)); err == nil {
				t.Fatalf("expected a validation error")
			}
		})
	}
}

func TestSameSiteNoneWithSecure(t *testing.T) {
	cfg := load(t, "csrf:\n  same_site: none\n  cookie_secure: true\n")
	if got := cfg.CSRF.Options().CookieSameSite; got != http.SameSiteNoneMode {
		t.Fatalf("CookieSameSite = %v", got)
	}
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
	} {
		if got := (config.Log{Level: level}).SlogLevel().String(); got != want {
			t.Errorf("SlogLevel(%q) = %s, want %s", level, got, want)
		}
	}
}
