// Package csrf provides double-submit-cookie CSRF protection as a pipeline stage.
package csrf

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultCookieName = "X-Csrf-Token"
	DefaultFormField  = "__token"
	DefaultExpiry     = 9 * time.Hour
	MinTokenBytes     = 32
)

// DefaultHeaderNames are checked in order for the submitted token.
var DefaultHeaderNames = []string{"X-Csrf-Token", "X-Xsrf-Token"}

// DefaultExcept exempts the root path.
var DefaultExcept = []string{"/"}

// DefaultMethods are the methods that must carry a valid token.
var DefaultMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch}

type Config struct {
	// Cookie
	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	Expiry         time.Duration

	// Token transport
	HeaderNames []string // priority order, e.g.: "X-Csrf-Token", "X-Xsrf-Token"
	FormField   string   // e.g.: "__token"

	// Scope
	Methods []string // methods that are verified
	Except  []string // nil means DefaultExcept; an empty slice exempts nothing

	// Extra security
	EnforceOriginCheck bool
	AllowedOrigin      string // if empty, uses the request host

	// Entropy, never below MinTokenBytes
	TokenBytes int
}

// Option customizes a Protector beyond its Config.
type Option func(*Protector)

// WithClock sets the time source used for cookie expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Protector) { p.now = now }
}

// WithEntropy sets the random source for new tokens. It must be a CSPRNG;
// the default is crypto/rand.Reader.
func WithEntropy(r io.Reader) Option {
	return func(p *Protector) { p.entropy = r }
}

// WithLogger sets the logger used for verification failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Protector) { p.logger = l }
}

// Protector verifies and rotates CSRF tokens. It is immutable after New and
// safe to share between requests.
type Protector struct {
	cfg     Config
	except  ExceptFilter
	methods map[string]bool

	now     func() time.Time
	entropy io.Reader
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New returns a Protector for cfg with defaults filled in.
//
// Params:
// - cfg: configuration; zero fields take the defaults above.
// - opts: optional clock, entropy source and logger.
//
// Returns:
// - the Protector, or an error if an Except pattern does not compile or the
//   cookie name, path or domain cannot appear in a Set-Cookie header.
func New(cfg Config, opts ...Option) (*Protector, error) {
	// reasonable defaults
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if len(cfg.HeaderNames) == 0 {
		cfg.HeaderNames = DefaultHeaderNames
	}
	if cfg.FormField == "" {
		cfg.FormField = DefaultFormField
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	if cfg.TokenBytes < MinTokenBytes {
		cfg.TokenBytes = MinTokenBytes
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = DefaultMethods
	}
	if cfg.Except == nil {
		cfg.Except = DefaultExcept
	}
	if cfg.CookieSameSite == 0 {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	sample := &http.Cookie{Name: cfg.CookieName, Value: "0", Path: cfg.CookiePath, Domain: cfg.CookieDomain}
	if err := sample.Valid(); err != nil {
		return nil, fmt.Errorf("csrf: %w", err)
	}

	// own copies, so the caller's slices can't change a live Protector
	cfg.HeaderNames = append([]string(nil), cfg.HeaderNames...)
	cfg.Methods = append([]string(nil), cfg.Methods...)
	cfg.Except = append([]string{}, cfg.Except...)

	except, err := NewExceptFilter(cfg.Except)
	if err != nil {
		return nil, fmt.Errorf("csrf: %w", err)
	}

	methods := make(map[string]bool, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods[m] = true
	}

	p := &Protector{
		cfg:     cfg,
		except:  except,
		methods: methods,
		now:     time.Now,
		entropy: rand.Reader,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/JeanGrijp/csrfchain/csrf"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Protector) Config() Config {
	cfg := p.cfg
	cfg.HeaderNames = append([]string(nil), cfg.HeaderNames...)
	cfg.Methods = append([]string(nil), cfg.Methods...)
	cfg.Except = append([]string{}, cfg.Except...)
	return cfg
}
