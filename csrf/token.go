package csrf

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JeanGrijp/csrfchain/pipeline"
)

// NewToken reads n bytes from r and returns them as lowercase hex.
func NewToken(r io.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Cookie returns the cookie that carries token, expiring Expiry after now.
// HttpOnly is always off: client script must read the value to echo it back.
func (p *Protector) Cookie(token string, now time.Time) *http.Cookie {
	cfg := p.cfg
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
		Expires:  now.Add(cfg.Expiry),
		MaxAge:   int(cfg.Expiry / time.Second),
		Secure:   cfg.CookieSecure,
		HttpOnly: false,
		SameSite: cfg.CookieSameSite,
	}
}

// extractClientToken returns the first non-empty header from headerNames,
// falling back to the body field.
func extractClientToken(r *pipeline.Request, headerNames []string, formField string) string {
	// headers win, in order
	for _, name := range headerNames {
		if h := r.Header(name); h != "" {
			return h
		}
	}
	return r.FormValue(formField)
}

// sameSite reports whether originOrRef points at allowedHost.
func sameSite(originOrRef, allowedHost string) bool {
	u, err := url.Parse(originOrRef)
	if err != nil {
		return false
	}
	// host only, port included
	return strings.EqualFold(u.Host, allowedHost)
}
