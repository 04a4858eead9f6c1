package csrf

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/JeanGrijp/csrfchain/pipeline"
)

// Process implements pipeline.Stage.
//
// Behavior:
//   - For verified methods (POST/PUT/PATCH by default) on a non-exempt path:
//     requires the token cookie, optionally validates Origin/Referer, and
//     compares the submitted token (headers in order, then the body field)
//     in constant time against the cookie. Any failure returns *Error and the
//     rest of the chain is not run.
//   - Every request that gets past the check, verified or not, leaves with a
//     freshly minted token in a Set-Cookie header. The new token is also put in
//     the request context for downstream handlers (see TokenFromContext).
//
// Params:
// - req: the incoming request.
// - next: the rest of the chain.
//
// Returns:
// - next's response with the rotated cookie added, or the error that stopped it.
func (p *Protector) Process(req *pipeline.Request, next pipeline.Handler) (*pipeline.Response, error) {
	ctx, span := p.tracer.Start(req.Context(), "csrf.process")
	defer span.End()

	verify := p.ShouldVerify(req)
	span.SetAttributes(attribute.Bool("csrf.verify", verify))

	if verify {
		if err := p.verify(req); err != nil {
			var cerr *Error
			if errors.As(err, &cerr) {
				span.SetAttributes(attribute.String("csrf.reason", cerr.Reason.String()))
			}
			span.SetStatus(codes.Error, err.Error())
			p.logger.DebugContext(ctx, "csrf verification failed",
				"error", err,
				"method", req.Method(),
				"path", req.Path(),
			)
			return nil, err
		}
	}

	tok, err := NewToken(p.entropy, p.cfg.TokenBytes)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("csrf: mint token: %w", err)
	}

	res, err := next.Handle(req.WithContext(contextWithToken(ctx, tok)))
	if err != nil {
		return nil, err
	}

	c := p.Cookie(tok, p.now()).String()
	if c == "" {
		return nil, fmt.Errorf("csrf: cookie %q cannot be rendered", p.cfg.CookieName)
	}
	res.Header().Add("Set-Cookie", c)
	return res, nil
}

// ShouldVerify reports whether req must carry a valid token: its method is
// one of Config.Methods and its path matches no Except pattern.
func (p *Protector) ShouldVerify(req *pipeline.Request) bool {
	if !p.methods[req.Method()] {
		return false
	}
	return !p.except.Match(req.Path())
}

func (p *Protector) verify(req *pipeline.Request) error {
	cfg := p.cfg

	// 1) the previously issued token must be present
	cookieToken, ok := req.Cookie(cfg.CookieName)
	if !ok {
		return &Error{Reason: MissingCookie}
	}

	// 2) Origin/Referer validation (if enabled)
	if cfg.EnforceOriginCheck {
		if err := validateOriginOrReferer(req, cfg.AllowedOrigin); err != nil {
			return &Error{Reason: BadOrigin, cause: err}
		}
	}

	// 3) an empty submission never matches, even against an empty cookie
	clientToken := extractClientToken(req, cfg.HeaderNames, cfg.FormField)
	if clientToken == "" {
		return &Error{Reason: Mismatch}
	}

	// 4) time-constant compare
	if subtle.ConstantTimeCompare([]byte(clientToken), []byte(cookieToken)) != 1 {
		return &Error{Reason: Mismatch}
	}
	return nil
}

// Protect wraps next with a two-stage pipeline (Recover, then this
// Protector) so the Protector can be used as plain net/http middleware, for
// example with chi's r.Use. Failures are answered with 419.
func (p *Protector) Protect(next http.Handler) http.Handler {
	return pipeline.New(pipeline.HTTPHandler(next), pipeline.Recover(p.logger), p)
}

// TokenFromContext returns the CSRF token stored in ctx, if present. Behind
// a Protector this is the token being issued with the current response.
func TokenFromContext(ctx context.Context) (string, bool) {
	return tokenFromContext(ctx)
}

// TokenHandler returns an HTTP handler that writes the token being issued
// with the current response. SPAs can fetch it and attach it to later
// requests; it equals the value of the Set-Cookie on the same response.
func (p *Protector) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := TokenFromContext(r.Context()); ok {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(tok))
			return
		}
		http.Error(w, "no token", http.StatusInternalServerError)
	})
}

// validateOriginOrReferer checks whether the request is same-site according
// to the allowed host. When allowed is empty, it falls back to the request
// host. Origin is preferred; Referer is used only when Origin is absent.
func validateOriginOrReferer(r *pipeline.Request, allowed string) error {
	host := allowed
	if host == "" {
		host = r.Host()
	}

	origin := r.Header("Origin")
	ref := r.Header("Referer")

	if origin == "" && ref == "" {
		return errors.New("no origin/referer")
	}
	if origin != "" && !sameSite(origin, host) {
		return errors.New("bad origin")
	}
	if origin == "" && !sameSite(ref, host) {
		return errors.New("bad referer")
	}
	return nil
}
