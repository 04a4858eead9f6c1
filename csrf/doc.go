// Package csrf provides CSRF protection using the double-submit cookie
// pattern, packaged as a stage for the pipeline package.
//
// How it works
//   - POST, PUT and PATCH requests must carry the token twice: in the
//     X-Csrf-Token cookie, and echoed back in the X-Csrf-Token header, the
//     X-Xsrf-Token header, or the __token form field (checked in that order).
//     The two values are compared in constant time.
//   - Paths listed in Config.Except (by default only "/") and all other
//     methods skip the check.
//   - Every response that passes through the Protector gets a new token in a
//     Set-Cookie header, valid for 9 hours. The cookie is not HttpOnly so
//     client script can read and echo it.
//   - A failed check returns *Error. Place pipeline.Recover before the
//     Protector to turn it into a 419 response.
//
// # Configuration
//
// All behavior is driven by Config. Key fields include:
//   - CookieName, CookiePath, CookieDomain, CookieSecure, CookieSameSite, Expiry
//   - HeaderNames (default: "X-Csrf-Token", "X-Xsrf-Token")
//   - FormField (default: "__token")
//   - Methods (default: POST, PUT, PATCH) and Except (default: "/")
//   - EnforceOriginCheck and AllowedOrigin (empty means use the request host)
//   - TokenBytes (default and minimum: 32)
//
// Typical usage
//
//	p, err := csrf.New(csrf.Config{Except: []string{"/", "/webhooks/*"}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	chain := pipeline.New(pipeline.HTTPHandler(appMux),
//	    pipeline.ResponseEmitter(),
//	    pipeline.Recover(logger),
//	    p,
//	)
//	http.ListenAndServe(":8989", chain)
//
// Or as plain middleware:
//
//	http.ListenAndServe(":8989", p.Protect(appMux))
//
// In handlers, read the token being issued to render it into a form:
//
//	if tok, ok := csrf.TokenFromContext(r.Context()); ok {
//	    // <input type="hidden" name="__token" value="{{tok}}">
//	}
package csrf
