package pipeline

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// maxMemory bounds the in-memory part of a parsed multipart body.
const maxMemory = 32 << 20

// Request is a read-only view of an inbound HTTP request. Methods that change
// it return a new Request; the receiver is never modified.
type Request struct {
	method  string
	path    string
	header  http.Header
	cookies map[string]string
	form    url.Values
	ctx     context.Context
	raw     *http.Request
	writer  http.ResponseWriter
}

// NewRequest builds a Request from r. Form bodies (urlencoded or multipart)
// are parsed once here so later stages can read fields without touching the
// body again. The query string is never parsed, and a body that cannot be
// parsed leaves the form empty; neither can fail the request.
func NewRequest(r *http.Request) *Request {
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		// first occurrence wins, as with (*http.Request).Cookie
		if _, seen := cookies[c.Name]; !seen {
			cookies[c.Name] = c.Value
		}
	}

	form := url.Values{}
	for k, v := range parseBody(r) {
		form[k] = append([]string(nil), v...)
	}

	return &Request{
		method:  r.Method,
		path:    r.URL.Path,
		header:  r.Header.Clone(),
		cookies: cookies,
		form:    form,
		ctx:     r.Context(),
		raw:     r,
	}
}

// parseBody parses a form body on a copy of r with the query stripped, then
// hands the result back to r so net/http handlers further down still see it.
func parseBody(r *http.Request) url.Values {
	if r.PostForm != nil {
		return r.PostForm
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/x-www-form-urlencoded" && ct != "multipart/form-data" {
		return nil
	}

	body := r.Clone(r.Context())
	body.URL.RawQuery = ""
	if ct == "multipart/form-data" {
		_ = body.ParseMultipartForm(maxMemory)
	} else {
		_ = body.ParseForm()
	}

	r.PostForm = body.PostForm
	r.MultipartForm = body.MultipartForm
	return body.PostForm
}

// Method returns the HTTP method, e.g. "POST".
func (r *Request) Method() string { return r.method }

// Path returns the URL path.
func (r *Request) Path() string { return r.path }

// Host returns the Host the request was sent to.
func (r *Request) Host() string {
	if r.raw == nil {
		return ""
	}
	return r.raw.Host
}

// Header returns every value of the named header joined by ", ". Lookup is
// case-insensitive. A missing header yields "".
func (r *Request) Header(name string) string {
	return strings.Join(r.header.Values(name), ", ")
}

// Cookie returns the value of the named cookie and whether it was sent.
func (r *Request) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

// Cookies returns a copy of the cookie mapping.
func (r *Request) Cookies() map[string]string {
	out := make(map[string]string, len(r.cookies))
	for k, v := range r.cookies {
		out[k] = v
	}
	return out
}

// FormValue returns the first value of a parsed body field. Query string
// parameters are not consulted.
func (r *Request) FormValue(name string) string {
	return r.form.Get(name)
}

// Is reports whether the path matches pattern. The pattern is either an
// exact path or a glob where "*" spans any characters, "/" included.
func (r *Request) Is(pattern string) bool {
	p, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return p.Match(r.path)
}

// Context returns the request context.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a copy of r carrying ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("pipeline: nil context")
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// HTTP returns the underlying *http.Request bound to the current context, for
// handing the request to plain net/http handlers.
func (r *Request) HTTP() *http.Request {
	if r.raw == nil {
		return nil
	}
	return r.raw.WithContext(r.Context())
}

func (r *Request) withWriter(w http.ResponseWriter) *Request {
	r2 := *r
	r2.writer = w
	return &r2
}
