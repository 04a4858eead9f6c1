package pipeline

import (
	"bytes"
	"net/http"
)

// Response is the value handed back up the chain. It is mutable until it has
// been emitted. Response implements http.ResponseWriter so net/http handlers
// can write into it directly.
type Response struct {
	status      int
	header      http.Header
	body        bytes.Buffer
	wroteHeader bool
	sent        bool
}

// NewResponse returns an empty Response with the given status.
func NewResponse(status int) *Response {
	return &Response{status: status, header: make(http.Header)}
}

// Text returns a text/plain Response.
func Text(status int, body string) *Response {
	res := NewResponse(status)
	res.header.Set("Content-Type", "text/plain; charset=utf-8")
	res.body.WriteString(body)
	return res
}

// Status returns the status code.
func (res *Response) Status() int { return res.status }

// SetStatus replaces the status code.
func (res *Response) SetStatus(code int) { res.status = code }

// Header returns the header map. Use Add for headers that repeat, such as
// Set-Cookie.
func (res *Response) Header() http.Header { return res.header }

// Write appends to the body.
func (res *Response) Write(p []byte) (int, error) {
	res.wroteHeader = true
	return res.body.Write(p)
}

// WriteHeader records the status. Only the first call has an effect, matching
// net/http.
func (res *Response) WriteHeader(code int) {
	if res.wroteHeader {
		return
	}
	res.wroteHeader = true
	res.status = code
}

// Body returns the buffered body.
func (res *Response) Body() []byte { return res.body.Bytes() }

// Sent reports whether the response has already been written to the wire.
func (res *Response) Sent() bool { return res.sent }

// Emit writes status, headers and body to w and marks the response sent.
func (res *Response) Emit(w http.ResponseWriter) error {
	dst := w.Header()
	for k, vs := range res.header {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	w.WriteHeader(res.status)
	res.sent = true
	_, err := w.Write(res.body.Bytes())
	return err
}
