package pipeline

import (
	"errors"
	"net/http"
)

// ErrNoResponse is returned when a stage or handler returns neither a
// Response nor an error.
var ErrNoResponse = errors.New("pipeline: no response produced")

// Handler produces the Response for a Request. The final handler of a
// pipeline and the continuation passed to each stage are both Handlers.
type Handler interface {
	Handle(req *Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *Request) (*Response, error)

func (f HandlerFunc) Handle(req *Request) (*Response, error) { return f(req) }

// Stage is one step of a pipeline. It receives the request and the rest of
// the chain; calling next.Handle continues, returning without doing so
// short-circuits.
type Stage interface {
	Process(req *Request, next Handler) (*Response, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(req *Request, next Handler) (*Response, error)

func (f StageFunc) Process(req *Request, next Handler) (*Response, error) { return f(req, next) }

// HTTPError is implemented by errors that pick their own response status.
type HTTPError interface {
	error
	HTTPStatus() int
}

// Pipeline is an ordered, immutable list of stages ending in a final handler.
// It is safe for concurrent use.
type Pipeline struct {
	stages []Stage
	final  Handler
}

// New builds a Pipeline. The first stage is the outermost: it sees the
// request first and the response last.
//
// Params:
// - final: handler invoked after the last stage; nil answers 404.
// - stages: stages in execution order.
//
// Returns:
// - a Pipeline ready to be shared by all requests.
func New(final Handler, stages ...Stage) *Pipeline {
	return &Pipeline{
		stages: append([]Stage(nil), stages...),
		final:  final,
	}
}

// Then returns a pipeline with the same stages and a different final handler.
func (p *Pipeline) Then(final Handler) *Pipeline {
	return &Pipeline{stages: p.stages, final: final}
}

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Handle runs req through every stage and the final handler.
func (p *Pipeline) Handle(req *Request) (*Response, error) {
	return cursor{p: p}.Handle(req)
}

// cursor is the continuation handed to stage i-1. A new one is created per
// step, so no state is shared between requests.
type cursor struct {
	p *Pipeline
	i int
}

func (c cursor) Handle(req *Request) (*Response, error) {
	var (
		res *Response
		err error
	)
	switch {
	case c.i < len(c.p.stages):
		res, err = c.p.stages[c.i].Process(req, cursor{p: c.p, i: c.i + 1})
	case c.p.final == nil:
		res = Text(http.StatusNotFound, "Not Found")
	default:
		res, err = c.p.final.Handle(req)
	}
	if err == nil && res == nil {
		err = ErrNoResponse
	}
	return res, err
}

// ServeHTTP lets a Pipeline serve as an http.Handler. Errors that escape every
// stage are answered with a bare 500, and responses no stage emitted are
// written here.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := p.Handle(NewRequest(r).withWriter(w))
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !res.Sent() {
		_ = res.Emit(w)
	}
}

// HTTPHandler adapts an http.Handler (a router, a mux) into a final Handler.
// The handler writes into a fresh 200 Response.
func HTTPHandler(h http.Handler) Handler {
	return HandlerFunc(func(req *Request) (*Response, error) {
		res := NewResponse(http.StatusOK)
		h.ServeHTTP(res, req.HTTP())
		return res, nil
	})
}

// Middleware returns the stages as a func(http.Handler) http.Handler, the
// shape chi's Use and similar routers expect.
func Middleware(stages ...Stage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return New(HTTPHandler(next), stages...)
	}
}
