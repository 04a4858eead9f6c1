package stages

import (
	"net/http"

	"github.com/JeanGrijp/csrfchain/pipeline"
)

// Healthz answers GET and HEAD on path with 200 "OK" without running the
// rest of the chain. Other requests pass through.
func Healthz(path string) pipeline.Stage {
	return pipeline.StageFunc(func(req *pipeline.Request, next pipeline.Handler) (*pipeline.Response, error) {
		if req.Path() != path {
			return next.Handle(req)
		}
		switch req.Method() {
		case http.MethodGet, http.MethodHead:
			res := pipeline.Text(http.StatusOK, "OK")
			res.Header().Set("Cache-Control", "no-store")
			return res, nil
		}
		return next.Handle(req)
	})
}
