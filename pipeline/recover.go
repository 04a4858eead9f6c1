package pipeline

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover returns the stage that turns failures from the rest of the chain
// into responses. An HTTPError keeps its status and message; any other error
// or panic becomes a generic 500. The error is never passed further up.
//
// Place it before (outside) every stage whose errors it should catch.
func Recover(logger *slog.Logger) Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return StageFunc(func(req *Request, next Handler) (res *Response, err error) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.Error("panic recovered",
				"error", v,
				"stack", string(debug.Stack()),
				"method", req.Method(),
				"path", req.Path(),
			)
			res, err = errorResponse(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)), nil
		}()

		res, err = next.Handle(req)
		if err != nil {
			return Translate(logger, req, err), nil
		}
		return res, nil
	})
}

// Translate builds the response for err.
func Translate(logger *slog.Logger, req *Request, err error) *Response {
	var herr HTTPError
	if errors.As(err, &herr) {
		logger.Warn("request rejected",
			"error", herr,
			"status", herr.HTTPStatus(),
			"method", req.Method(),
			"path", req.Path(),
		)
		return errorResponse(herr.HTTPStatus(), herr.Error())
	}

	logger.Error("request failed",
		"error", err,
		"method", req.Method(),
		"path", req.Path(),
	)
	return errorResponse(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func errorResponse(status int, msg string) *Response {
	res := Text(status, msg)
	res.Header().Set("X-Content-Type-Options", "nosniff")
	return res
}
