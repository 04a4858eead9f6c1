package stages

import (
	"log/slog"
	"time"

	"github.com/JeanGrijp/csrfchain/pipeline"
)

// Logging returns a stage that logs each request using slog.
// It records the method, path, status code, duration and request ID.
// Requests that end in an error are logged at error level and the error is
// passed on unchanged.
func Logging(logger *slog.Logger) pipeline.Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return pipeline.StageFunc(func(req *pipeline.Request, next pipeline.Handler) (*pipeline.Response, error) {
		start := time.Now()
		res, err := next.Handle(req)

		attrs := []any{
			"method", req.Method(),
			"path", req.Path(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFromContext(req.Context()),
		}
		if err != nil {
			logger.ErrorContext(req.Context(), "request failed", append(attrs, "error", err)...)
			return nil, err
		}
		logger.InfoContext(req.Context(), "request completed", append(attrs, "status", res.Status())...)
		return res, nil
	})
}
