package stages

import (
	"context"

	"github.com/google/uuid"

	"github.com/JeanGrijp/csrfchain/pipeline"
)

// HeaderRequestID is read from the request and echoed on the response.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestID reuses an inbound X-Request-ID or mints a UUID, stores it in the
// request context and sets it on the response, including error responses
// produced further down the chain.
func RequestID() pipeline.Stage {
	return pipeline.StageFunc(func(req *pipeline.Request, next pipeline.Handler) (*pipeline.Response, error) {
		id := req.Header(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := context.WithValue(req.Context(), requestIDKey{}, id)
		res, err := next.Handle(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		res.Header().Set(HeaderRequestID, id)
		return res, nil
	})
}

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
