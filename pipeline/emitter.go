package pipeline

// ResponseEmitter returns the stage that writes the finished response to the
// connection. It runs the rest of the chain, then emits the result to the
// http.ResponseWriter the request arrived on. Errors pass through untouched
// and nothing is written for them.
//
// Requests not created by (*Pipeline).ServeHTTP carry no writer; for those the
// response is simply returned.
func ResponseEmitter() Stage {
	return StageFunc(func(req *Request, next Handler) (*Response, error) {
		res, err := next.Handle(req)
		if err != nil {
			return nil, err
		}
		if req.writer != nil && !res.Sent() {
			// a failed write means the client is gone; headers are already out
			_ = res.Emit(req.writer)
		}
		return res, nil
	})
}
