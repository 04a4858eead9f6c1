// Package pipeline runs a request through an ordered chain of stages.
//
// A Pipeline is built once from a list of stages plus a final handler and is
// then shared, read-only, by every request. Each call to Handle walks the
// stages with a fresh cursor: stage[0] receives a continuation that runs
// stage[1], and so on until the final handler is reached.
//
//	p := pipeline.New(pipeline.HTTPHandler(router),
//		pipeline.ResponseEmitter(),
//		pipeline.Recover(logger),
//		protector,
//	)
//	http.ListenAndServe(":8989", p)
//
// A stage may return a Response without calling its continuation
// (short-circuit), or return an error. Errors travel back up the chain until a
// stage built to translate them, such as Recover, turns them into a Response.
// Errors implementing HTTPError choose their own status code; anything else
// becomes a 500.
package pipeline
