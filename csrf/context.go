package csrf

import "context"

type tokenKey struct{}

// contextWithToken returns a derived context carrying the token that will be
// issued with the response.
//
// Params:
// - ctx: base context to attach the token to.
// - tok: the freshly minted token.
//
// Returns:
// - a new context containing the token.
func contextWithToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, tokenKey{}, tok)
}

func tokenFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(tokenKey{}).(string)
	return s, ok && s != ""
}
