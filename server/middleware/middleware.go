package middleware

import "net/http"

// Middleware wraps an http.Handler. Every middleware in this package has
// this signature so the same stack covers the Gin routes and the stream
// endpoint mounted beside them.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares; the first is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
