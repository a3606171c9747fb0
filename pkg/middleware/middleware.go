package middleware

import "net/http"

// Func wraps a handler with cross-cutting behavior.
type Func func(http.Handler) http.Handler

// Chain is an ordered middleware stack. The first entry sees the request
// first.
type Chain []Func

func (c *Chain) Use(fns ...Func) {
	*c = append(*c, fns...)
}

// Then wraps h in every middleware of the chain.
func (c Chain) Then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}
