package httpx

import "net/http"

// Link is one element of a middleware chain. Exactly two variants exist and
// each middleware declares which one it is by its type, so composition never
// has to introspect anything at runtime.
type Link interface {
	apply(next http.Handler) http.Handler
}

// Wrap is the continuation-accepting variant: it receives the downstream
// handler explicitly, decides when and whether to invoke it, and may
// post-process whatever the downstream wrote.
type Wrap func(next http.Handler) http.Handler

func (m Wrap) apply(next http.Handler) http.Handler { return m(next) }

// Gate is the context-only variant: it looks at the request alone and either
// writes a terminal response (returning true) or lets the chain continue
// (returning false). A Gate never sees its continuation.
type Gate func(w http.ResponseWriter, r *http.Request) (handled bool)

func (g Gate) apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Chain composes links around a terminal handler by folding from the last
// link to the first, so invoking the result runs links in declared order.
// Any link that writes a terminal response stops everything downstream of
// it; already-entered Wrap links still unwind normally and may post-process.
func Chain(h http.Handler, links ...Link) http.Handler {
	for i := len(links) - 1; i >= 0; i-- {
		h = links[i].apply(h)
	}
	return h
}
