package httpx

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/mveljko/gatehouse/pkg/slogx"
)

// Recover is the error boundary. It must be the outermost route link so it
// observes panics from every other middleware and the handler. Expected
// failures never reach it, services convert those into values, so anything
// recovered here is either a deliberately thrown *Error (rendered with its
// own status and message) or a genuine bug (logged in full, rendered as an
// opaque 500 with only the correlation ID).
//
// When debugMode is true the panic detail is included in the body to make
// local development bearable. Never enable it in production.
func Recover(debugMode bool) Wrap {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				if httpErr, ok := rec.(*Error); ok {
					WriteError(w, r, httpErr.Status, httpErr.Message)
					return
				}

				log := slogx.FromContext(r.Context())
				log.Error("panic recovered",
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)

				if debugMode {
					WriteError(w, r, http.StatusInternalServerError, fmt.Sprint(rec))
					return
				}
				WriteError(w, r, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
