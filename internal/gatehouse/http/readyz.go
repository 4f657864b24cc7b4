package http

import (
	"net/http"
	"time"

	"github.com/mveljko/gatehouse/internal/gatehouse/store"
	"github.com/mveljko/gatehouse/pkg/httpx"
	"github.com/mveljko/gatehouse/pkg/kvx"
)

// ReadyzHandler is the readiness probe. It checks the database and the
// token store; either one failing degrades the service to 503, since a
// dead token store means every session reads as revoked and every rate
// limit check denies.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	kv kvx.Store,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Database:   "ok",
			TokenStore: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := kv.Ping(r.Context()); err != nil {
			checks.TokenStore = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
