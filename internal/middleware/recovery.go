package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/altarlane/marketplace/internal/errors"
	internalhttputil "github.com/altarlane/marketplace/internal/httputil"
	"github.com/altarlane/marketplace/internal/logging"
)

// Recovery converts handler panics into 500 responses.
func Recovery(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.WithContext(r.Context()).WithFields(map[string]interface{}{
						"panic": rec,
						"stack": string(debug.Stack()),
						"path":  r.URL.Path,
					}).Error("handler panic")
					se := errors.Internal("internal error", nil)
					internalhttputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
