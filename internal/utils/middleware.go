package utils

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-registration/internal/logger"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger records method, path, status and latency of every request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), fmt.Sprintf("%dms", time.Since(start).Milliseconds()))
		})
	}
}
