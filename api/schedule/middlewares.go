package schedule

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/monitoring"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.log.Debugw("request handled", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start).String(),
		})
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				h.log.Errorf("%s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
				monitoring.CaptureException(err, map[string]string{"module": "api", "path": r.URL.Path})
				h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{model.NewReason("INTERNAL", "internal error")})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
