package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vlad-lazar/sokrati/internal/auth"
	"go.uber.org/zap"
)

type callerKey struct{}

func callerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// authenticated resolves the bearer token before the handler runs; every
// failure is a 401 carrying the verifier's reason.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err == nil {
			var uid string
			uid, err = s.verifier.Verify(r.Context(), token)
			if err == nil {
				next(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, uid)))
				return
			}
		}

		reason := auth.Reason(err)
		s.logger.Warn("Rejected credential",
			zap.String("reason", reason),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:  "Unauthorized: missing or invalid token.",
			Kind:   "unauthenticated",
			Reason: reason,
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
