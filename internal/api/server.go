package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vlad-lazar/sokrati/internal/auth"
	"github.com/vlad-lazar/sokrati/internal/notes"
	"go.uber.org/zap"
)

// Revoker is implemented by verifiers that can invalidate a user's tokens.
type Revoker interface {
	RevokeTokens(userID string)
}

type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

type Server struct {
	notes    *notes.Service
	verifier auth.Verifier
	logger   *zap.Logger
	opts     Options
	http     *http.Server
}

func NewServer(svc *notes.Service, verifier auth.Verifier, logger *zap.Logger, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		notes:    svc,
		verifier: verifier,
		logger:   logger,
		opts:     opts,
	}
	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.Handle("POST /api/notes", s.authenticated(s.handleCreateNote))
	mux.Handle("GET /api/notes", s.authenticated(s.handleListNotes))
	mux.Handle("GET /api/notes/{id}", s.authenticated(s.handleGetNote))
	mux.Handle("PATCH /api/notes/{id}", s.authenticated(s.handleUpdateNote))
	mux.Handle("DELETE /api/notes/{id}", s.authenticated(s.handleDeleteNote))
	mux.Handle("GET /api/insights/sentiment-over-time", s.authenticated(s.handleSentimentOverTime))
	mux.Handle("POST /api/ai/sentiment", s.authenticated(s.handleAnalyzeSentiment))
	mux.Handle("POST /api/auth/revoke", s.authenticated(s.handleRevoke))

	return s.logRequests(mux)
}

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.opts.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
