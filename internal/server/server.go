package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cortexai/chatbi/internal/config"
	"github.com/cortexai/chatbi/internal/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg     *config.Config
	app     *App
	http    *http.Server
	limiter *middleware.RateLimiter
}

func New(app *App) *Server {
	cfg := app.Config
	s := &Server{cfg: cfg, app: app}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, nil)
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      Routes(app, s.limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.QueryTimeoutDuration() + time.Duration(cfg.InsightTimeout)*time.Second + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully and closes
// the app.
func (s *Server) Run(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.RunCleanup(ctx, 5*time.Minute)
	}
	go s.app.Sessions.RunSweeper(ctx, s.cfg.SessionCleanupDuration())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Str("prefix", s.cfg.APIPrefix).Msg("server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)

		if closeErr := s.app.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing storage")
		} else {
			log.Info().Msg("storage closed")
		}

		return err
	case err := <-errCh:
		if closeErr := s.app.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing storage")
		}
		return err
	}
}
