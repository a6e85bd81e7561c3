package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chatrelay/internal/app/server/handlers"
	"chatrelay/internal/config"
	"chatrelay/internal/core/services"
	"chatrelay/pkg/middleware"
)

type Server struct {
	log          *slog.Logger
	mux          *http.ServeMux
	cfg          *config.ServiceConfig
	tokenHandler *handlers.TokenHandler
	wsHandler    *handlers.WSHandler
	tokenSvc     *services.TokenService
	authEnabled  bool
}

func NewServer(
	log *slog.Logger,
	cfg *config.ServiceConfig,
	tokenSvc *services.TokenService,
	lifecycle *services.LifecycleService,
	router *services.RouterService,
	authEnabled bool,
) *Server {
	s := &Server{
		log:          log,
		mux:          http.NewServeMux(),
		cfg:          cfg,
		tokenHandler: handlers.NewTokenHandler(tokenSvc),
		wsHandler:    handlers.NewWSHandler(lifecycle, router, cfg.AllowedOrigin),
		tokenSvc:     tokenSvc,
		authEnabled:  authEnabled,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	reqLog := middleware.RequestLogger(s.log)
	tracing := middleware.TracerMiddleware(s.cfg.Name)

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.mux.Handle("POST /token", reqLog(http.HandlerFunc(s.tokenHandler.Issue)))

	wsChain := http.Handler(http.HandlerFunc(s.wsHandler.Handler))
	if s.authEnabled {
		wsChain = middleware.AuthMiddleware(s.tokenSvc)(wsChain)
	}
	s.mux.Handle("/ws", reqLog(tracing(wsChain)))
}

// Start runs the listener until ctx is cancelled, then drains with a
// shutdown timeout. Active websocket sessions are closed by the drain.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  0, // websocket sessions outlive any sane read timeout
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server started", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
