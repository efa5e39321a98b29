package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/logger"
	"github.com/akinokuni/renderbridge/pkg/template"
)

// Server is the embedded HTTP endpoint of the plugin.
type Server struct {
	cfg  config.ServerConfig
	http *http.Server
}

func New(cfg config.ServerConfig, store *template.Store, renderer Renderer, dispatcher Deliverer, version string) *Server {
	h := &handlers{
		token:      cfg.AuthToken,
		store:      store,
		renderer:   renderer,
		dispatcher: dispatcher,
		version:    version,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(recoverJSON)

	r.Post(cfg.APIPath, h.handleRender)
	r.Get("/health", h.handleHealth)
	r.Post("/admin/reload", h.handleReload)

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	logger.InfoCF("server", "HTTP server listening", map[string]interface{}{
		"addr":     s.http.Addr,
		"api_path": s.cfg.APIPath,
	})
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// recoverJSON converts handler panics into a JSON 500 instead of the
// default plain-text response.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorCF("server", "Handler panic", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": fmt.Sprint(rec),
				})
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
