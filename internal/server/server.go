package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/xmlrpc/internal/auth"
	"github.com/danmuck/xmlrpc/internal/config"
	"github.com/danmuck/xmlrpc/internal/observability"
	"github.com/danmuck/xmlrpc/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type requestIDKey struct{}

// RequestID returns the id of the HTTP request that carried the call, if
// the handler runs under Server.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Server exposes a Registry on an HTTP endpoint.
type Server struct {
	cfg      config.ServerConfig
	registry *Registry
	router   *gin.Engine
	appeared time.Time
}

func New(cfg config.ServerConfig, registry *Registry) *Server {
	if registry == nil {
		registry = NewRegistry()
	}
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(cfg.CorsOrigins),
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", observability.HeaderRequestID},
		ExposeHeaders: []string{observability.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		registry: registry,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.Name,
			"methods": len(s.registry.Methods()),
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.cfg.AuthToken != "" {
		s.router.POST(s.cfg.RPCPath, auth.Require(auth.StaticToken{Token: s.cfg.AuthToken}), s.handleRPC)
		return
	}
	s.router.POST(s.cfg.RPCPath, s.handleRPC)
}

func (s *Server) handleRPC(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
			return
		}
		c.String(http.StatusBadRequest, "read request body: %v", err)
		return
	}

	id := observability.RequestIDFrom(c)
	ctx := context.WithValue(c.Request.Context(), requestIDKey{}, id)
	out := s.registry.ServeXML(ctx, bytes.NewReader(body))

	log.Debug().
		Str("request_id", id).
		Int("request_bytes", len(body)).
		Int("response_bytes", len(out)).
		Msg("xmlrpc_dispatch")
	c.Data(http.StatusOK, "text/xml", out)
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return protocol.ServerError(err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln and shuts down gracefully once ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		if s.cfg.TLS() {
			errc <- srv.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
			return
		}
		errc <- srv.Serve(ln)
	}()
	log.Info().
		Str("server", s.cfg.Name).
		Str("addr", ln.Addr().String()).
		Bool("tls", s.cfg.TLS()).
		Str("rpc_path", s.cfg.RPCPath).
		Msg("xmlrpc server listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return protocol.ServerError(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return protocol.ServerError(err)
	}
	log.Info().Str("server", s.cfg.Name).Msg("xmlrpc server stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
