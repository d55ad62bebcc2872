package http

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo"
	"github.com/qqdog1/ws/internal/config"
	"github.com/qqdog1/ws/internal/presentation/http/handlers"
	"github.com/qqdog1/ws/internal/presentation/http/middleware"
	"github.com/qqdog1/ws/internal/presentation/http/routes"
	"github.com/qqdog1/ws/pkg/logger"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	server *echo.Echo
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, wallet handlers.WalletAPI) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	routes.SetupRoutes(e, handlers.NewWalletHandler(wallet))

	return &Server{
		config: cfg,
		server: e,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.server
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	logger.GetLogger().Infof("Starting server on port %s", port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Start(":" + port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logger.GetLogger().WithError(err).Error("Failed to start server")
		return err
	case <-quit:
	}

	logger.GetLogger().Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.GetLogger().WithError(err).Error("Server forced to shutdown")
		return err
	}

	logger.GetLogger().Info("Server exited")
	return nil
}
