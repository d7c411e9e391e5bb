package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yuzvak/flashsale-engine/internal/config"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/handlers"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Sale      *handlers.SaleHandler
	Purchase  *handlers.PurchaseHandler
	Analytics *handlers.AnalyticsHandler
}

type Server struct {
	server           *http.Server
	logger           *logger.Logger
	requestTimeout   time.Duration
	healthHandler    *handlers.HealthHandler
	saleHandler      *handlers.SaleHandler
	purchaseHandler  *handlers.PurchaseHandler
	analyticsHandler *handlers.AnalyticsHandler
}

func NewServer(cfg config.ServerConfig, h Handlers, logger *logger.Logger) *Server {
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout.Duration + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s := &Server{
		server:           server,
		logger:           logger,
		requestTimeout:   cfg.RequestTimeout.Duration,
		healthHandler:    h.Health,
		saleHandler:      h.Sale,
		purchaseHandler:  h.Purchase,
		analyticsHandler: h.Analytics,
	}
	server.Handler = s.setupRoutes()

	return s
}

// Handler exposes the routed handler chain, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("Starting HTTP server", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
