package api

import (
	"context"
	"net/http"
	"time"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/api/handlers"
	"example.com/backstage/invoicing/internal/api/middleware"
	"example.com/backstage/invoicing/internal/messaging"
	"example.com/backstage/invoicing/internal/metrics"
	"example.com/backstage/invoicing/internal/services"
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Services bundles everything the HTTP handlers call into
type Services struct {
	Numbers    *services.NumberingService
	Customers  *services.CustomerService
	Invoices   *services.InvoiceService
	Quotes     *services.QuoteService
	Templates  *services.TemplateService
	Users      *services.UserService
	Recurrence *services.RecurrenceService
	// Dispatcher is optional; it enables queued recurrence passes.
	Dispatcher messaging.Dispatcher
}

// Server represents the HTTP server
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	services   Services
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, svcs Services, collector *metrics.Metrics, tracer tracing.Tracer) *Server {
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}
	if collector == nil {
		collector = metrics.NewMetrics()
	}

	server := &Server{
		config:   cfg,
		services: svcs,
		metrics:  collector,
		tracer:   tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Tracing(s.tracer))
	if s.config.CorsEnabled {
		router.Use(middleware.CORS(s.config.CorsOrigins))
	}

	handlers.NewMetricsHandler(s.metrics).RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	handlers.NewNumberHandler(s.services.Numbers).RegisterRoutes(v1)
	handlers.NewCustomerHandler(s.services.Customers, s.services.Invoices, s.services.Quotes).RegisterRoutes(v1)
	handlers.NewInvoiceHandler(s.services.Invoices).RegisterRoutes(v1)
	handlers.NewQuoteHandler(s.services.Quotes).RegisterRoutes(v1)
	handlers.NewTemplateHandler(s.services.Templates, s.services.Invoices).RegisterRoutes(v1)
	handlers.NewUserHandler(s.services.Users).RegisterRoutes(v1)
	handlers.NewRecurrenceHandler(s.services.Recurrence, s.services.Dispatcher).RegisterRoutes(v1)

	return router
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
