// Package api exposes the field monitoring REST interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Smehapavi/AgriNex/internal/decision"
	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/spray"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

// Store is the part of the gateway the REST interface reads and writes directly.
type Store interface {
	AppendSensorReading(ctx context.Context, r domain.SensorReading) (domain.SensorReading, error)
	AppendPrediction(ctx context.Context, p domain.Prediction) (domain.Prediction, error)
	LatestPredictions(ctx context.Context, n int) ([]domain.Prediction, error)
	LatestSensorReading(ctx context.Context) (*domain.SensorReading, error)
	Clear(ctx context.Context, kind domain.Kind) error
	Ping(ctx context.Context) error
}

// Recommender produces the current recommendation. *decision.Advisor implements it.
type Recommender interface {
	Recommend(ctx context.Context) (decision.Snapshot, error)
}

// Sprayer executes spray commands. *spray.Handler implements it.
type Sprayer interface {
	Execute(ctx context.Context, cmd spray.Command) (domain.SprayLog, error)
}

// History reads the merged or single-kind feed. *history.Aggregator implements it.
type History interface {
	Aggregate(ctx context.Context, perKind int) ([]domain.HistoryEntry, error)
	AggregateKind(ctx context.Context, kind domain.Kind, limit int) ([]domain.HistoryEntry, error)
}

// Classifier classifies plant images. *mlclient.Client implements it.
type Classifier interface {
	Predict(ctx context.Context, filename string, image []byte) (domain.Prediction, error)
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger      *slog.Logger
	Store       Store
	Recommender Recommender
	Sprayer     Sprayer
	History     History
	Classifier  Classifier          // Optional; image classification fails without it
	Metrics     *metrics.APIMetrics // Optional

	// HTTP server configuration
	HTTPPort     int
	AllowOrigins string
	// RequestTimeout bounds every handler's context; zero disables it.
	RequestTimeout time.Duration
}

// Server serves the REST interface.
type Server struct {
	logger      *slog.Logger
	app         *fiber.App
	store       Store
	recommender Recommender
	sprayer     Sprayer
	history     History
	classifier  Classifier
	metrics     *metrics.APIMetrics
	config      *ServerConfig
}

// NewServer creates a new Server and registers its routes.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Recommender == nil {
		return nil, errors.New("recommender cannot be nil")
	}

	if cfg.Sprayer == nil {
		return nil, errors.New("sprayer cannot be nil")
	}

	if cfg.History == nil {
		return nil, errors.New("history cannot be nil")
	}

	if cfg.HTTPPort < 0 {
		return nil, errors.New("HTTP port cannot be negative")
	}

	s := &Server{
		logger:      cfg.Logger,
		store:       cfg.Store,
		recommender: cfg.Recommender,
		sprayer:     cfg.Sprayer,
		history:     cfg.History,
		classifier:  cfg.Classifier,
		metrics:     cfg.Metrics,
		config:      cfg,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "AgriNex API",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             10 * 1024 * 1024,
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})

	s.setupRoutes()
	return s, nil
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes() {
	origins := s.config.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	s.app.Use(recover.New())
	s.app.Use(s.observe)
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := s.app.Group("/api")

	api.Get("/predict", s.handleRecentPredictions)
	api.Get("/predictions", s.handleAllPredictions)
	api.Post("/predictions", s.handleCreatePrediction)
	api.Delete("/predictions", s.handleDeletePredictions)

	api.Get("/sensors", s.handleLatestSensor)
	api.Post("/sensors", s.handleCreateSensor)

	api.Post("/spray", s.handleSpray)
	api.Get("/history", s.handleHistory)
	api.Post("/ml-predict", s.handleMLPredict)

	api.Get("/recommendation", s.handleRecommendation)
	api.Post("/recommendation/execute", s.handleExecuteRecommendation)

	api.Get("/analytics/diseases", s.handleDiseaseAnalytics)
}

// Run serves HTTP until ctx is canceled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.HTTPPort)
	s.logger.Info("starting HTTP server", "address", addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.app.Listen(addr); err != nil {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	s.logger.Info("stopping HTTP server")

	if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		s.logger.Error("failed to shutdown HTTP server", "error", err)
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// requestContext derives the handler context, bounded by the configured timeout.
func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}
