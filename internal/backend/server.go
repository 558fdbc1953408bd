// Package backend wires the store, the decision engine, the spray handler and the three
// boundaries (REST, gRPC and the RabbitMQ ingest consumer) into one serving process.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/Smehapavi/AgriNex/internal/api"
	"github.com/Smehapavi/AgriNex/internal/decision"
	"github.com/Smehapavi/AgriNex/internal/history"
	"github.com/Smehapavi/AgriNex/internal/ingest"
	"github.com/Smehapavi/AgriNex/internal/mlclient"
	"github.com/Smehapavi/AgriNex/internal/rpc"
	"github.com/Smehapavi/AgriNex/internal/spray"
	"github.com/Smehapavi/AgriNex/internal/store"
	"github.com/Smehapavi/AgriNex/pkg/logger"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
	"github.com/Smehapavi/AgriNex/pkg/mq"
)

// AutopilotConfig enables the periodic auto-mode spray loop.
type AutopilotConfig struct {
	Enabled  bool
	NozzleID string
	Interval time.Duration
	Cooldown time.Duration
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Store configuration
	StoreDriver string
	StoreDSN    string

	// HTTP configuration
	HTTPPort       int
	AllowOrigins   string
	RequestTimeout time.Duration

	// gRPC configuration; a zero port disables the gRPC server.
	GRPCPort int

	// RabbitMQ configuration; an empty URL disables ingest.
	RabbitMQURL string
	QueueName   string

	// ML service configuration; an empty URL disables image classification.
	MLURL     string
	MLTimeout time.Duration

	PredictionWindow int
	HistoryTimeout   time.Duration
	Autopilot        AutopilotConfig

	// EnableMetrics registers the Prometheus collectors and instruments every component.
	EnableMetrics bool
}

// Server runs the AgriNex backend.
type Server struct {
	logger     *slog.Logger
	config     *ServerConfig
	backend    store.Backend
	gateway    *store.Gateway
	advisor    *decision.Advisor
	sprayer    *spray.Handler
	aggregator *history.Aggregator
	api        *api.Server
	grpcServer *grpc.Server
	consumer   *ingest.Consumer
	autopilot  *decision.Autopilot
	metrics    *serverMetrics
}

type serverMetrics struct {
	api    *metrics.APIMetrics
	store  *metrics.StoreMetrics
	core   *metrics.CoreMetrics
	mq     *metrics.MQMetrics
	ingest *metrics.IngestMetrics
}

var (
	metricsOnce sync.Once
	sharedSet   *serverMetrics
)

// collectors are registered once per process.
func registeredMetrics() *serverMetrics {
	metricsOnce.Do(func() {
		sharedSet = &serverMetrics{
			api:    metrics.NewAPIMetrics(metrics.Namespace),
			store:  metrics.NewStoreMetrics(metrics.Namespace),
			core:   metrics.NewCoreMetrics(metrics.Namespace),
			mq:     metrics.NewMQMetrics(metrics.Namespace),
			ingest: metrics.NewIngestMetrics(metrics.Namespace),
		}
	})
	return sharedSet
}

// NewServer validates cfg and creates a Server. Components are built by Setup.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	if cfg.GRPCPort < 0 {
		return nil, errors.New("gRPC port cannot be negative")
	}

	if cfg.RabbitMQURL != "" && cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty when rabbitmq URL is set")
	}

	switch cfg.StoreDriver {
	case "", store.DriverMemory:
	case store.DriverPostgres, store.DriverMySQL, store.DriverSQLite:
		if cfg.StoreDSN == "" {
			return nil, fmt.Errorf("store DSN cannot be empty for driver %q", cfg.StoreDriver)
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}

	if cfg.Autopilot.Enabled {
		if cfg.Autopilot.NozzleID == "" {
			return nil, errors.New("autopilot nozzle id cannot be empty")
		}
		if cfg.Autopilot.Interval <= 0 {
			return nil, errors.New("autopilot interval must be positive")
		}
	}

	s := &Server{
		logger: cfg.Logger,
		config: cfg,
	}
	if cfg.EnableMetrics {
		s.metrics = registeredMetrics()
	} else {
		s.metrics = &serverMetrics{}
	}
	return s, nil
}

// Setup opens the store and builds every component without starting any of them.
func (s *Server) Setup(ctx context.Context) error {
	if s.gateway != nil {
		return nil
	}

	backend, err := store.Open(ctx, &store.Config{
		Logger: logger.WithComponent(s.logger, "store"),
		Driver: s.config.StoreDriver,
		DSN:    s.config.StoreDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.backend = backend

	s.gateway, err = store.NewGateway(&store.GatewayConfig{
		Logger:  logger.WithComponent(s.logger, "store"),
		Backend: backend,
		Metrics: s.metrics.store,
	})
	if err != nil {
		return fmt.Errorf("failed to create store gateway: %w", err)
	}

	s.advisor, err = decision.NewAdvisor(&decision.AdvisorConfig{
		Logger:           logger.WithComponent(s.logger, "decision"),
		Source:           s.gateway,
		Metrics:          s.metrics.core,
		PredictionWindow: s.config.PredictionWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create advisor: %w", err)
	}

	s.sprayer, err = spray.NewHandler(&spray.HandlerConfig{
		Logger:   logger.WithComponent(s.logger, "spray"),
		Recorder: s.gateway,
		Metrics:  s.metrics.core,
	})
	if err != nil {
		return fmt.Errorf("failed to create spray handler: %w", err)
	}

	s.aggregator, err = history.NewAggregator(&history.AggregatorConfig{
		Logger:       logger.WithComponent(s.logger, "history"),
		Source:       s.gateway,
		Metrics:      s.metrics.core,
		FetchTimeout: s.config.HistoryTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create history aggregator: %w", err)
	}

	apiCfg := &api.ServerConfig{
		Logger:         logger.WithComponent(s.logger, "api"),
		Store:          s.gateway,
		Recommender:    s.advisor,
		Sprayer:        s.sprayer,
		History:        s.aggregator,
		Metrics:        s.metrics.api,
		HTTPPort:       s.config.HTTPPort,
		AllowOrigins:   s.config.AllowOrigins,
		RequestTimeout: s.config.RequestTimeout,
	}

	if s.config.MLURL != "" {
		classifier, err := mlclient.New(&mlclient.Config{
			Logger:  logger.WithComponent(s.logger, "mlclient"),
			Metrics: s.metrics.api,
			URL:     s.config.MLURL,
			Timeout: s.config.MLTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create ml client: %w", err)
		}
		apiCfg.Classifier = classifier
	}

	s.api, err = api.NewServer(apiCfg)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	if s.config.GRPCPort > 0 {
		svc, err := rpc.NewFieldService(&rpc.FieldServiceConfig{
			Logger:      logger.WithComponent(s.logger, "rpc"),
			Recommender: s.advisor,
			History:     s.aggregator,
			Sprayer:     s.sprayer,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize gRPC service: %w", err)
		}
		s.grpcServer = rpc.NewGRPCServer(svc, s.metrics.api)
	}

	if s.config.Autopilot.Enabled {
		s.autopilot, err = decision.NewAutopilot(&decision.AutopilotConfig{
			Logger:   logger.WithComponent(s.logger, "autopilot"),
			Advisor:  s.advisor,
			Sprayer:  s.sprayer,
			History:  s.gateway,
			Metrics:  s.metrics.core,
			NozzleID: s.config.Autopilot.NozzleID,
			Interval: s.config.Autopilot.Interval,
			Cooldown: s.config.Autopilot.Cooldown,
		})
		if err != nil {
			return fmt.Errorf("failed to create autopilot: %w", err)
		}
	}

	s.logger.Info("backend components initialized",
		"store_driver", s.config.StoreDriver,
		"grpc_enabled", s.grpcServer != nil,
		"ingest_enabled", s.config.RabbitMQURL != "",
		"classifier_enabled", apiCfg.Classifier != nil,
		"autopilot_enabled", s.autopilot != nil,
	)
	return nil
}

// Gateway returns the store gateway built by Setup.
func (s *Server) Gateway() *store.Gateway {
	return s.gateway
}

// API returns the REST server built by Setup.
func (s *Server) API() *api.Server {
	return s.api
}

// Run builds the components if needed, starts every boundary and blocks until ctx is
// canceled, a termination signal arrives or a boundary fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting backend server")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Setup(ctx); err != nil {
		_ = s.Shutdown()
		return err
	}

	if s.config.RabbitMQURL != "" {
		if err := s.startConsumer(ctx); err != nil {
			_ = s.Shutdown()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.api.Run(gctx)
	})

	if s.grpcServer != nil {
		grpcAddr := fmt.Sprintf(":%d", s.config.GRPCPort)
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			stop()
			_ = g.Wait()
			_ = s.Shutdown()
			return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
		}

		s.logger.Info("starting gRPC server", "address", grpcAddr)
		g.Go(func() error {
			if err := s.grpcServer.Serve(lis); err != nil {
				return fmt.Errorf("gRPC server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			s.logger.Info("stopping gRPC server")
			s.grpcServer.GracefulStop()
			return nil
		})
	}

	if s.autopilot != nil {
		g.Go(func() error {
			return s.autopilot.Run(gctx)
		})
	}

	s.logger.Info("backend server started successfully")

	runErr := g.Wait()
	if runErr != nil {
		s.logger.Error("backend server error", "error", runErr)
	}

	if err := s.Shutdown(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func (s *Server) startConsumer(ctx context.Context) error {
	client, err := mq.New(&mq.Config{
		Logger:  logger.WithComponent(s.logger, "mq"),
		Metrics: s.metrics.mq,
		URL:     s.config.RabbitMQURL,
		Queue:   s.config.QueueName,
	})
	if err != nil {
		return fmt.Errorf("failed to create mq client: %w", err)
	}

	s.consumer, err = ingest.NewConsumer(&ingest.ConsumerConfig{
		Logger:   logger.WithComponent(s.logger, "ingest"),
		Recorder: s.gateway,
		MQ:       client,
		Metrics:  s.metrics.ingest,
	})
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	return nil
}

// Shutdown stops the consumer and closes the store. The HTTP and gRPC servers are
// stopped by Run when its context ends.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down backend server")

	var errs []error

	if s.consumer != nil {
		s.logger.Info("stopping consumer")
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
			errs = append(errs, fmt.Errorf("consumer shutdown error: %w", err))
		}
		s.consumer = nil
	}

	if s.backend != nil {
		s.logger.Info("closing store")
		if err := s.backend.Close(); err != nil {
			s.logger.Error("failed to close store", "error", err)
			errs = append(errs, fmt.Errorf("store close error: %w", err))
		}
		s.backend = nil
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("backend server shutdown completed with errors", "error", err)
		return err
	}

	s.logger.Info("backend server shutdown completed successfully")
	return nil
}
