// Package rpc serves the FieldService over gRPC and provides a typed client for it.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Smehapavi/AgriNex/internal/decision"
	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/history"
	"github.com/Smehapavi/AgriNex/internal/spray"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
	"github.com/Smehapavi/AgriNex/pkg/wire"
)

// Recommender produces the current recommendation. *decision.Advisor implements it.
type Recommender interface {
	Recommend(ctx context.Context) (decision.Snapshot, error)
}

// History reads the merged or single-kind feed. *history.Aggregator implements it.
type History interface {
	Aggregate(ctx context.Context, perKind int) ([]domain.HistoryEntry, error)
	AggregateKind(ctx context.Context, kind domain.Kind, limit int) ([]domain.HistoryEntry, error)
}

// Sprayer executes spray commands. *spray.Handler implements it.
type Sprayer interface {
	Execute(ctx context.Context, cmd spray.Command) (domain.SprayLog, error)
}

// FieldServiceConfig holds the configuration for the FieldService.
type FieldServiceConfig struct {
	Logger      *slog.Logger
	Recommender Recommender
	History     History
	Sprayer     Sprayer
}

// FieldService implements FieldServiceServer on top of the decision, history and spray
// components.
type FieldService struct {
	logger      *slog.Logger
	recommender Recommender
	history     History
	sprayer     Sprayer
}

var _ FieldServiceServer = (*FieldService)(nil)

// NewFieldService creates a new FieldService.
func NewFieldService(cfg *FieldServiceConfig) (*FieldService, error) {
	if cfg == nil {
		return nil, errors.New("field service config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Recommender == nil {
		return nil, errors.New("recommender cannot be nil")
	}

	if cfg.History == nil {
		return nil, errors.New("history cannot be nil")
	}

	if cfg.Sprayer == nil {
		return nil, errors.New("sprayer cannot be nil")
	}

	return &FieldService{
		logger:      cfg.Logger,
		recommender: cfg.Recommender,
		history:     cfg.History,
		sprayer:     cfg.Sprayer,
	}, nil
}

// NewGRPCServer creates a gRPC server with the FieldService registered and the metrics
// interceptor installed when m is not nil.
func NewGRPCServer(svc FieldServiceServer, m *metrics.APIMetrics, opts ...grpc.ServerOption) *grpc.Server {
	if m != nil {
		opts = append(opts, grpc.ChainUnaryInterceptor(MetricsInterceptor(m)))
	}
	s := grpc.NewServer(opts...)
	RegisterFieldServiceServer(s, svc)
	return s
}

// GetRecommendation returns the current snapshot and recommendation.
func (s *FieldService) GetRecommendation(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.logger.Debug("GetRecommendation called")

	snapshot, err := s.recommender.Recommend(ctx)
	if err != nil {
		return nil, s.toStatus("GetRecommendation", err)
	}

	out, err := wire.ToStruct(snapshot)
	if err != nil {
		return nil, s.toStatus("GetRecommendation", err)
	}
	return out, nil
}

// GetHistory returns {"entries": [...]}. The request may carry "type" with "limit" for a
// single kind, or "perKind" for the merged feed.
func (s *FieldService) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	kindName := fields["type"].GetStringValue()

	s.logger.Debug("GetHistory called", "type", kindName)

	var (
		entries []domain.HistoryEntry
		err     error
	)
	if kindName != "" {
		kind, perr := domain.ParseKind(kindName)
		if perr != nil {
			return nil, status.Error(codes.InvalidArgument, "type must be one of predictions, sensors, sprays")
		}
		entries, err = s.history.AggregateKind(ctx, kind, intField(fields, "limit", history.DefaultLimit))
	} else {
		entries, err = s.history.Aggregate(ctx, intField(fields, "perKind", history.DefaultPerKind))
	}
	if err != nil {
		return nil, s.toStatus("GetHistory", err)
	}

	out, err := wire.ToStruct(map[string]any{"entries": entries})
	if err != nil {
		return nil, s.toStatus("GetHistory", err)
	}
	return out, nil
}

// ExecuteSpray runs a spray command and returns {"success", "message", "sprayLog"}.
func (s *FieldService) ExecuteSpray(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cmd spray.Command
	if err := wire.FromStruct(req, &cmd); err != nil {
		if domain.IsValidation(err) {
			return nil, s.toStatus("ExecuteSpray", err)
		}
		return nil, status.Errorf(codes.InvalidArgument, "malformed spray command: %v", err)
	}

	s.logger.Debug("ExecuteSpray called", "nozzle_id", cmd.NozzleID)

	log, err := s.sprayer.Execute(ctx, cmd)
	if err != nil {
		return nil, s.toStatus("ExecuteSpray", err)
	}

	out, err := wire.ToStruct(map[string]any{
		"success":  true,
		"message":  "Spray command executed on nozzle " + log.NozzleID,
		"sprayLog": log,
	})
	if err != nil {
		return nil, s.toStatus("ExecuteSpray", err)
	}
	return out, nil
}

// toStatus maps domain errors to gRPC codes.
func (s *FieldService) toStatus(method string, err error) error {
	switch {
	case domain.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrUpstreamService):
		s.logger.Error("dependency unavailable", "method", method, "error", err)
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error("request failed", "method", method, "error", err)
		return status.Error(codes.Internal, err.Error())
	}
}

func intField(fields map[string]*structpb.Value, key string, def int) int {
	v, ok := fields[key]
	if !ok {
		return def
	}
	n := int(v.GetNumberValue())
	if n <= 0 {
		return def
	}
	return n
}

// MetricsInterceptor records request counts by code and durations per method.
func MetricsInterceptor(m *metrics.APIMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		m.GRPCRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		m.GRPCRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}
