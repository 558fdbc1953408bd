package rpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Smehapavi/AgriNex/internal/decision"
	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/spray"
	"github.com/Smehapavi/AgriNex/pkg/wire"
)

// Client is a typed FieldService client.
type Client struct {
	conn *grpc.ClientConn
	api  FieldServiceClient
}

// Dial creates a client for the FieldService at addr. Extra options are appended after
// insecure transport credentials.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	if addr == "" {
		return nil, errors.New("address cannot be empty")
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	return &Client{conn: conn, api: NewFieldServiceClient(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Recommendation fetches the current snapshot.
func (c *Client) Recommendation(ctx context.Context) (decision.Snapshot, error) {
	resp, err := c.api.GetRecommendation(ctx, &emptypb.Empty{})
	if err != nil {
		return decision.Snapshot{}, err
	}

	var snapshot decision.Snapshot
	if err := wire.FromStruct(resp, &snapshot); err != nil {
		return decision.Snapshot{}, err
	}
	return snapshot, nil
}

// HistoryRequest selects a history feed. Kind empty means the merged feed.
type HistoryRequest struct {
	Kind    string
	Limit   int
	PerKind int
}

// History fetches history entries as generic objects keyed by their JSON fields.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]map[string]any, error) {
	fields := map[string]any{}
	if req.Kind != "" {
		fields["type"] = req.Kind
	}
	if req.Limit > 0 {
		fields["limit"] = req.Limit
	}
	if req.PerKind > 0 {
		fields["perKind"] = req.PerKind
	}

	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.api.GetHistory(ctx, in)
	if err != nil {
		return nil, err
	}

	values := resp.GetFields()["entries"].GetListValue().GetValues()
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStructValue().AsMap())
	}
	return out, nil
}

// ExecuteSpray runs cmd on the server and returns the logged spray.
func (c *Client) ExecuteSpray(ctx context.Context, cmd spray.Command) (domain.SprayLog, error) {
	in, err := wire.ToStruct(cmd)
	if err != nil {
		return domain.SprayLog{}, err
	}

	resp, err := c.api.ExecuteSpray(ctx, in)
	if err != nil {
		return domain.SprayLog{}, err
	}

	var log domain.SprayLog
	if err := wire.FromStruct(resp.GetFields()["sprayLog"].GetStructValue(), &log); err != nil {
		return domain.SprayLog{}, err
	}
	return log, nil
}
