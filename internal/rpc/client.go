package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// #region client-struct
// Client wraps the gRPC connection to a planning server.
type Client struct {
	conn   *grpc.ClientConn
	client PlannerServiceClient
}

// #endregion client-struct

// #region constructor
// NewClient connects to a planning server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewPlannerServiceClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc PlannerServiceClient) *Client {
	return &Client{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region recommend
// Recommend asks the server to plan one site.
func (c *Client) Recommend(ctx context.Context, req RecommendRequest) (RecommendResult, error) {
	in, err := encodeRequest(req)
	if err != nil {
		return RecommendResult{}, fmt.Errorf("encode request: %w", err)
	}
	out, err := c.client.Recommend(ctx, in)
	if err != nil {
		return RecommendResult{}, fmt.Errorf("recommend rpc: %w", err)
	}
	res, err := decodeResult(out)
	if err != nil {
		return RecommendResult{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// #endregion recommend
