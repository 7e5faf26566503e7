package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the IncidentRecall service with the JSON codec.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target. Extra options are appended after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	dialOpts = append(dialOpts, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Ingest uploads evidence and returns the new incident id and card.
func (c *Client) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	out := new(IngestResponse)
	if err := c.conn.Invoke(ctx, ingestMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search finds incidents similar to an ingested one.
func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	out := new(SearchResponse)
	if err := c.conn.Invoke(ctx, searchMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports service readiness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.conn.Invoke(ctx, healthMethod, &HealthRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
