package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	pb "github.com/ppiankov/smdnano/api/smdnano/v1"
	"github.com/ppiankov/smdnano/internal/model"
)

// DefaultTimeout bounds each call. Generation spends hundreds of
// milliseconds in key stretching, so this is looser than a plain lookup.
const DefaultTimeout = 10 * time.Second

// RemoteError is a domain failure reported by the broker.
type RemoteError struct {
	Code    model.ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Is lets callers test remote failures against the local sentinels.
func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case model.CodeAccessDenied:
		return target == model.ErrAccessDenied
	case model.CodeContextMismatch:
		return target == model.ErrContextChanged
	}
	return false
}

func check(s pb.Status) error {
	if s.OK {
		return nil
	}
	return &RemoteError{Code: model.ErrorCode(s.Code), Message: s.Error}
}

// Client connects to a running smdnano broker.
type Client struct {
	conn    *grpc.ClientConn
	client  *pb.BrokerClient
	timeout time.Duration
}

// New creates a client for addr. The connection is established lazily.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	return &Client{conn: conn, client: pb.NewBrokerClient(conn), timeout: DefaultTimeout}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.timeout)
}

// GetPolicy evaluates url on the broker.
func (c *Client) GetPolicy(ctx context.Context, url string) (model.PolicyDecision, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	resp, err := c.client.GetPolicy(ctx, &pb.PolicyRequest{URL: url})
	if err != nil {
		return model.PolicyDecision{}, fmt.Errorf("broker unreachable: %w", err)
	}
	if err := check(resp.Status); err != nil {
		return model.PolicyDecision{}, err
	}
	if resp.Decision == nil {
		return model.PolicyDecision{}, errors.New("broker returned no decision")
	}
	return *resp.Decision, nil
}

// Generate asks the broker to derive and park a password.
func (c *Client) Generate(ctx context.Context, req *pb.GenerateRequest) (*pb.GenerateResponse, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	resp, err := c.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("broker unreachable: %w", err)
	}
	if err := check(resp.Status); err != nil {
		return nil, err
	}
	return resp, nil
}

// Fill asks the broker to fill the pending secret into tabID.
func (c *Client) Fill(ctx context.Context, tabID int) (*pb.FillResponse, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	resp, err := c.client.Fill(ctx, &pb.FillRequest{TabID: tabID})
	if err != nil {
		return nil, fmt.Errorf("broker unreachable: %w", err)
	}
	if err := check(resp.Status); err != nil {
		return nil, err
	}
	return resp, nil
}

// Invalidate drops the pending secret for tabID.
func (c *Client) Invalidate(ctx context.Context, tabID int, reason string) (bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	resp, err := c.client.Invalidate(ctx, &pb.InvalidateRequest{TabID: tabID, Reason: reason})
	if err != nil {
		return false, fmt.Errorf("broker unreachable: %w", err)
	}
	return resp.Removed, check(resp.Status)
}

// OpenTab loads a page in the broker's browser model and returns its tab ID.
func (c *Client) OpenTab(ctx context.Context, req *pb.OpenTabRequest) (int, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	resp, err := c.client.OpenTab(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("broker unreachable: %w", err)
	}
	return resp.TabID, check(resp.Status)
}

// Navigate replaces the page in an existing tab.
func (c *Client) Navigate(ctx context.Context, req *pb.NavigateRequest) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	resp, err := c.client.Navigate(ctx, req)
	if err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}
	return check(resp.Status)
}

// CloseTab closes a tab.
func (c *Client) CloseTab(ctx context.Context, tabID int) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	resp, err := c.client.CloseTab(ctx, &pb.CloseTabRequest{TabID: tabID})
	if err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}
	return check(resp.Status)
}

// QueryContext reports the username and password fields the page agent sees.
func (c *Client) QueryContext(ctx context.Context, tabID int) (*pb.QueryContextResponse, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	resp, err := c.client.QueryContext(ctx, &pb.QueryContextRequest{TabID: tabID})
	if err != nil {
		return nil, fmt.Errorf("broker unreachable: %w", err)
	}
	if err := check(resp.Status); err != nil {
		return nil, err
	}
	return resp, nil
}
