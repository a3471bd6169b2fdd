package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	pb "github.com/ppiankov/smdnano/api/smdnano/v1"
	"github.com/ppiankov/smdnano/internal/agent"
	"github.com/ppiankov/smdnano/internal/audit"
	"github.com/ppiankov/smdnano/internal/broker"
	"github.com/ppiankov/smdnano/internal/model"
	"github.com/ppiankov/smdnano/internal/policy"
)

// DefaultAddr is loopback only; the service carries master secrets.
const DefaultAddr = "127.0.0.1:7433"

// Config holds gRPC server configuration.
type Config struct {
	Addr   string
	Audit  audit.Recorder
	Logger *slog.Logger
}

// Server implements smdnano.v1.Broker on top of a running broker.
type Server struct {
	broker  *broker.Broker
	browser *agent.Browser
	engine  *policy.Engine
	cfg     Config
	logger  *slog.Logger

	grpcServer *grpc.Server
}

// New creates a gRPC server. The broker's Run loop must be started by the
// caller.
func New(cfg Config, b *broker.Broker, browser *agent.Browser, engine *policy.Engine) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		broker:     b,
		browser:    browser,
		engine:     engine,
		cfg:        cfg,
		logger:     cfg.Logger,
		grpcServer: grpc.NewServer(),
	}
	pb.RegisterBrokerServer(s.grpcServer, s)
	return s
}

// Serve listens on the configured address. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn serves on lis. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop stops accepting calls and waits for in-flight ones.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// ReloadPolicy re-reads the policy document. Called by the hot-reloader.
// A failed reload keeps the previous document.
func (s *Server) ReloadPolicy() error {
	err := s.engine.Reload()
	entry := audit.Entry{Event: audit.EventReload, PolicyHash: s.engine.Hash(), Decision: audit.DecisionOK}
	if err != nil {
		entry.Decision, entry.Reason = audit.DecisionRefused, err.Error()
	}
	if s.cfg.Audit != nil {
		if aerr := s.cfg.Audit.Record(entry); aerr != nil {
			s.logger.Error("audit write failed", "event", entry.Event, "error", aerr)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	return nil
}

func ok() pb.Status {
	return pb.Status{OK: true}
}

func failure(err error) pb.Status {
	code := broker.CodeOf(err)
	if errors.Is(err, agent.ErrNoSuchTab) {
		code = model.CodeTabUnavailable
	}
	return pb.Status{Error: err.Error(), Code: string(code)}
}

// GetPolicy implements the GetPolicy RPC.
func (s *Server) GetPolicy(ctx context.Context, req *pb.PolicyRequest) (*pb.PolicyResponse, error) {
	res, err := s.broker.GetPolicy(ctx, broker.GetPolicy{URL: req.URL})
	if err != nil {
		return &pb.PolicyResponse{Status: failure(err)}, nil
	}
	return &pb.PolicyResponse{Status: ok(), Decision: &res.Decision}, nil
}

// Generate implements the Generate RPC.
func (s *Server) Generate(ctx context.Context, req *pb.GenerateRequest) (*pb.GenerateResponse, error) {
	res, err := s.broker.Generate(ctx, broker.Generate{
		Master:      req.Master,
		TabID:       req.TabID,
		URL:         req.URL,
		Domain:      req.Domain,
		User:        req.User,
		Counter:     req.Counter,
		Length:      req.Length,
		Mode:        req.Mode,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return &pb.GenerateResponse{Status: failure(err)}, nil
	}
	c := res.Context
	return &pb.GenerateResponse{
		Status:   ok(),
		Password: res.Password,
		Ctx: &pb.GenerateContext{
			TabID:     c.TabID,
			Domain:    c.Domain,
			URL:       c.URL,
			ExpiresAt: c.ExpiresAt,
			Trust:     string(c.Trust),
			Counter:   c.Counter,
			Length:    c.Length,
			Mode:      c.Mode,
		},
		Fingerprint: res.Fingerprint,
	}, nil
}

// Fill implements the Fill RPC.
func (s *Server) Fill(ctx context.Context, req *pb.FillRequest) (*pb.FillResponse, error) {
	res, err := s.broker.Fill(ctx, broker.Fill{TabID: req.TabID})
	if err != nil {
		return &pb.FillResponse{Status: failure(err), Remaining: res.Remaining, NextHint: res.NextHint}, nil
	}
	return &pb.FillResponse{Status: ok(), Remaining: res.Remaining, NextHint: res.NextHint}, nil
}

// Invalidate implements the Invalidate RPC.
func (s *Server) Invalidate(ctx context.Context, req *pb.InvalidateRequest) (*pb.InvalidateResponse, error) {
	res, err := s.broker.Invalidate(ctx, broker.Invalidate{TabID: req.TabID, Reason: req.Reason})
	if err != nil {
		return &pb.InvalidateResponse{Status: failure(err)}, nil
	}
	return &pb.InvalidateResponse{Status: ok(), Removed: res.Removed}, nil
}

// OpenTab implements the OpenTab RPC.
func (s *Server) OpenTab(_ context.Context, req *pb.OpenTabRequest) (*pb.OpenTabResponse, error) {
	page := toPage(req.URL, req.Embedded, req.Fields)
	id := req.TabID
	if id == 0 {
		id = s.browser.Open(page)
	} else {
		s.browser.OpenAt(id, page)
	}
	return &pb.OpenTabResponse{Status: ok(), TabID: id}, nil
}

// Navigate implements the Navigate RPC. The pending secret for the tab is
// left in place; Fill detects the changed context.
func (s *Server) Navigate(_ context.Context, req *pb.NavigateRequest) (*pb.NavigateResponse, error) {
	if err := s.browser.Navigate(req.TabID, toPage(req.URL, req.Embedded, req.Fields)); err != nil {
		return &pb.NavigateResponse{Status: failure(err)}, nil
	}
	return &pb.NavigateResponse{Status: ok()}, nil
}

// CloseTab implements the CloseTab RPC and drops any pending secret.
func (s *Server) CloseTab(ctx context.Context, req *pb.CloseTabRequest) (*pb.CloseTabResponse, error) {
	if err := s.browser.Close(req.TabID); err != nil {
		return &pb.CloseTabResponse{Status: failure(err)}, nil
	}
	if _, err := s.broker.Invalidate(ctx, broker.Invalidate{TabID: req.TabID, Reason: "tab closed"}); err != nil {
		return &pb.CloseTabResponse{Status: failure(err)}, nil
	}
	return &pb.CloseTabResponse{Status: ok()}, nil
}

// QueryContext implements the QueryContext RPC.
func (s *Server) QueryContext(ctx context.Context, req *pb.QueryContextRequest) (*pb.QueryContextResponse, error) {
	pc, err := s.browser.QueryContext(ctx, req.TabID)
	if err != nil {
		return &pb.QueryContextResponse{Status: failure(err)}, nil
	}
	return &pb.QueryContextResponse{
		Status:         ok(),
		URL:            pc.URL,
		Username:       pc.Username,
		PasswordFields: pc.PasswordFields,
	}, nil
}

func toPage(url string, embedded bool, fields []pb.Field) agent.Page {
	p := agent.Page{URL: url, Embedded: embedded}
	for _, f := range fields {
		p.Fields = append(p.Fields, agent.Field{
			Name:         f.Name,
			ID:           f.ID,
			Type:         f.Type,
			Autocomplete: f.Autocomplete,
			Placeholder:  f.Placeholder,
			Value:        f.Value,
		})
	}
	return p
}
