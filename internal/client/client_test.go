package client

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	pb "github.com/ppiankov/smdnano/api/smdnano/v1"
	"github.com/ppiankov/smdnano/internal/agent"
	"github.com/ppiankov/smdnano/internal/broker"
	"github.com/ppiankov/smdnano/internal/logging"
	"github.com/ppiankov/smdnano/internal/model"
	"github.com/ppiankov/smdnano/internal/policy"
	"github.com/ppiankov/smdnano/internal/seeds"
	"github.com/ppiankov/smdnano/internal/server"
	"github.com/ppiankov/smdnano/internal/session"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

// startTestServer runs a broker and gRPC server and returns its address.
func startTestServer(t *testing.T, policyPath string) string {
	t.Helper()

	logger := logging.Discard()
	engine := policy.New(policy.FileSource(policyPath), logger)
	browser := agent.NewBrowser(logger)
	b := broker.New(broker.Config{
		Policy: engine,
		Cache:  session.New(browser, engine, browser),
		Seeds:  seeds.Seeds{InstallSeed: "i", UserSeed: "u"},
		Logger: logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	srv := server.New(server.Config{Logger: logger}, b, browser, engine)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeOn(lis)

	t.Cleanup(func() {
		srv.GracefulStop()
		cancel()
		<-done
	})
	return lis.Addr().String()
}

func newClient(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := New(addr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

const policyYAML = `mode: DENY+ALLOW+EXCEPT
rules:
  allow: ["*.example.com*"]
  deny: ["*evil.example.com*"]
  except: ["*login.evil.example.com*"]
trusted_contexts: ["https://*"]
created_at: "2026-01-01"
`

func TestClientGetPolicyPrecedence(t *testing.T) {
	c := newClient(t, startTestServer(t, writeTempFile(t, "policy.yaml", policyYAML)))

	tests := map[string]model.Action{
		"https://sub.example.com/":       model.Allow,
		"https://evil.example.com/":      model.Deny,
		"https://login.evil.example.com": model.Allow,
		"https://other.com/":             model.Deny,
	}
	for url, want := range tests {
		d, err := c.GetPolicy(context.Background(), url)
		if err != nil {
			t.Fatalf("GetPolicy(%s): %v", url, err)
		}
		if d.Action != want {
			t.Errorf("%s: expected %s, got %s", url, want, d.Action)
		}
	}
}

func TestClientRemoteErrors(t *testing.T) {
	c := newClient(t, startTestServer(t, writeTempFile(t, "policy.yaml", policyYAML)))
	ctx := context.Background()

	_, err := c.Generate(ctx, &pb.GenerateRequest{Master: "correct horse 1", TabID: 1, URL: "https://other.com", Domain: "other.com"})
	if !errors.Is(err, model.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	var re *RemoteError
	if !errors.As(err, &re) || re.Code != model.CodeAccessDenied {
		t.Errorf("expected RemoteError access_denied, got %v", err)
	}

	_, err = c.Generate(ctx, &pb.GenerateRequest{Master: "correct horse 1", TabID: 1, URL: "https://sub.example.com", Domain: "stale.example.com"})
	if !errors.Is(err, model.ErrContextChanged) {
		t.Errorf("expected context mismatch, got %v", err)
	}

	_, err = c.Fill(ctx, 42)
	if !errors.As(err, &re) || re.Code != model.CodeNothingToFill {
		t.Errorf("expected nothing_to_fill, got %v", err)
	}
}

func TestClientBrowserBridge(t *testing.T) {
	c := newClient(t, startTestServer(t, writeTempFile(t, "policy.yaml", policyYAML)))
	ctx := context.Background()

	id, err := c.OpenTab(ctx, &pb.OpenTabRequest{URL: "https://sub.example.com/login", Fields: []pb.Field{
		{Name: "login", Type: "text"},
		{Name: "pw", Type: "password"},
	}})
	if err != nil {
		t.Fatalf("OpenTab: %v", err)
	}

	gen, err := c.Generate(ctx, &pb.GenerateRequest{Master: "correct horse 1", TabID: id, URL: "https://sub.example.com/login", Domain: "sub.example.com", User: "bob", Mode: "uuid4"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(gen.Password) != 36 {
		t.Errorf("expected uuid4 password, got %q", gen.Password)
	}

	fill, err := c.Fill(ctx, id)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if fill.Remaining != 0 {
		t.Errorf("expected nothing remaining, got %d", fill.Remaining)
	}

	qc, err := c.QueryContext(ctx, id)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	if qc.Username != "bob" {
		t.Errorf("expected username bob, got %q", qc.Username)
	}

	if err := c.CloseTab(ctx, id); err != nil {
		t.Fatalf("CloseTab: %v", err)
	}
	if err := c.Navigate(ctx, &pb.NavigateRequest{TabID: id, URL: "https://x.example.com"}); err == nil {
		t.Error("expected error navigating a closed tab")
	}
}

func TestClientUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	c := newClient(t, addr)
	if _, err := c.GetPolicy(context.Background(), "https://bank.com"); err == nil {
		t.Fatal("expected error for unreachable broker")
	}
}
