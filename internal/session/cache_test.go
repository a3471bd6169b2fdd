package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/smdnano/internal/logging"
	"github.com/ppiankov/smdnano/internal/model"
	"github.com/ppiankov/smdnano/internal/policy"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeTabs map[int]string

func (f fakeTabs) CurrentURL(_ context.Context, tabID int) (string, error) {
	u, ok := f[tabID]
	if !ok {
		return "", errors.New("no such tab")
	}
	return u, nil
}

type recordingAgent struct {
	calls     []FillRequest
	remaining []int
}

func (a *recordingAgent) Fill(_ context.Context, _ int, req FillRequest) (FillResponse, error) {
	a.calls = append(a.calls, req)
	rem := 0
	if len(a.remaining) > 0 {
		rem, a.remaining = a.remaining[0], a.remaining[1:]
	}
	return FillResponse{OK: true, Remaining: rem, NextHint: "password"}, nil
}

func newEngine() *policy.Engine {
	return policy.NewWithDocument(&policy.Document{
		Mode:            policy.ModeDefaultAllow,
		TrustedContexts: []string{"https://*"},
		CreatedAt:       "2026-01-01",
	}, logging.Discard())
}

func newTestCache(tabs fakeTabs, agent *recordingAgent) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	return New(tabs, newEngine(), agent, WithClock(clock.Now)), clock
}

func bankEntry() Entry {
	return Entry{Domain: "bank.com", URL: "https://bank.com/login", Password: "s3cret!", User: "alice", Trust: model.Trusted}
}

func TestFillDispatchesAndConsumes(t *testing.T) {
	agent := &recordingAgent{}
	c, _ := newTestCache(fakeTabs{5: "https://bank.com/login"}, agent)
	c.Put(5, bankEntry(), 0)

	resp, err := c.Fill(context.Background(), 5)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if !resp.OK {
		t.Errorf("expected ok response, got %+v", resp)
	}
	if len(agent.calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(agent.calls))
	}
	got := agent.calls[0]
	if got.Password != "s3cret!" || got.Username != "alice" || got.Domain != "bank.com" || got.Trust != model.Trusted {
		t.Errorf("unexpected fill request %+v", got)
	}
	if c.Len() != 0 {
		t.Errorf("expected entry consumed, %d left", c.Len())
	}
	if _, err := c.Fill(context.Background(), 5); !errors.Is(err, ErrNothingToFill) {
		t.Errorf("expected ErrNothingToFill after consume, got %v", err)
	}
}

func TestFillKeepsEntryWhileFieldsRemain(t *testing.T) {
	agent := &recordingAgent{remaining: []int{1, 0}}
	c, _ := newTestCache(fakeTabs{5: "https://bank.com/register"}, agent)
	c.Put(5, bankEntry(), 0)

	resp, err := c.Fill(context.Background(), 5)
	if err != nil {
		t.Fatalf("first Fill failed: %v", err)
	}
	if resp.Remaining != 1 {
		t.Errorf("expected remaining=1, got %d", resp.Remaining)
	}
	if c.Len() != 1 {
		t.Fatalf("expected entry kept for confirmation field")
	}
	if _, err := c.Fill(context.Background(), 5); err != nil {
		t.Fatalf("second Fill failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected entry consumed after last field")
	}
}

func TestFillRefusesAfterNavigation(t *testing.T) {
	agent := &recordingAgent{}
	tabs := fakeTabs{5: "https://bank.com"}
	c, _ := newTestCache(tabs, agent)
	c.Put(5, Entry{Domain: "bank.com", URL: "https://bank.com", Password: "pw-bank-123", Trust: model.Trusted}, 0)

	tabs[5] = "https://attacker.com"

	_, err := c.Fill(context.Background(), 5)
	if !errors.Is(err, model.ErrContextChanged) {
		t.Fatalf("expected context mismatch, got %v", err)
	}
	var mismatch *model.ContextMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *ContextMismatchError, got %T", err)
	}
	if mismatch.Was != "bank.com" || mismatch.Now != "attacker.com" {
		t.Errorf("expected was=bank.com now=attacker.com, got %+v", mismatch)
	}
	if len(agent.calls) != 0 {
		t.Errorf("expected no dispatch, got %d", len(agent.calls))
	}
	if c.Len() != 0 {
		t.Errorf("expected entry dropped on mismatch")
	}
}

func TestFillSameDomainDifferentPath(t *testing.T) {
	agent := &recordingAgent{}
	tabs := fakeTabs{5: "https://bank.com/login"}
	c, _ := newTestCache(tabs, agent)
	c.Put(5, bankEntry(), 0)

	tabs[5] = "https://www.bank.com/login/step2"
	if _, err := c.Fill(context.Background(), 5); err != nil {
		t.Fatalf("expected fill within same domain, got %v", err)
	}
}

func TestFillExpired(t *testing.T) {
	agent := &recordingAgent{}
	c, clock := newTestCache(fakeTabs{5: "https://bank.com"}, agent)
	c.Put(5, bankEntry(), 20*time.Second)

	clock.Advance(21 * time.Second)

	if _, err := c.Fill(context.Background(), 5); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := c.Fill(context.Background(), 5); !errors.Is(err, ErrNothingToFill) {
		t.Fatalf("expected ErrNothingToFill, got %v", err)
	}
	if len(agent.calls) != 0 {
		t.Errorf("expected no dispatch, got %d", len(agent.calls))
	}
}

func TestFillExactlyAtExpiry(t *testing.T) {
	agent := &recordingAgent{}
	c, clock := newTestCache(fakeTabs{5: "https://bank.com"}, agent)
	c.Put(5, bankEntry(), 20*time.Second)
	clock.Advance(20 * time.Second)
	if _, err := c.Fill(context.Background(), 5); err != nil {
		t.Fatalf("expected fill at the expiry instant, got %v", err)
	}
}

func TestFillTabGone(t *testing.T) {
	agent := &recordingAgent{}
	c, _ := newTestCache(fakeTabs{}, agent)
	c.Put(9, bankEntry(), 0)
	if _, err := c.Fill(context.Background(), 9); !errors.Is(err, ErrTabUnavailable) {
		t.Fatalf("expected ErrTabUnavailable, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("expected entry dropped")
	}
}

func TestPutOverwrites(t *testing.T) {
	c, _ := newTestCache(fakeTabs{}, &recordingAgent{})
	c.Put(1, Entry{Domain: "a.com", Password: "one"}, 0)
	c.Put(1, Entry{Domain: "b.com", Password: "two"}, 0)
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
	e, _ := c.Get(1)
	if e.Domain != "b.com" || e.Password != "two" {
		t.Errorf("expected overwrite, got %+v", e)
	}
}

func TestSweepAndInvalidate(t *testing.T) {
	c, clock := newTestCache(fakeTabs{}, &recordingAgent{})
	c.Put(1, Entry{Domain: "a.com"}, 5*time.Second)
	c.Put(2, Entry{Domain: "b.com"}, 60*time.Second)
	c.Put(3, Entry{Domain: "c.com"}, 60*time.Second)

	clock.Advance(10 * time.Second)
	if n := c.Sweep(); n != 1 {
		t.Errorf("expected 1 swept, got %d", n)
	}
	if !c.Invalidate(2) {
		t.Error("expected Invalidate(2) to report an entry")
	}
	if c.Invalidate(2) {
		t.Error("expected second Invalidate(2) to report nothing")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", c.Len())
	}
}
