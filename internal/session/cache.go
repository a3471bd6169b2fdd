// Package session holds derived secrets between generation and fill. There
// is at most one entry per tab, entries live for a short TTL, and every fill
// re-checks the tab's current context before anything leaves the cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/smdnano/internal/model"
)

// DefaultTTL bounds how long a generated secret waits for a fill.
const DefaultTTL = 20 * time.Second

var (
	ErrNothingToFill  = errors.New("nothing to fill (expired or cleared)")
	ErrExpired        = errors.New("expired, generate again")
	ErrTabUnavailable = errors.New("tab unavailable")
)

// Entry is the pending secret for one tab. It is never written to disk.
type Entry struct {
	Domain    string
	URL       string
	Password  string
	User      string
	Trust     model.Trust
	ExpiresAt time.Time
}

// Resolver reports the URL currently loaded in a tab.
type Resolver interface {
	CurrentURL(ctx context.Context, tabID int) (string, error)
}

// Classifier evaluates a URL against policy.
type Classifier interface {
	Evaluate(rawURL string, now time.Time) model.PolicyDecision
}

// FillRequest is what the page agent receives.
type FillRequest struct {
	Password string      `json:"password"`
	Username string      `json:"username,omitempty"`
	Domain   string      `json:"domain"`
	Trust    model.Trust `json:"trust"`
}

// FillResponse is the page agent's answer, passed back unchanged.
type FillResponse struct {
	OK        bool   `json:"ok"`
	Remaining int    `json:"remaining"`
	NextHint  string `json:"nextHint,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Agent performs the injection inside a tab.
type Agent interface {
	Fill(ctx context.Context, tabID int, req FillRequest) (FillResponse, error)
}

// Cache maps tab IDs to pending entries.
type Cache struct {
	resolver   Resolver
	classifier Classifier
	agent      Agent
	now        func() time.Time

	mu      sync.Mutex
	entries map[int]Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache that revalidates with classifier against the URL
// resolver reports, and dispatches fills to agent.
func New(resolver Resolver, classifier Classifier, agent Agent, opts ...Option) *Cache {
	c := &Cache{
		resolver:   resolver,
		classifier: classifier,
		agent:      agent,
		now:        time.Now,
		entries:    make(map[int]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time {
	return c.now()
}

// Put stores e for tabID, replacing any earlier entry. A non-positive ttl
// selects DefaultTTL. The stored entry is returned with ExpiresAt set.
func (c *Cache) Put(tabID int, e Entry, ttl time.Duration) Entry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e.ExpiresAt = c.now().Add(ttl)

	c.mu.Lock()
	c.entries[tabID] = e
	c.mu.Unlock()
	return e
}

// Get returns the entry for tabID without checking expiry.
func (c *Cache) Get(tabID int) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[tabID]
	return e, ok
}

// Invalidate drops the entry for tabID and reports whether one existed.
func (c *Cache) Invalidate(tabID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[tabID]
	delete(c.entries, tabID)
	return ok
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of pending entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fill revalidates the pending entry for tabID and dispatches it to the
// agent. Nothing is dispatched unless the tab still resolves to the domain
// the secret was derived for.
//
// On a successful fill with no fields left the entry is consumed. When the
// agent reports remaining fields (a confirmation pair) the entry stays
// until its TTL so the next fill can complete the sequence.
func (c *Cache) Fill(ctx context.Context, tabID int) (FillResponse, error) {
	e, ok := c.Get(tabID)
	if !ok {
		return FillResponse{}, ErrNothingToFill
	}
	now := c.now()
	if now.After(e.ExpiresAt) {
		c.Invalidate(tabID)
		return FillResponse{}, ErrExpired
	}

	current, err := c.resolver.CurrentURL(ctx, tabID)
	if err != nil {
		c.Invalidate(tabID)
		return FillResponse{}, fmt.Errorf("%w: %v", ErrTabUnavailable, err)
	}
	decision := c.classifier.Evaluate(current, now)
	if decision.Domain != e.Domain {
		c.Invalidate(tabID)
		return FillResponse{}, &model.ContextMismatchError{Was: e.Domain, Now: decision.Domain}
	}

	resp, err := c.agent.Fill(ctx, tabID, FillRequest{
		Password: e.Password,
		Username: e.User,
		Domain:   e.Domain,
		Trust:    e.Trust,
	})
	if err != nil {
		return resp, fmt.Errorf("dispatch fill: %w", err)
	}
	if resp.OK && resp.Remaining == 0 {
		c.Invalidate(tabID)
	}
	return resp, nil
}
