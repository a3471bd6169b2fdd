// Package broker is the long-lived owner of policy and session state. All
// commands are serviced one at a time by a single goroutine, so no two
// commands interleave their cache mutations.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/smdnano/internal/audit"
	"github.com/ppiankov/smdnano/internal/metrics"
	"github.com/ppiankov/smdnano/internal/ratelimit"
	"github.com/ppiankov/smdnano/internal/seeds"
	"github.com/ppiankov/smdnano/internal/session"
)

// DefaultSweepInterval is how often expired cache entries are dropped.
const DefaultSweepInterval = 5 * time.Second

// Config wires a Broker to its collaborators. Audit and Metrics may be nil.
type Config struct {
	Policy        session.Classifier
	Cache         *session.Cache
	Seeds         seeds.Seeds
	Audit         audit.Recorder
	Metrics       *metrics.Collector
	Logger        *slog.Logger
	TTL           time.Duration
	SweepInterval time.Duration

	// GenerateLimit caps Generate commands per domain. Zero disables it.
	GenerateLimit ratelimit.Limit

	// PolicyHash, when set, is stamped on audit entries.
	PolicyHash func() string
}

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan reply
}

type reply struct {
	res Result
	err error
}

// Broker dispatches commands.
type Broker struct {
	cfg    Config
	logger *slog.Logger
	reqs   chan request
	done   chan struct{}

	limiter *ratelimit.Tracker
}

// New creates a Broker. Call Run to start servicing commands.
func New(cfg Config) *Broker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.PolicyHash == nil {
		cfg.PolicyHash = func() string { return "" }
	}
	return &Broker{
		cfg:    cfg,
		logger: cfg.Logger,
		reqs:   make(chan request),
		done:   make(chan struct{}),

		limiter: ratelimit.NewTracker(cfg.GenerateLimit),
	}
}

// Run services commands until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := b.cfg.Cache.Sweep(); n > 0 {
				b.logger.Debug("swept expired entries", "count", n)
			}
			b.limiter.Sweep(b.cfg.Cache.Now())
			b.cfg.Metrics.SetCacheEntries(b.cfg.Cache.Len())
		case req := <-b.reqs:
			res, err := b.Handle(req.ctx, req.cmd)
			req.reply <- reply{res: res, err: err}
		}
	}
}

// Submit hands cmd to the Run loop and waits for its result. If ctx ends
// first Submit returns ctx.Err(); a command already accepted still runs to
// completion and its result is discarded.
func (b *Broker) Submit(ctx context.Context, cmd Command) (Result, error) {
	req := request{
		ctx:   context.WithoutCancel(ctx),
		cmd:   cmd,
		reply: make(chan reply, 1),
	}
	select {
	case b.reqs <- req:
	case <-b.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Handle runs cmd on the calling goroutine. Only the Run loop and tests
// call it directly.
func (b *Broker) Handle(ctx context.Context, cmd Command) (Result, error) {
	var (
		res Result
		err error
	)
	switch c := cmd.(type) {
	case GetPolicy:
		res, err = b.getPolicy(c)
	case Generate:
		res, err = b.generate(c)
	case Fill:
		res, err = b.fill(ctx, c)
	case Invalidate:
		res, err = b.invalidate(c)
	default:
		return nil, fmt.Errorf("%w: unknown command %T", ErrInvalidRequest, cmd)
	}
	b.cfg.Metrics.SetCacheEntries(b.cfg.Cache.Len())
	return res, err
}

// GetPolicy submits a GetPolicy command.
func (b *Broker) GetPolicy(ctx context.Context, cmd GetPolicy) (PolicyResult, error) {
	return submitAs[PolicyResult](ctx, b, cmd)
}

// Generate submits a Generate command.
func (b *Broker) Generate(ctx context.Context, cmd Generate) (GenerateResult, error) {
	return submitAs[GenerateResult](ctx, b, cmd)
}

// Fill submits a Fill command.
func (b *Broker) Fill(ctx context.Context, cmd Fill) (FillResult, error) {
	return submitAs[FillResult](ctx, b, cmd)
}

// Invalidate submits an Invalidate command.
func (b *Broker) Invalidate(ctx context.Context, cmd Invalidate) (InvalidateResult, error) {
	return submitAs[InvalidateResult](ctx, b, cmd)
}

// submitAs returns the typed result even when err is set, so a refusal
// still carries whatever the handler reported.
func submitAs[R Result](ctx context.Context, b *Broker, cmd Command) (R, error) {
	res, err := b.Submit(ctx, cmd)
	r, ok := res.(R)
	if !ok && res != nil {
		return r, fmt.Errorf("broker: unexpected result %T for %T", res, cmd)
	}
	return r, err
}

func (b *Broker) record(e audit.Entry) {
	if b.cfg.Audit == nil {
		return
	}
	if e.PolicyHash == "" {
		e.PolicyHash = b.cfg.PolicyHash()
	}
	if err := b.cfg.Audit.Record(e); err != nil {
		b.logger.Error("audit write failed", "event", e.Event, "error", err)
	}
}
