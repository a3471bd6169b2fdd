package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/smdnano/internal/audit"
	"github.com/ppiankov/smdnano/internal/derive"
	"github.com/ppiankov/smdnano/internal/metrics"
	"github.com/ppiankov/smdnano/internal/model"
	"github.com/ppiankov/smdnano/internal/policy"
	"github.com/ppiankov/smdnano/internal/session"
)

func (b *Broker) evaluate(rawURL string) model.PolicyDecision {
	d := b.cfg.Policy.Evaluate(rawURL, b.cfg.Cache.Now())
	b.cfg.Metrics.RecordDecision(string(d.Action), string(d.Trust), d.Degraded)
	return d
}

func (b *Broker) getPolicy(c GetPolicy) (PolicyResult, error) {
	return PolicyResult{Decision: b.evaluate(c.URL)}, nil
}

func (b *Broker) generate(c Generate) (GenerateResult, error) {
	res, d, err := b.doGenerate(c)

	entry := audit.Entry{
		Event:    audit.EventGenerate,
		TabID:    c.TabID,
		Domain:   d.Domain,
		Trust:    string(d.Trust),
		Degraded: d.Degraded,
	}
	if err != nil {
		code := CodeOf(err)
		entry.Decision, entry.Code, entry.Reason = audit.DecisionRefused, string(code), err.Error()
		b.cfg.Metrics.RecordGenerate(string(code))
		b.logger.Warn("generate refused", "tab", c.TabID, "domain", d.Domain, "code", code, "error", err)
	} else {
		entry.Decision, entry.Counter = audit.DecisionOK, res.Context.Counter
		b.cfg.Metrics.RecordGenerate(metrics.OutcomeOK)
		b.logger.Info("generated", "tab", c.TabID, "domain", d.Domain, "trust", d.Trust, "counter", res.Context.Counter, "mode", res.Context.Mode)
	}
	b.record(entry)
	return res, err
}

func (b *Broker) doGenerate(c Generate) (GenerateResult, model.PolicyDecision, error) {
	if c.Master == "" {
		return GenerateResult{}, model.PolicyDecision{}, fmt.Errorf("%w: master secret required", ErrInvalidRequest)
	}
	if c.Counter < 0 {
		return GenerateResult{}, model.PolicyDecision{}, fmt.Errorf("%w: negative counter", ErrInvalidRequest)
	}

	d := b.evaluate(c.URL)
	if !d.Allowed() {
		return GenerateResult{}, d, model.ErrAccessDenied
	}
	if c.Domain != d.Domain {
		return GenerateResult{}, d, &model.ContextMismatchError{Was: c.Domain, Now: d.Domain}
	}

	counter := c.Counter
	if counter == 0 {
		counter = policy.RecommendCounter(d, c.NewPassword)
	}
	if limit, limited := policy.MaxCounter(d); limited && counter > limit {
		return GenerateResult{}, d, fmt.Errorf("%w: %d > %d", ErrCounterRestricted, counter, limit)
	}
	if r := b.limiter.Allow(d.Domain, b.cfg.Cache.Now()); r.Exceeded {
		return GenerateResult{}, d, fmt.Errorf("%w: %s", ErrRateLimited, r.Reason)
	}

	mode := derive.ParseMode(c.Mode)
	length := derive.ClampLength(c.Length)

	start := time.Now()
	password, err := derive.Derive(derive.Request{
		Master:      c.Master,
		Domain:      d.Domain,
		User:        c.User,
		Counter:     counter,
		Length:      length,
		Mode:        mode,
		SaltLabel:   d.Salt,
		InstallSeed: b.cfg.Seeds.InstallSeed,
		UserSeed:    b.cfg.Seeds.UserSeed,
	})
	b.cfg.Metrics.ObserveDerive(time.Since(start))
	if err != nil {
		return GenerateResult{}, d, fmt.Errorf("derive: %w", err)
	}

	stored := b.cfg.Cache.Put(c.TabID, session.Entry{
		Domain:   d.Domain,
		URL:      c.URL,
		Password: password,
		User:     c.User,
		Trust:    d.Trust,
	}, b.cfg.TTL)

	if mode == derive.ModeUUID4 {
		length = len(password)
	}
	fingerprint := derive.Fingerprint(password)
	if d.IsExpired {
		fingerprint = derive.ExpiredFingerprint
	}
	return GenerateResult{
		Password: password,
		Context: GenerateContext{
			TabID:     c.TabID,
			Domain:    d.Domain,
			URL:       c.URL,
			ExpiresAt: stored.ExpiresAt,
			Trust:     d.Trust,
			Counter:   counter,
			Length:    length,
			Mode:      mode.String(),
		},
		Fingerprint: fingerprint,
	}, d, nil
}

func (b *Broker) fill(ctx context.Context, c Fill) (FillResult, error) {
	pending, _ := b.cfg.Cache.Get(c.TabID)

	resp, err := b.cfg.Cache.Fill(ctx, c.TabID)
	if err == nil && !resp.OK {
		err = fmt.Errorf("%w: %s", ErrAgentRefused, resp.Error)
	}

	entry := audit.Entry{
		Event:  audit.EventFill,
		TabID:  c.TabID,
		Domain: pending.Domain,
		Trust:  string(pending.Trust),
	}
	if err != nil {
		code := CodeOf(err)
		entry.Decision, entry.Code, entry.Reason = audit.DecisionRefused, string(code), err.Error()
		b.cfg.Metrics.RecordFill(string(code))
		b.logger.Warn("fill refused", "tab", c.TabID, "domain", pending.Domain, "code", code, "error", err)
	} else {
		entry.Decision = audit.DecisionOK
		b.cfg.Metrics.RecordFill(metrics.OutcomeOK)
		b.logger.Info("filled", "tab", c.TabID, "domain", pending.Domain, "remaining", resp.Remaining)
	}
	b.record(entry)

	return FillResult{FillResponse: resp}, err
}

func (b *Broker) invalidate(c Invalidate) (InvalidateResult, error) {
	pending, _ := b.cfg.Cache.Get(c.TabID)
	removed := b.cfg.Cache.Invalidate(c.TabID)
	if removed {
		b.logger.Debug("invalidated", "tab", c.TabID, "reason", c.Reason)
		b.record(audit.Entry{
			Event:    audit.EventInvalidate,
			TabID:    c.TabID,
			Domain:   pending.Domain,
			Decision: audit.DecisionOK,
			Reason:   c.Reason,
		})
	}
	return InvalidateResult{Removed: removed}, nil
}
