package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/smdnano/internal/model"
)

// Salt labels separating derivation universes.
const (
	SaltTrusted = "smd-nano"
	SaltDecoy   = "smd-nano-decoy"
	SaltExpired = "smd-nano-expired"
)

// Source supplies a policy document and the hash of its raw bytes.
type Source interface {
	Load() (*Document, string, error)
}

// FileSource loads the document from a path on disk.
type FileSource string

// Load implements Source.
func (p FileSource) Load() (*Document, string, error) {
	return LoadDocumentWithHash(string(p))
}

// StaticSource serves an in-memory document.
type StaticSource struct {
	Doc *Document
}

// Load implements Source.
func (s StaticSource) Load() (*Document, string, error) {
	if s.Doc == nil {
		return nil, "", errors.New("no policy document")
	}
	return s.Doc, "static", nil
}

// Engine evaluates URLs against a lazily loaded, compiled policy document.
// The document is replaced only through Reload; evaluation never mutates it.
type Engine struct {
	src    Source
	logger *slog.Logger

	mu  sync.RWMutex
	doc *compiledDocument
}

type compiledOverride struct {
	pattern *Pattern
	salt    string
}

type compiledDocument struct {
	raw       *Document
	hash      string
	mode      string
	allow     PatternSet
	deny      PatternSet
	except    PatternSet
	trusted   PatternSet
	overrides []compiledOverride

	statusExpired bool
	expiry        time.Time
	hasExpiry     bool
	created       time.Time
}

// New creates an engine. Nothing is loaded until the first Evaluate or an
// explicit Reload.
func New(src Source, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{src: src, logger: logger}
}

// NewWithDocument creates an engine preloaded with doc.
func NewWithDocument(doc *Document, logger *slog.Logger) *Engine {
	e := New(StaticSource{Doc: doc}, logger)
	if err := e.Reload(); err != nil {
		e.logger.Warn("policy document rejected", "error", err)
	}
	return e
}

// Reload re-reads and recompiles the document. On failure the previously
// loaded document, if any, stays in effect.
func (e *Engine) Reload() error {
	if e.src == nil {
		return errors.New("no policy source configured")
	}
	doc, hash, err := e.src.Load()
	if err != nil {
		return err
	}
	compiled := e.compile(doc, hash)

	e.mu.Lock()
	e.doc = compiled
	e.mu.Unlock()

	e.logger.Info("policy loaded", "mode", compiled.mode, "hash", hash)
	return nil
}

// Loaded reports whether a document is in effect.
func (e *Engine) Loaded() bool {
	return e.current() != nil
}

// Hash returns the hash of the loaded document, or "" when none is loaded.
func (e *Engine) Hash() string {
	if c := e.current(); c != nil {
		return c.hash
	}
	return ""
}

// Document returns a copy of the loaded document, or nil.
func (e *Engine) Document() *Document {
	c := e.current()
	if c == nil {
		return nil
	}
	doc := *c.raw
	return &doc
}

// CreatedAt returns the release reference point of the loaded document.
func (e *Engine) CreatedAt() (time.Time, bool) {
	c := e.current()
	if c == nil || c.created.IsZero() {
		return time.Time{}, false
	}
	return c.created, true
}

// Evaluate classifies a URL at the given instant. If no document can be
// loaded the engine fails open: ALLOW, TRUSTED, the plain trusted salt,
// counters at 1, and Degraded set.
func (e *Engine) Evaluate(rawURL string, now time.Time) model.PolicyDecision {
	domain := NormalizeDomain(rawURL)

	c := e.current()
	if c == nil {
		if err := e.Reload(); err != nil {
			e.logger.Warn("policy load failed, failing open", "error", err, "url", rawURL)
			return failOpen(domain)
		}
		c = e.current()
	}

	action := c.access(rawURL)
	trusted := c.trusted.MatchAny(rawURL)
	expired := c.statusExpired || (c.hasExpiry && now.After(c.expiry))

	trust := model.Untrusted
	if trusted {
		trust = model.Trusted
	}

	expirationCounter := 1
	if c.hasExpiry {
		expirationCounter = RotationCounter(c.created, c.expiry)
	}

	d := model.PolicyDecision{
		Action:            action,
		Trust:             trust,
		Salt:              c.salt(domain, rawURL, trusted, expired),
		Domain:            domain,
		AutoCounter:       RotationCounter(c.created, now),
		IsExpired:         expired,
		ExpirationCounter: expirationCounter,
		PolicyHash:        c.hash,
	}

	e.logger.Debug("policy evaluation", "url", rawURL, "action", d.Action, "domain", d.Domain, "trust", d.Trust)
	return d
}

func (e *Engine) current() *compiledDocument {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc
}

func (e *Engine) compile(doc *Document, hash string) *compiledDocument {
	c := &compiledDocument{
		raw:           doc,
		hash:          hash,
		mode:          doc.Mode,
		statusExpired: strings.EqualFold(doc.LicenseStatus, LicenseExpired),
	}
	if c.mode != ModeDefaultDeny {
		c.mode = ModeDefaultAllow
	}

	var errs []error
	var es []error
	c.allow, es = compileSet(doc.Rules.Allow)
	errs = append(errs, es...)
	c.deny, es = compileSet(doc.Rules.Deny)
	errs = append(errs, es...)
	c.except, es = compileSet(doc.Rules.Except)
	errs = append(errs, es...)
	c.trusted, es = compileSet(doc.TrustedContexts)
	errs = append(errs, es...)

	for _, o := range doc.Overrides {
		p, err := CompilePattern(o.Pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("override: %w", err))
			continue
		}
		c.overrides = append(c.overrides, compiledOverride{pattern: p, salt: o.Salt})
	}

	for _, err := range errs {
		e.logger.Warn("skipping policy pattern", "error", err)
	}

	if t, ok := parseTimestamp(doc.LicenseExpiry); ok {
		c.expiry, c.hasExpiry = t, true
	} else if doc.LicenseExpiry != "" {
		e.logger.Warn("unparseable license_expiry, ignoring", "value", doc.LicenseExpiry)
	}
	if t, ok := parseTimestamp(doc.CreatedAt); ok {
		c.created = t
	} else if doc.CreatedAt != "" {
		e.logger.Warn("unparseable created_at, rotation counter pinned to 1", "value", doc.CreatedAt)
	}

	return c
}

// access applies the three rule sets in the fixed order of the mode.
func (c *compiledDocument) access(rawURL string) model.Action {
	if c.mode == ModeDefaultDeny {
		action := model.Deny
		if c.allow.MatchAny(rawURL) {
			action = model.Allow
		}
		if c.deny.MatchAny(rawURL) {
			action = model.Deny
		}
		if c.except.MatchAny(rawURL) {
			action = model.Allow
		}
		return action
	}

	action := model.Allow
	if c.deny.MatchAny(rawURL) {
		action = model.Deny
	}
	if c.allow.MatchAny(rawURL) {
		action = model.Allow
	}
	if c.except.MatchAny(rawURL) {
		action = model.Deny
	}
	return action
}

// salt picks the label: expired beats everything, then the first matching
// override, then the trust-tier default.
func (c *compiledDocument) salt(domain, rawURL string, trusted, expired bool) string {
	if expired {
		return SaltExpired
	}
	for _, o := range c.overrides {
		if o.pattern.Match(domain) || o.pattern.Match(rawURL) {
			return o.salt
		}
	}
	if trusted {
		return SaltTrusted
	}
	return SaltDecoy
}

func failOpen(domain string) model.PolicyDecision {
	return model.PolicyDecision{
		Action:            model.Allow,
		Trust:             model.Trusted,
		Salt:              SaltTrusted,
		Domain:            domain,
		AutoCounter:       1,
		ExpirationCounter: 1,
		Degraded:          true,
	}
}
