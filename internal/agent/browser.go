// Package agent is an in-memory model of browser tabs and the page-context
// agent that injects credentials into them. It implements the tab resolver
// and fill agent the session cache depends on.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ppiankov/smdnano/internal/session"
)

var ErrNoSuchTab = errors.New("no such tab")

// Field is one input element on a page.
type Field struct {
	Name         string `json:"name,omitempty"`
	ID           string `json:"id,omitempty"`
	Type         string `json:"type"`
	Autocomplete string `json:"autocomplete,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"`
	Value        string `json:"value,omitempty"`
}

func (f Field) isPassword() bool {
	return strings.EqualFold(f.Type, "password")
}

// hint describes a password field to the user: its autocomplete token and
// name, or "password".
func (f Field) hint() string {
	h := f.Autocomplete
	if id := firstNonEmpty(f.Name, f.ID); id != "" {
		h += " (" + id + ")"
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return "password"
	}
	return h
}

// Page is the document loaded in a tab. Embedded marks a document running
// inside a frame rather than as the top-level browsing context.
type Page struct {
	URL      string  `json:"url"`
	Embedded bool    `json:"embedded,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

func (p Page) clone() Page {
	p.Fields = append([]Field(nil), p.Fields...)
	return p
}

// PageContext is what the agent reports about a page without filling it.
type PageContext struct {
	URL            string   `json:"url"`
	Username       string   `json:"username"`
	PasswordFields []string `json:"pwFields"`
}

// Browser holds open tabs.
type Browser struct {
	logger *slog.Logger

	mu     sync.Mutex
	tabs   map[int]*Page
	nextID int
}

// NewBrowser creates an empty browser.
func NewBrowser(logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{logger: logger, tabs: make(map[int]*Page), nextID: 1}
}

// Open loads page in a new tab and returns its ID.
func (b *Browser) Open(page Page) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	p := page.clone()
	b.tabs[id] = &p
	return id
}

// OpenAt loads page in the tab with the given ID, creating or replacing it.
func (b *Browser) OpenAt(tabID int, page Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := page.clone()
	b.tabs[tabID] = &p
	if tabID >= b.nextID {
		b.nextID = tabID + 1
	}
}

// Navigate replaces the page in an existing tab.
func (b *Browser) Navigate(tabID int, page Page) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tabs[tabID]; !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchTab, tabID)
	}
	p := page.clone()
	b.tabs[tabID] = &p
	return nil
}

// Close removes a tab.
func (b *Browser) Close(tabID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tabs[tabID]; !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchTab, tabID)
	}
	delete(b.tabs, tabID)
	return nil
}

// Page returns a copy of the page in tabID.
func (b *Browser) Page(tabID int) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.tabs[tabID]
	if !ok {
		return Page{}, fmt.Errorf("%w: %d", ErrNoSuchTab, tabID)
	}
	return p.clone(), nil
}

// CurrentURL implements session.Resolver.
func (b *Browser) CurrentURL(_ context.Context, tabID int) (string, error) {
	p, err := b.Page(tabID)
	if err != nil {
		return "", err
	}
	return p.URL, nil
}

// QueryContext reports the detected username and the password field hints.
func (b *Browser) QueryContext(_ context.Context, tabID int) (PageContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.tabs[tabID]
	if !ok {
		return PageContext{}, fmt.Errorf("%w: %d", ErrNoSuchTab, tabID)
	}
	pc := PageContext{URL: p.URL, PasswordFields: []string{}}
	if i := usernameField(p.Fields); i >= 0 {
		pc.Username = p.Fields[i].Value
	}
	for _, f := range p.Fields {
		if f.isPassword() {
			pc.PasswordFields = append(pc.PasswordFields, f.hint())
		}
	}
	return pc, nil
}

// Fill implements session.Agent. Refusals are reported in the response,
// not as errors; an error means the tab could not be reached.
func (b *Browser) Fill(_ context.Context, tabID int, req session.FillRequest) (session.FillResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.tabs[tabID]
	if !ok {
		return session.FillResponse{}, fmt.Errorf("%w: %d", ErrNoSuchTab, tabID)
	}

	if p.Embedded {
		return session.FillResponse{Error: "fill refused: not in top-level frame"}, nil
	}
	if req.Trust == "" {
		return session.FillResponse{Error: "fill refused: context not vetted by policy"}, nil
	}

	if i := usernameField(p.Fields); i >= 0 && req.Username != "" && p.Fields[i].Value == "" {
		p.Fields[i].Value = req.Username
	}

	targets := passwordTargets(p.Fields)
	if len(targets) == 0 {
		b.logger.Debug("no empty password fields", "tab", tabID)
		return session.FillResponse{Error: "no empty password fields found"}, nil
	}
	for _, i := range targets {
		p.Fields[i].Value = req.Password
	}

	resp := session.FillResponse{OK: true}
	for _, f := range p.Fields {
		if f.isPassword() && f.Value == "" {
			if resp.Remaining == 0 {
				resp.NextHint = firstNonEmpty(f.Autocomplete, "password")
			}
			resp.Remaining++
		}
	}
	b.logger.Debug("fill complete", "tab", tabID, "trust", req.Trust, "filled", len(targets), "remaining", resp.Remaining)
	return resp, nil
}

// passwordTargets returns the first empty password field and, when it has
// an autocomplete token, the next empty field sharing that token.
func passwordTargets(fields []Field) []int {
	first := -1
	for i, f := range fields {
		if f.isPassword() && f.Value == "" {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}
	targets := []int{first}
	token := strings.ToLower(fields[first].Autocomplete)
	if token == "" {
		return targets
	}
	for i := first + 1; i < len(fields); i++ {
		f := fields[i]
		if f.isPassword() && f.Value == "" && strings.ToLower(f.Autocomplete) == token {
			return append(targets, i)
		}
	}
	return targets
}

// usernameField picks the username input: the closest eligible input before
// the first password field, or when there is none, the first input whose
// identity looks like a login field.
func usernameField(fields []Field) int {
	firstPassword := -1
	for i, f := range fields {
		if f.isPassword() {
			firstPassword = i
			break
		}
	}

	if firstPassword >= 0 {
		for i := firstPassword - 1; i >= 0; i-- {
			if usernameCandidate(fields[i]) {
				return i
			}
		}
		return -1
	}

	fallback := -1
	for i, f := range fields {
		if !usernameCandidate(f) {
			continue
		}
		if fallback < 0 {
			fallback = i
		}
		if looksLikeLogin(firstNonEmpty(f.Name, f.ID, f.Placeholder)) {
			return i
		}
	}
	return fallback
}

func usernameCandidate(f Field) bool {
	switch strings.ToLower(f.Type) {
	case "password", "hidden", "submit", "button":
		return false
	}
	semantic := strings.ToLower(f.Name + f.ID + f.Autocomplete + f.Placeholder)
	return !strings.Contains(semantic, "password")
}

func looksLikeLogin(s string) bool {
	s = strings.ToLower(s)
	for _, k := range []string{"user", "email", "login", "id"} {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
