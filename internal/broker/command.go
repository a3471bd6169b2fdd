package broker

import (
	"time"

	"github.com/ppiankov/smdnano/internal/model"
	"github.com/ppiankov/smdnano/internal/session"
)

// Command is a request to the broker. The set of variants is closed.
type Command interface {
	command()
}

// GetPolicy classifies a URL.
type GetPolicy struct {
	URL string `json:"url"`
}

// Generate derives a password for the page in a tab and parks it in the
// session cache. Domain is the caller's view of the page and must agree
// with the domain policy derives from URL. Zero Counter selects the
// recommended counter; zero Length selects the default length.
type Generate struct {
	Master      string `json:"master"`
	TabID       int    `json:"tabId"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	User        string `json:"user,omitempty"`
	Counter     int    `json:"counter,omitempty"`
	Length      int    `json:"length,omitempty"`
	Mode        string `json:"mode,omitempty"`
	NewPassword bool   `json:"newPassword,omitempty"`
}

// Fill injects the pending secret for a tab.
type Fill struct {
	TabID int `json:"tabId"`
}

// Invalidate drops the pending secret for a tab, e.g. on navigation or tab
// activation observed by the UI.
type Invalidate struct {
	TabID  int    `json:"tabId"`
	Reason string `json:"reason,omitempty"`
}

func (GetPolicy) command()  {}
func (Generate) command()   {}
func (Fill) command()       {}
func (Invalidate) command() {}

// Result is the typed answer to a Command.
type Result interface {
	result()
}

// PolicyResult answers GetPolicy.
type PolicyResult struct {
	Decision model.PolicyDecision `json:"decision"`
}

// GenerateContext describes where a generated secret may be filled.
type GenerateContext struct {
	TabID     int         `json:"tabId"`
	Domain    string      `json:"domain"`
	URL       string      `json:"url"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Trust     model.Trust `json:"trust"`
	Counter   int         `json:"counter"`
	Length    int         `json:"length"`
	Mode      string      `json:"mode"`
}

// GenerateResult answers Generate.
type GenerateResult struct {
	Password    string          `json:"password"`
	Context     GenerateContext `json:"ctx"`
	Fingerprint string          `json:"fingerprint"`
}

// FillResult answers Fill with the page agent's report.
type FillResult struct {
	session.FillResponse
}

// InvalidateResult answers Invalidate.
type InvalidateResult struct {
	Removed bool `json:"removed"`
}

func (PolicyResult) result()     {}
func (GenerateResult) result()   {}
func (FillResult) result()       {}
func (InvalidateResult) result() {}
