package model

// Action is the policy access outcome for a URL.
type Action string

const (
	Allow Action = "ALLOW"
	Deny  Action = "DENY"
)

// Trust classifies whether a browsing context was vetted by policy.
// UNTRUSTED contexts still generate, but under a decoy salt label.
type Trust string

const (
	Trusted   Trust = "TRUSTED"
	Untrusted Trust = "UNTRUSTED"
)

// PolicyDecision is the result of evaluating a URL against the loaded
// policy document. It is computed fresh on every query because the
// current time is an input.
type PolicyDecision struct {
	Action            Action `json:"action"`
	Trust             Trust  `json:"trust"`
	Salt              string `json:"salt"`
	Domain            string `json:"domain"`
	AutoCounter       int    `json:"autoCounter"`
	IsExpired         bool   `json:"isExpired"`
	ExpirationCounter int    `json:"expirationCounter"`

	// Degraded is set when the policy document could not be loaded and
	// fail-open defaults were applied.
	Degraded   bool   `json:"degraded,omitempty"`
	PolicyHash string `json:"policyHash,omitempty"`
}

// Allowed reports whether generation is permitted.
func (d PolicyDecision) Allowed() bool {
	return d.Action == Allow
}

// Decoy reports whether generation yields decoy output.
func (d PolicyDecision) Decoy() bool {
	return d.Trust != Trusted
}
