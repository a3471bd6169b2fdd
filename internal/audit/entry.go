package audit

// Event names recorded in the log.
const (
	EventGenerate   = "generate"
	EventFill       = "fill"
	EventInvalidate = "invalidate"
	EventReload     = "policy_reload"
)

// Decisions.
const (
	DecisionOK      = "ok"
	DecisionRefused = "refused"
)

// Entry is one line in the hash-chained JSONL audit log. It never carries
// the master secret or a derived password. Fields are plain values (no
// map[string]any) so json.Marshal output is stable for hashing.
type Entry struct {
	Timestamp  string `json:"ts"`
	Event      string `json:"event"`
	TabID      int    `json:"tab_id,omitempty"`
	Domain     string `json:"domain,omitempty"`
	Trust      string `json:"trust,omitempty"`
	Decision   string `json:"decision"`
	Code       string `json:"code,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Counter    int    `json:"counter,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
	PolicyHash string `json:"policy_hash,omitempty"`
	PrevHash   string `json:"prev_hash"`
}
