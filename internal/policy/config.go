package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rule-evaluation strategies.
const (
	// ModeDefaultDeny starts at DENY. Precedence: except > deny > allow.
	ModeDefaultDeny = "DENY+ALLOW+EXCEPT"
	// ModeDefaultAllow starts at ALLOW. Precedence: except > allow > deny.
	ModeDefaultAllow = "ALLOW+DENY+EXCEPT"
)

// LicenseExpired is the license_status value that forces the expired salt.
const LicenseExpired = "EXPIRED"

// Rules holds the three ordered pattern sets.
type Rules struct {
	Allow  []string `yaml:"allow" json:"allow"`
	Deny   []string `yaml:"deny" json:"deny"`
	Except []string `yaml:"except" json:"except"`
}

// Override binds a custom salt label to URLs or domains matching Pattern.
type Override struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Salt    string `yaml:"salt" json:"salt"`
}

// Document is the policy file as loaded from disk. JSON documents load
// through the same YAML decoder.
type Document struct {
	Mode            string     `yaml:"mode" json:"mode"`
	Rules           Rules      `yaml:"rules" json:"rules"`
	TrustedContexts []string   `yaml:"trusted_contexts" json:"trusted_contexts"`
	Overrides       []Override `yaml:"overrides" json:"overrides"`
	LicenseStatus   string     `yaml:"license_status" json:"license_status"`
	LicenseExpiry   string     `yaml:"license_expiry" json:"license_expiry"`
	CreatedAt       string     `yaml:"created_at" json:"created_at"`
}

// DefaultPath returns ~/.smdnano/policy.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "smdnano", "policy.yaml")
	}
	return filepath.Join(home, ".smdnano", "policy.yaml")
}

// LoadDocument reads and parses a policy document.
// Unlike most config in this codebase a missing file is an error: the
// engine decides how to degrade.
func LoadDocument(path string) (*Document, error) {
	doc, _, err := LoadDocumentWithHash(path)
	return doc, err
}

// LoadDocumentWithHash loads a policy document and returns the SHA-256 of
// the raw bytes on disk.
func LoadDocumentWithHash(path string) (*Document, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read policy document: %w", err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, "", err
	}

	h := sha256.Sum256(data)
	return doc, "sha256:" + hex.EncodeToString(h[:]), nil
}

// ParseDocument decodes YAML or JSON policy bytes.
func ParseDocument(data []byte) (*Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("failed to parse policy document: empty document")
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return &doc, nil
}

// parseTimestamp accepts RFC 3339 or a bare date. Unparseable input
// yields ok=false, which callers treat as "no timestamp".
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DefaultDocumentYAML returns a commented policy template for init.
func DefaultDocumentYAML(createdAt time.Time) string {
	return fmt.Sprintf(`# smdnano policy document
# Generated by: smdnano init
#
# mode selects the rule-evaluation strategy:
#   DENY+ALLOW+EXCEPT  start DENY;  allow -> ALLOW, deny -> DENY, except -> ALLOW
#   ALLOW+DENY+EXCEPT  start ALLOW; deny -> DENY, allow -> ALLOW, except -> DENY
#
# Patterns are globs (* any run, ? one char) matched against the full URL,
# case-insensitive. A pattern starting with ^ is a raw regular expression.
mode: ALLOW+DENY+EXCEPT

rules:
  allow:
    - "http://localhost*"
    - "http://127.0.0.1*"
  deny:
    - "http://*"
  except: []

# URLs matching a trusted context derive real passwords. Everything else
# derives a decoy under a different salt label.
trusted_contexts:
  - "https://*"
  - "file://*"

# Custom salt labels, first match on domain or URL wins.
overrides: []

license_status: ACTIVE
license_expiry: "%s"

# Release reference point for the 90-day automatic rotation counter.
created_at: "%s"
`, createdAt.AddDate(1, 0, 0).UTC().Format("2006-01-02"), createdAt.UTC().Format("2006-01-02"))
}
