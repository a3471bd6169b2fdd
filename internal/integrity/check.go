// Package integrity verifies the binary checksum before any secret is
// derived. The expected hash is embedded at build time via ldflags or
// pinned in a checksum file. If the running binary does not match, a
// tamper event is recorded and derivation is refused.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExpectedHash is set at build time via:
//
//	-ldflags "-X github.com/ppiankov/smdnano/internal/integrity.ExpectedHash=<sha256hex>"
//
// When empty (dev builds), verification falls back to the checksum file.
var ExpectedHash string

// TamperLogDir is the directory where tamper events are written.
// Override for testing.
var TamperLogDir = defaultDir()

// ChecksumPaths are the paths checked (in order) for a checksum file.
// Override for testing.
var ChecksumPaths = []string{
	"/etc/smdnano/binary.sha256",
	"$HOME/.smdnano/binary.sha256",
}

// ErrTampered is returned when the binary does not match the pinned hash.
var ErrTampered = errors.New("integrity: binary checksum mismatch")

// Pin is the checksum file format. A bare hex digest is accepted too.
type Pin struct {
	SHA256   string `yaml:"sha256"`
	Binary   string `yaml:"binary,omitempty"`
	PinnedAt string `yaml:"pinned_at,omitempty"`
}

// TamperEvent records a binary integrity violation.
type TamperEvent struct {
	Timestamp    string `json:"timestamp"`
	Binary       string `json:"binary"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash"`
	Hostname     string `json:"hostname"`
	Type         string `json:"type"`
}

// Verify checks that the running binary matches ExpectedHash, falling back
// to the checksum file at ChecksumPaths. Returns nil when verification
// passes or when no expected hash is available (dev mode). On mismatch a
// tamper event is written before ErrTampered is returned.
func Verify() error {
	expected := strings.ToLower(ExpectedHash)
	if expected == "" {
		expected = loadChecksumFile()
	}
	if expected == "" {
		fmt.Fprintf(os.Stderr, "integrity: WARNING no build-time hash or checksum file found (dev build, integrity check skipped)\n")
		return nil
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}

	actual, err := hashFile(exePath)
	if err != nil {
		return fmt.Errorf("integrity: cannot hash binary: %w", err)
	}

	if actual == expected {
		return nil
	}

	event := TamperEvent{
		Timestamp:    time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Binary:       exePath,
		ExpectedHash: expected,
		ActualHash:   actual,
		Type:         "binary_tamper",
	}
	event.Hostname, _ = os.Hostname()

	writeTamperEvent(event)

	return fmt.Errorf("%w (expected %s, got %s)", ErrTampered, expected, actual)
}

// HashSelf returns the SHA-256 hex digest of the running binary.
func HashSelf() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	return hashFile(exePath)
}

// WritePin hashes the running binary and writes a checksum file at path.
func WritePin(path string, now time.Time) (Pin, error) {
	exePath, err := os.Executable()
	if err != nil {
		return Pin{}, fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	sum, err := hashFile(exePath)
	if err != nil {
		return Pin{}, fmt.Errorf("integrity: cannot hash binary: %w", err)
	}

	pin := Pin{SHA256: sum, Binary: exePath, PinnedAt: now.UTC().Format(time.RFC3339)}
	data, err := yaml.Marshal(pin)
	if err != nil {
		return Pin{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return Pin{}, fmt.Errorf("integrity: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return Pin{}, fmt.Errorf("integrity: write pin: %w", err)
	}
	return pin, nil
}

// DefaultPinPath returns ~/.smdnano/binary.sha256.
func DefaultPinPath() string {
	return filepath.Join(defaultDir(), "binary.sha256")
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "smdnano")
	}
	return filepath.Join(home, ".smdnano")
}

// loadChecksumFile reads the expected hash from the first readable
// checksum file. Returns empty string if none is found.
func loadChecksumFile() string {
	for _, p := range ChecksumPaths {
		data, err := os.ReadFile(os.ExpandEnv(p))
		if err != nil {
			continue
		}
		if hash := parsePin(data); hash != "" {
			return hash
		}
	}
	return ""
}

// parsePin accepts a bare hex digest or a YAML Pin document.
func parsePin(data []byte) string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return ""
	}

	var hash string
	switch root := doc.Content[0]; root.Kind {
	case yaml.ScalarNode:
		hash = root.Value
	case yaml.MappingNode:
		var pin Pin
		if err := root.Decode(&pin); err != nil {
			return ""
		}
		hash = pin.SHA256
	}

	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) == 64 && isHex(hash) {
		return hash
	}
	return ""
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeTamperEvent appends a tamper event to the tamper log and prints it
// to stderr.
func writeTamperEvent(event TamperEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		return
	}

	logPath := filepath.Join(TamperLogDir, "tamper.jsonl")
	if err := os.MkdirAll(TamperLogDir, 0700); err == nil {
		if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			f.Write(append(line, '\n'))
			f.Sync()
			f.Close()
		}
	}

	fmt.Fprintf(os.Stderr, "TAMPER ALERT: %s\n", string(line))
}
