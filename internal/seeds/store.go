// Package seeds persists the two per-install seed values mixed into every
// derivation. They are written once and never rotated; losing them changes
// every derived password.
package seeds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrMissing is returned when the seed file does not exist.
var ErrMissing = errors.New("install seeds not found")

// Seeds are the per-install values.
type Seeds struct {
	InstallSeed string    `json:"install_seed"`
	UserSeed    string    `json:"user_seed"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s Seeds) valid() bool {
	return s.InstallSeed != "" && s.UserSeed != ""
}

// DefaultPath returns ~/.smdnano/seeds.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "smdnano", "seeds.json")
	}
	return filepath.Join(home, ".smdnano", "seeds.json")
}

// Load reads the seed file at path.
func Load(path string) (Seeds, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Seeds{}, fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return Seeds{}, fmt.Errorf("read seeds: %w", err)
	}
	var s Seeds
	if err := json.Unmarshal(data, &s); err != nil {
		return Seeds{}, fmt.Errorf("parse seeds %s: %w", path, err)
	}
	if !s.valid() {
		return Seeds{}, fmt.Errorf("%w: %s has empty values", ErrMissing, path)
	}
	return s, nil
}

// Ensure loads the seeds at path, creating them on first use. The second
// return value reports whether a new file was written.
func Ensure(path string) (Seeds, bool, error) {
	s, err := Load(path)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, ErrMissing) {
		return Seeds{}, false, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		// Present but empty: refuse to overwrite, a rewrite would silently
		// change every password derived so far.
		return Seeds{}, false, err
	}

	s = Seeds{
		InstallSeed: uuid.NewString(),
		UserSeed:    uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := writeAtomic(path, s); err != nil {
		return Seeds{}, false, fmt.Errorf("write seeds: %w", err)
	}
	return s, true, nil
}

func writeAtomic(path string, s Seeds) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
