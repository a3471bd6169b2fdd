package derive

import (
	"errors"
	"testing"
)

func TestValidateMaster(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"abc1", ErrMasterTooShort},
		{"abcdefgh", ErrMasterWeak},
		{"12345678", ErrMasterWeak},
		{"abcde1", nil},
		{"pässwört!", nil},
	}
	for _, tt := range tests {
		if err := ValidateMaster(tt.in); !errors.Is(err, tt.want) {
			t.Errorf("ValidateMaster(%q): expected %v, got %v", tt.in, tt.want, err)
		}
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint(""); got != "" {
		t.Errorf("expected empty fingerprint for empty password, got %q", got)
	}
	a := Fingerprint("hunter2-Example!")
	if a == "" {
		t.Fatal("expected a glyph")
	}
	if b := Fingerprint("hunter2-Example!"); a != b {
		t.Errorf("expected stable fingerprint, got %q and %q", a, b)
	}
	found := false
	for _, g := range fingerprintGlyphs {
		if g == a {
			found = true
		}
	}
	if !found {
		t.Errorf("fingerprint %q is not in the glyph table", a)
	}
}
