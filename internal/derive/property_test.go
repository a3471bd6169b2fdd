package derive

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// Selection properties run on arbitrary streams; the key stretching step
// is too slow to sit inside a property loop.

func TestAssembleProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buf := rapid.SliceOfN(rapid.Byte(), StreamSize, StreamSize).Draw(t, "stream")
		mode := rapid.SampledFrom(Modes).Draw(t, "mode")
		length := rapid.IntRange(MinLength, MaxLength).Draw(t, "length")

		pw, err := assemble(NewStream(buf), mode, length)
		if errors.Is(err, ErrEntropyExhausted) {
			if pw != "" {
				t.Fatalf("partial output %q on exhaustion", pw)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		again, _ := assemble(NewStream(buf), mode, length)
		if again != pw {
			t.Fatalf("same stream gave %q and %q", pw, again)
		}

		switch mode {
		case ModeUUID4:
			if !uuidPattern.MatchString(pw) {
				t.Fatalf("uuid4 output %q not canonical", pw)
			}
			return
		case ModeAlphaNumSym:
			for _, class := range requiredClasses {
				if !strings.ContainsAny(pw, class) {
					t.Fatalf("output %q misses class %q", pw, class)
				}
			}
		case ModeBase64URL:
			if !strings.ContainsAny(pw, base64URLSpecial) {
				t.Fatalf("output %q has no - or _", pw)
			}
		}
		if len(pw) != length {
			t.Fatalf("expected length %d, got %d", length, len(pw))
		}
		charset := Full
		if mode == ModeBase64URL {
			charset = Base64URL
		}
		for _, c := range pw {
			if !strings.ContainsRune(charset, c) {
				t.Fatalf("output %q contains %q outside charset", pw, c)
			}
		}
	})
}

func TestAvalancheOnMaster(t *testing.T) {
	base := baseRequest()
	want := mustDerive(t, base)
	// Each case pays for a full key stretch.
	rapid.Check(t, func(rt *rapid.T) {
		i := rapid.IntRange(0, len(base.Master)-1).Draw(rt, "index")
		c := rapid.ByteRange('!', '~').Filter(func(b byte) bool { return b != base.Master[i] }).Draw(rt, "char")
		req := base
		req.Master = base.Master[:i] + string(c) + base.Master[i+1:]
		got, err := Derive(req)
		if err != nil {
			rt.Fatalf("derive: %v", err)
		}
		if got == want {
			rt.Fatalf("master %q collides with %q", req.Master, base.Master)
		}
	})
}
