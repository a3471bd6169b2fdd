package policy

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/ppiankov/smdnano/internal/logging"
	"github.com/ppiankov/smdnano/internal/model"
)

func hostGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z]{1,10}(\.[a-z]{2,6}){1,2}`)
}

func patternsGen() *rapid.Generator[[]string] {
	return rapid.SliceOfN(rapid.SampledFrom([]string{
		"*", "https://*", "*.com*", "*bank*", "https://?*", "*.org/*", "^https://[a-m]",
	}), 0, 4)
}

// Except overrides every other rule in both strategies.
func TestExceptAlwaysWinsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		allow := patternsGen().Draw(rt, "allow")
		deny := patternsGen().Draw(rt, "deny")
		url := "https://" + hostGen().Draw(rt, "host") + "/login"

		denyFirst := NewWithDocument(&Document{
			Mode:  ModeDefaultDeny,
			Rules: Rules{Allow: allow, Deny: deny, Except: []string{"*"}},
		}, logging.Discard())
		if got := denyFirst.Evaluate(url, testNow).Action; got != model.Allow {
			rt.Fatalf("default-deny with matching except: got %s for %s", got, url)
		}

		allowFirst := NewWithDocument(&Document{
			Mode:  ModeDefaultAllow,
			Rules: Rules{Allow: allow, Deny: deny, Except: []string{"*"}},
		}, logging.Discard())
		if got := allowFirst.Evaluate(url, testNow).Action; got != model.Deny {
			rt.Fatalf("default-allow with matching except: got %s for %s", got, url)
		}
	})
}

// Pattern order within a set never changes the outcome.
func TestSetOrderIrrelevantProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		allow := patternsGen().Draw(rt, "allow")
		deny := patternsGen().Draw(rt, "deny")
		url := "https://" + hostGen().Draw(rt, "host") + "/"

		reversed := func(in []string) []string {
			out := make([]string, len(in))
			for i, s := range in {
				out[len(in)-1-i] = s
			}
			return out
		}

		for _, mode := range []string{ModeDefaultDeny, ModeDefaultAllow} {
			a := NewWithDocument(&Document{Mode: mode, Rules: Rules{Allow: allow, Deny: deny}}, logging.Discard())
			b := NewWithDocument(&Document{Mode: mode, Rules: Rules{Allow: reversed(allow), Deny: reversed(deny)}}, logging.Discard())
			if a.Evaluate(url, testNow).Action != b.Evaluate(url, testNow).Action {
				rt.Fatalf("mode %s: order changed outcome for %s", mode, url)
			}
		}
	})
}

func TestNormalizeDomainProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		host := hostGen().Filter(func(s string) bool {
			return !strings.HasPrefix(s, "www.")
		}).Draw(rt, "host")
		withWWW := NormalizeDomain("https://www." + host + "/path")
		without := NormalizeDomain("https://" + host + "/other?q=1")
		if withWWW != without {
			rt.Fatalf("www-prefixed %q != bare %q", withWWW, without)
		}
	})
}
