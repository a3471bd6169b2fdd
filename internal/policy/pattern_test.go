package policy

import "testing"

func TestPatternGlob(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"*.example.com", "sub.example.com", true},
		{"*.example.com", "example.com", false},
		{"*.example.com", "sub.example.com.evil.net", false},
		{"https://*.bank.com/*", "https://login.bank.com/auth", true},
		{"https://*.bank.com/*", "http://login.bank.com/auth", false},
		{"HTTPS://BANK.COM/*", "https://bank.com/x", true},
		{"login.?.com", "login.a.com", true},
		{"login.?.com", "login.ab.com", false},
		{"a+b.com", "a+b.com", true},
		{"a+b.com", "aab.com", false},
		{"exact.com", "exact.com", true},
		{"exact.com", "exactXcom", false},
		{"(group).com", "(group).com", true},
	}
	for _, tt := range tests {
		p, err := CompilePattern(tt.pattern)
		if err != nil {
			t.Fatalf("CompilePattern(%q): %v", tt.pattern, err)
		}
		if got := p.Match(tt.input); got != tt.want {
			t.Errorf("%q.Match(%q) = %v, want %v", tt.pattern, tt.input, got, tt.want)
		}
	}
}

func TestPatternRegex(t *testing.T) {
	p, err := CompilePattern(`^https://(www\.)?example\.(com|org)/`)
	if err != nil {
		t.Fatalf("CompilePattern: %v", err)
	}
	if !p.Match("https://www.example.org/login") {
		t.Error("expected regex to match www.example.org")
	}
	if !p.Match("HTTPS://EXAMPLE.COM/") {
		t.Error("expected regex match to be case-insensitive")
	}
	if p.Match("https://example.net/") {
		t.Error("expected regex not to match example.net")
	}
	if p.String() != `^https://(www\.)?example\.(com|org)/` {
		t.Errorf("String() = %q", p.String())
	}
}

func TestPatternRegexUnanchoredEnd(t *testing.T) {
	// Raw regexes are used as written; only the leading anchor is implied.
	p, _ := CompilePattern(`^https://bank`)
	if !p.Match("https://bank.com/anything") {
		t.Error("expected prefix regex to match")
	}
}

func TestCompilePatternInvalidRegex(t *testing.T) {
	if _, err := CompilePattern(`^(unclosed`); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestCompileSetSkipsInvalid(t *testing.T) {
	set, errs := compileSet([]string{"*.ok.com", "^(bad", "other.com"})
	if len(set) != 2 {
		t.Errorf("expected 2 compiled patterns, got %d", len(set))
	}
	if len(errs) != 1 {
		t.Errorf("expected 1 error, got %d", len(errs))
	}
	if !set.MatchAny("other.com") {
		t.Error("expected set to match other.com")
	}
	if set.MatchAny("nothing.net") {
		t.Error("expected no match for nothing.net")
	}
}

func TestEmptySetMatchesNothing(t *testing.T) {
	var set PatternSet
	if set.MatchAny("anything") {
		t.Error("empty set must not match")
	}
}
