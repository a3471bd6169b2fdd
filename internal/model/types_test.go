package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestPolicyDecisionAllowed(t *testing.T) {
	if !(PolicyDecision{Action: Allow}).Allowed() {
		t.Error("expected ALLOW decision to be allowed")
	}
	if (PolicyDecision{Action: Deny}).Allowed() {
		t.Error("expected DENY decision to be refused")
	}
}

func TestPolicyDecisionDecoy(t *testing.T) {
	if (PolicyDecision{Trust: Trusted}).Decoy() {
		t.Error("trusted context must not be a decoy")
	}
	if !(PolicyDecision{Trust: Untrusted}).Decoy() {
		t.Error("untrusted context must be a decoy")
	}
	if !(PolicyDecision{}).Decoy() {
		t.Error("unset trust must be treated as decoy")
	}
}

func TestContextMismatchErrorIs(t *testing.T) {
	err := fmt.Errorf("fill: %w", &ContextMismatchError{Was: "bank.com", Now: "attacker.com"})

	if !errors.Is(err, ErrContextChanged) {
		t.Fatal("expected errors.Is(err, ErrContextChanged)")
	}
	if errors.Is(err, ErrAccessDenied) {
		t.Error("context mismatch must not match ErrAccessDenied")
	}

	var cm *ContextMismatchError
	if !errors.As(err, &cm) {
		t.Fatal("expected errors.As to find *ContextMismatchError")
	}
	if cm.Was != "bank.com" || cm.Now != "attacker.com" {
		t.Errorf("unexpected domains: was=%s now=%s", cm.Was, cm.Now)
	}
	want := "refusing: context changed (was bank.com, now attacker.com)"
	if cm.Error() != want {
		t.Errorf("got %q, want %q", cm.Error(), want)
	}
}
