package model

import (
	"errors"
	"fmt"
)

// ErrorCode names a failure condition on the wire. Every failure maps to
// exactly one code; there is no generic "failed".
type ErrorCode string

const (
	CodeAccessDenied      ErrorCode = "access_denied"
	CodeContextMismatch   ErrorCode = "context_mismatch"
	CodeExpired           ErrorCode = "expired"
	CodeNothingToFill     ErrorCode = "nothing_to_fill"
	CodeEntropyExhausted  ErrorCode = "entropy_exhausted"
	CodeCounterRestricted ErrorCode = "counter_restricted"
	CodeInvalidRequest    ErrorCode = "invalid_request"
	CodeMissingSeeds      ErrorCode = "missing_seeds"
	CodeTabUnavailable    ErrorCode = "tab_unavailable"
	CodeAgentRefused      ErrorCode = "agent_refused"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeInternal          ErrorCode = "internal"
)

var (
	// ErrAccessDenied is returned when policy denies generation for a URL.
	ErrAccessDenied = errors.New("access denied by policy")

	// ErrContextChanged matches any *ContextMismatchError via errors.Is.
	ErrContextChanged = errors.New("context changed")
)

// ContextMismatchError reports that the domain a secret was bound to no
// longer matches the domain of the current browsing context.
type ContextMismatchError struct {
	Was string
	Now string
}

func (e *ContextMismatchError) Error() string {
	return fmt.Sprintf("refusing: context changed (was %s, now %s)", e.Was, e.Now)
}

// Is makes errors.Is(err, ErrContextChanged) true.
func (e *ContextMismatchError) Is(target error) bool {
	return target == ErrContextChanged
}
