package broker

import (
	"errors"

	"github.com/ppiankov/smdnano/internal/derive"
	"github.com/ppiankov/smdnano/internal/model"
	"github.com/ppiankov/smdnano/internal/seeds"
	"github.com/ppiankov/smdnano/internal/session"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrCounterRestricted = errors.New("counter above the automatic counter is not allowed after license expiry")
	ErrAgentRefused      = errors.New("page agent refused fill")
	ErrStopped           = errors.New("broker stopped")
	ErrRateLimited       = errors.New("too many generate requests")
)

// CodeOf maps an error returned by the broker to its wire code.
func CodeOf(err error) model.ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrAccessDenied):
		return model.CodeAccessDenied
	case errors.Is(err, model.ErrContextChanged):
		return model.CodeContextMismatch
	case errors.Is(err, session.ErrExpired):
		return model.CodeExpired
	case errors.Is(err, session.ErrNothingToFill):
		return model.CodeNothingToFill
	case errors.Is(err, session.ErrTabUnavailable):
		return model.CodeTabUnavailable
	case errors.Is(err, derive.ErrEntropyExhausted):
		return model.CodeEntropyExhausted
	case errors.Is(err, ErrCounterRestricted):
		return model.CodeCounterRestricted
	case errors.Is(err, derive.ErrMissingSeeds), errors.Is(err, seeds.ErrMissing):
		return model.CodeMissingSeeds
	case errors.Is(err, ErrRateLimited):
		return model.CodeRateLimited
	case errors.Is(err, ErrAgentRefused):
		return model.CodeAgentRefused
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, derive.ErrInvalidLength),
		errors.Is(err, derive.ErrInvalidCounter):
		return model.CodeInvalidRequest
	default:
		return model.CodeInternal
	}
}
