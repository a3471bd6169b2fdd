package policy

import (
	"math"
	"time"

	"github.com/ppiankov/smdnano/internal/model"
)

// RotationEpoch is the automatic password rotation period.
const RotationEpoch = 90 * 24 * time.Hour

// RotationCounter returns ceil(days(at - release) / 90), clamped to 1.
// Days are fractional, so the counter advances exactly 90 days after each
// epoch boundary. A zero release time yields 1.
func RotationCounter(release, at time.Time) int {
	if release.IsZero() || at.IsZero() {
		return 1
	}
	days := at.Sub(release).Hours() / 24
	epochDays := RotationEpoch.Hours() / 24
	n := math.Floor((days + epochDays - 1) / epochDays)
	if n < 1 || math.IsNaN(n) {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// RecommendCounter picks the counter a UI should preset. A new-password
// form (registration or rotation) before license expiry gets a counter
// past the expiration epoch so the result is guaranteed fresh.
func RecommendCounter(d model.PolicyDecision, newPassword bool) int {
	if d.IsExpired || !newPassword {
		return max(d.AutoCounter, 1)
	}
	return max(d.AutoCounter, d.ExpirationCounter+1)
}

// MaxCounter reports the highest counter allowed. After license expiry
// manual rotation may only move backwards from the automatic counter.
func MaxCounter(d model.PolicyDecision) (int, bool) {
	if d.IsExpired {
		return max(d.AutoCounter, 1), true
	}
	return 0, false
}
