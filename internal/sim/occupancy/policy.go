package occupancy

import (
	"time"

	"housevault/internal/sim/tuning"
)

// VisitTooLong reports whether s is stale: idle past the activity timeout, or
// inside longer than the owner or robber allowance.
func VisitTooLong(s Session, isOwner bool, now time.Time, ev tuning.Evictions) bool {
	if ev.DisableTimeout {
		return false
	}
	if now.Sub(s.LatestActivity) > ev.ActivityTimeout() {
		return true
	}
	limit := ev.RobberAccess()
	if isOwner {
		limit = ev.OwnerAccess()
	}
	return now.Sub(s.AccessTime) > limit
}
