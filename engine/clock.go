package engine

import (
	"log"
	"time"

	"github.com/sss97133/nuke-sub017/core"
)

// ApplyExtension applies the anti-snipe rule for a bid whose sequence was
// assigned at server time at: when the bid lands inside the extension
// window, scheduled_end moves to at + window. The auction's
// LastExtensionSeq makes each application idempotent per bid, so
// reprocessing a bid never extends twice. Fixed-duration auctions never
// extend.
//
// The caller passes the server time captured at intake; client clocks are
// never consulted.
func ApplyExtension(a *core.Auction, seq uint64, at time.Time) bool {
	if a.Kind != core.KindAntiSnipe || a.ExtensionWindow <= 0 {
		return false
	}
	if seq <= a.LastExtensionSeq {
		return false
	}
	if at.After(a.ScheduledEnd) {
		// The bid was accepted while the auction was still open; a later
		// wall clock here means skew between intake and this check. The
		// window rule still applies.
		log.Printf("WARNING: Clock skew on auction %s: bid at %s after scheduled_end %s",
			a.ID, at.Format(time.RFC3339), a.ScheduledEnd.Format(time.RFC3339))
	}
	if a.ScheduledEnd.Sub(at) >= a.ExtensionWindow {
		return false
	}
	a.ScheduledEnd = at.Add(a.ExtensionWindow)
	a.LastExtensionSeq = seq
	return true
}

// Remaining returns the time left before scheduled_end. A negative value
// is a clock-skew anomaly: it is logged and clamped to zero so the auction
// proceeds to ending rather than stalling.
func Remaining(a *core.Auction, now time.Time) time.Duration {
	remaining := a.ScheduledEnd.Sub(now)
	if remaining < 0 {
		log.Printf("WARNING: Negative remaining time %s on auction %s, clamping to zero", remaining, a.ID)
		return 0
	}
	return remaining
}
