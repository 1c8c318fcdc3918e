package domain

import "time"

// RateWindow is a fixed-window request counter for one identifier.
//
// Count is reset to zero and ResetAt advanced exactly when a request arrives
// at or after ResetAt; otherwise Count only increases.
type RateWindow struct {
	Identifier string
	Count      int
	ResetAt    time.Time
}

// Elapsed reports whether the window is over at now.
func (w RateWindow) Elapsed(now time.Time) bool {
	return !now.Before(w.ResetAt)
}
