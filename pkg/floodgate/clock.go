package floodgate

import "time"

// Clock returns the current time. Caches and limiters take their notion of
// "now" from a Clock so expiry and window logic can be tested deterministically.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}
