package pages

import "time"

// poll calls cond every interval until it holds or timeout has elapsed. cond
// is always checked at least once, and once more after the deadline.
func poll(timeout, interval time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
