package library

import "time"

// Clock reports the current time. LendingService samples it at checkout and
// again whenever overdue status or cost is evaluated.
type Clock func() time.Time

const day = 24 * time.Hour

// elapsedDays counts whole days between since and now, truncating partial days.
func elapsedDays(since, now time.Time) int {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return int(d / day)
}
