package analytics

import "time"

// Window tokens recognized by the analytics surfaces. Anything else resolves
// to the 30 day default rather than failing.
const (
	Window7d      = "7d"
	Window30d     = "30d"
	Window90d     = "90d"
	Window1y      = "1y"
	DefaultWindow = Window30d
)

// ResolveCutoff turns a window token into an absolute cutoff timestamp
// relative to now. Audits created at or after the cutoff fall in the window.
func ResolveCutoff(window string, now time.Time) time.Time {
	switch window {
	case Window7d:
		return now.AddDate(0, 0, -7)
	case Window90d:
		return now.AddDate(0, 0, -90)
	case Window1y:
		return now.AddDate(-1, 0, 0)
	case Window30d:
		return now.AddDate(0, 0, -30)
	default:
		return now.AddDate(0, 0, -30)
	}
}
