package replay

import "time"

// clockWrapper is injectable real time, so pacing tests never sleep for the
// actual delay durations they assert on.
type clockWrapper interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
