package emulator

import "time"

const (
	TimerFrequency = 60
	DefaultSpeed   = 700
	MinSpeed       = 100
	MaxSpeed       = 15000
	SpeedStep      = 200
)

const second = int64(time.Second)

// Deadline returns the instant a timer loaded with ticks expires.
func Deadline(now int64, ticks uint8) int64 {
	return now + int64(ticks)*second/TimerFrequency
}

// Countdown converts a timer deadline into the 60 Hz value a program sees.
// Partial ticks round up, so a timer reads non-zero until it has expired.
func Countdown(deadline, now int64) uint8 {
	if now >= deadline {
		return 0
	}
	n := ((deadline-now)*TimerFrequency + second - 1) / second
	if n > 0xff {
		return 0xff
	}
	return uint8(n)
}

// dueCycles is how many instructions should have run after elapsed ns at
// speed instructions per second. It is split on whole seconds so the
// multiplication cannot overflow on long sessions.
func dueCycles(elapsed, speed int64) int64 {
	if elapsed <= 0 {
		return 0
	}
	return elapsed/second*speed + elapsed%second*speed/second
}

// cycleOffset is the inverse of dueCycles: the earliest elapsed ns at
// which dueCycles reports n.
func cycleOffset(n, speed int64) int64 {
	return n/speed*second + (n%speed*second+speed-1)/speed
}
