package sched

import "math"

// Eternity is the sentinel tick meaning "never"; it disables a task's timer.
const Eternity uint32 = math.MaxUint32

// LookBack is the window a wrap-aware lookup walks behind "now" to find the
// next event on a cyclic 32-bit number line. Half the key range is large
// enough to tolerate any stale entry older than it, yet small enough that
// "now + any valid future delay" can't wrap back around into it.
const LookBack uint32 = 1 << 31

// IsSet reports whether a tick is a real deadline rather than Eternity.
func IsSet(tick uint32) bool {
	return tick != Eternity
}

// IsLT reports whether a is strictly before b on the cyclic tick line,
// using the signed interpretation of a-b the way the source's modular tick
// comparisons do: a wraps "behind" b only if the gap is less than half the
// key space.
func IsLT(a, b uint32) bool {
	return int32(a-b) < 0
}

// IsExpired reports whether deadline has passed as of now (deadline <= now,
// modular-aware). Eternity never expires.
func IsExpired(deadline, now uint32) bool {
	if !IsSet(deadline) {
		return false
	}
	return !IsLT(now, deadline)
}
