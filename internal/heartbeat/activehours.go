package heartbeat

// ActiveHours restricts heartbeat runs to a window of local-time
// minutes-of-day. The window wraps past midnight when End <= Start
// (e.g. Start=22*60, End=6*60 means "10pm through 6am").
type ActiveHours struct {
	Enabled bool
	Start   int // minutes since local midnight, inclusive
	End     int // minutes since local midnight, exclusive
}

// Contains reports whether minuteOfDay falls inside the window.
// A disabled window always contains every minute.
func (a ActiveHours) Contains(minuteOfDay int) bool {
	if !a.Enabled {
		return true
	}
	if a.End <= a.Start {
		return minuteOfDay >= a.Start || minuteOfDay < a.End
	}
	return minuteOfDay >= a.Start && minuteOfDay < a.End
}
