// Package duration converts between game ticks, seconds and minutes.
package duration

import "strconv"

const TicksPerSecond = 20

// Duration is a span of game time in ticks. It may be negative.
type Duration int64

func Ticks(t int64) Duration      { return Duration(t) }
func Seconds(s int64) Duration    { return Duration(s * TicksPerSecond) }
func Minutes(m int64) Duration    { return Seconds(m * 60) }
func (d Duration) Ticks() int64   { return int64(d) }
func (d Duration) Seconds() int64 { return int64(d) / TicksPerSecond }
func (d Duration) Minutes() int64 { return d.Seconds() / 60 }

// Display renders the duration as "XminYs", omitting zero parts.
func (d Duration) Display() string {
	s := ""
	if m := d.Minutes(); m > 0 {
		s += strconv.FormatInt(m, 10) + "min"
	}
	if sec := d.Seconds() % 60; sec > 0 {
		s += strconv.FormatInt(sec, 10) + "s"
	}
	return s
}

// Unit names the scale used by admin time commands.
type Unit string

const (
	UnitTicks   Unit = "ticks"
	UnitSeconds Unit = "sec"
	UnitMinutes Unit = "min"
)

func (u Unit) Of(v int64) (Duration, bool) {
	switch u {
	case UnitTicks, "tick", "t":
		return Ticks(v), true
	case UnitSeconds, "seconds", "s":
		return Seconds(v), true
	case UnitMinutes, "minutes", "m":
		return Minutes(v), true
	default:
		return 0, false
	}
}
