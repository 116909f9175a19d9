package starschema

import "time"

// The functions below split an epoch-millisecond timestamp into the columns
// of the time table. Each depends only on its arguments; loc stands in for
// "local time" so that results don't depend on the host.

func localTime(ms int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc)
}

// Seconds returns ms as whole epoch seconds, truncated.
func Seconds(ms int64) int64 { return ms / 1000 }

func Hour(ms int64, loc *time.Location) int { return localTime(ms, loc).Hour() }

// Day is the day of the month.
func Day(ms int64, loc *time.Location) int { return localTime(ms, loc).Day() }

func Month(ms int64, loc *time.Location) int { return int(localTime(ms, loc).Month()) }

func Year(ms int64, loc *time.Location) int { return localTime(ms, loc).Year() }

// Weekday counts from Monday = 0 to Sunday = 6.
func Weekday(ms int64, loc *time.Location) int {
	return (int(localTime(ms, loc).Weekday()) + 6) % 7
}

// Week is the ISO 8601 week number.
func Week(ms int64, loc *time.Location) int {
	_, week := localTime(ms, loc).ISOWeek()
	return week
}

// SplitTimestamp applies every time part function to ms.
func SplitTimestamp(ms int64, loc *time.Location) TimeRow {
	return TimeRow{
		Timestamp: Seconds(ms),
		Hour:      int32(Hour(ms, loc)),
		Day:       int32(Day(ms, loc)),
		Month:     int32(Month(ms, loc)),
		Year:      int32(Year(ms, loc)),
		Weekday:   int32(Weekday(ms, loc)),
		Week:      int32(Week(ms, loc)),
	}
}
