package arrowutil

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

const secondsPerDay = 24 * 60 * 60

// TimeFromTimestamp converts a timestamp in unit to a UTC time.
func TimeFromTimestamp(v arrow.Timestamp, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(int64(v), 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(int64(v)).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(int64(v)).UTC()
	default:
		return time.Unix(0, int64(v)).UTC()
	}
}

// TimestampFromTime converts t to a timestamp in unit, truncating finer
// precision.
func TimestampFromTime(t time.Time, unit arrow.TimeUnit) arrow.Timestamp {
	switch unit {
	case arrow.Second:
		return arrow.Timestamp(t.Unix())
	case arrow.Millisecond:
		return arrow.Timestamp(t.UnixMilli())
	case arrow.Microsecond:
		return arrow.Timestamp(t.UnixMicro())
	default:
		return arrow.Timestamp(t.UnixNano())
	}
}

// TimeFromDate32 returns midnight UTC of the given day.
func TimeFromDate32(d arrow.Date32) time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// Date32FromTime returns the day containing t, in UTC.
func Date32FromTime(t time.Time) arrow.Date32 {
	secs := t.Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		days--
	}
	return arrow.Date32(days)
}

// ConvertTimestamp rescales v from one unit to another, truncating toward
// negative infinity when the target is coarser.
func ConvertTimestamp(v arrow.Timestamp, from, to arrow.TimeUnit) arrow.Timestamp {
	if from == to {
		return v
	}
	fm, tm := unitNanos(from), unitNanos(to)
	if fm > tm {
		return v * arrow.Timestamp(fm/tm)
	}
	div := arrow.Timestamp(tm / fm)
	q := v / div
	if v%div < 0 {
		q--
	}
	return q
}

func unitNanos(unit arrow.TimeUnit) int64 {
	switch unit {
	case arrow.Second:
		return int64(time.Second)
	case arrow.Millisecond:
		return int64(time.Millisecond)
	case arrow.Microsecond:
		return int64(time.Microsecond)
	default:
		return 1
	}
}
