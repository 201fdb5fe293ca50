// Package timestamp normalizes the timestamp formats chat gateways send.
//
// Gateway messages carry their timestamp as an RFC3339 string, Unix
// seconds, Unix milliseconds, or a numeric string, depending on the
// platform. This package collapses all of them into int64 Unix
// milliseconds (UTC), the canonical form the daemon stores on an
// invocation.
//
// A value of 0 means "not set"; every function treats it as such and the
// input layer falls back to receive time.
package timestamp

import (
	"strconv"
	"time"
)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds. A zero time maps to
// the unset value 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time. The unset value 0
// maps to the zero time.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ToTime is an alias for FromUnixMs for better readability.
func ToTime(ms int64) time.Time {
	return FromUnixMs(ms)
}

// Format renders Unix milliseconds as an RFC3339 string for display, or
// "" for the unset value.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// secondsCutoff separates Unix seconds from Unix milliseconds: values
// above it are taken as milliseconds. 1e12 seconds is the year 33658, so
// no plausible seconds value crosses it, and 1e12 milliseconds is
// September 2001, before any chat gateway existed.
const secondsCutoff = 1e12

// Parse converts whatever timestamp shape a gateway sent into Unix
// milliseconds. It accepts integers and floats (seconds or milliseconds,
// split at secondsCutoff), RFC3339 strings, numeric strings, time.Time,
// and *time.Time. Unparseable input and nil return the unset value 0;
// the caller decides the fallback.
func Parse(input any) int64 {
	switch v := input.(type) {
	case nil:
		return 0

	case int64:
		if v == 0 {
			return 0
		}
		if v > secondsCutoff {
			return v
		}
		return v * 1000

	case float64:
		if v == 0 {
			return 0
		}
		if v > secondsCutoff {
			return int64(v)
		}
		return int64(v * 1000)

	case int:
		return Parse(int64(v))

	case int32:
		return Parse(int64(v))

	case string:
		if v == "" {
			return 0
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return ToUnixMs(t)
		}
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return Parse(ts)
		}
		if ts, err := strconv.ParseFloat(v, 64); err == nil {
			return Parse(ts)
		}
		return 0

	case time.Time:
		return ToUnixMs(v)

	case *time.Time:
		if v == nil {
			return 0
		}
		return ToUnixMs(*v)

	default:
		return 0
	}
}

// IsZero reports whether a timestamp is unset.
func IsZero(ms int64) bool {
	return ms == 0
}
