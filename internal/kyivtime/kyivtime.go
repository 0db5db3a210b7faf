// Package kyivtime converts to the schedule's home timezone (Europe/Kyiv)
// without relying on the host tzdata: the EU DST rule is computed directly,
// which keeps captions correct on scratch containers.
package kyivtime

import (
	"fmt"
	"time"
)

// Offset returns the Kyiv UTC offset in hours at the given instant.
// DST runs from the last Sunday of March to the last Sunday of October,
// switching at 01:00 UTC.
func Offset(now time.Time) int {
	now = now.UTC()
	year := now.Year()

	dstStart := lastSunday(year, time.March)
	dstEnd := lastSunday(year, time.October)

	if !now.Before(dstStart) && now.Before(dstEnd) {
		return 3
	}
	return 2
}

// lastSunday returns the last Sunday of the month at 01:00 UTC.
func lastSunday(year int, month time.Month) time.Time {
	last := time.Date(year, month, 31, 1, 0, 0, 0, time.UTC)
	return last.AddDate(0, 0, -int(last.Weekday()))
}

// In shifts an instant into Kyiv local time, expressed in a fixed zone.
func In(now time.Time) time.Time {
	offset := Offset(now)
	zone := time.FixedZone(fmt.Sprintf("UTC+%d", offset), offset*3600)
	return now.In(zone)
}

// Stamp formats an instant as the caption suffix timestamp, Kyiv local.
func Stamp(now time.Time) string {
	return In(now).Format("15:04, 02.01.2006")
}
