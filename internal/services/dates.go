package services

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// loc is the tenant-local zone used for calendar days.
var loc = func() *time.Location {
	l, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		return time.FixedZone("WIB", 7*3600)
	}
	return l
}()

func SetLocation(l *time.Location) {
	if l != nil {
		loc = l
	}
}

func Location() *time.Location { return loc }

// ParseDate validates a YYYY-MM-DD calendar date in the local zone.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, validationError(CodeInvalidInput, "date is required")
	}
	d, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, validationError(CodeInvalidDate, "invalid date "+s)
	}
	return d, nil
}

func formatDate(d time.Time) string {
	return d.In(loc).Format(dateLayout)
}

func Today() string {
	return formatDate(time.Now())
}
