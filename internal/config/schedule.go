package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	clockPartCount = 2
	maxClockHour   = 23
	maxClockMinute = 59
)

// ParseWeekday parses an English weekday name ("sunday", "Mon", ...).
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}

	return 0, fmt.Errorf("invalid weekday %q", s)
}

// ParseClock parses a 24-hour "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != clockPartCount {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > maxClockHour {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > maxClockMinute {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour, minute, nil
}
