package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday, "dom": time.Sunday,
	"mon": time.Monday, "monday": time.Monday, "seg": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "ter": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "qua": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "qui": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "sex": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "sab": time.Saturday,
}

// ParseWeekdays parses a comma-separated list of weekdays. Names, three-letter
// abbreviations and numbers (0=Sunday, 6=Saturday) are accepted, as are the
// shortcuts "daily", "weekdays" and "weekends".
func ParseWeekdays(s string) ([]time.Weekday, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "daily", "all":
		return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}, nil
	case "weekdays":
		return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, nil
	case "weekends":
		return []time.Weekday{time.Sunday, time.Saturday}, nil
	}

	var weekdays []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		if wd, ok := weekdayNames[part]; ok {
			weekdays = append(weekdays, wd)
			continue
		}
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 6 {
			return nil, fmt.Errorf("invalid weekday: %s", part)
		}
		weekdays = append(weekdays, time.Weekday(num))
	}
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("at least one weekday is required")
	}
	return weekdays, nil
}
