package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// InvalidMinutes is returned by ParseTimeToMinutes for malformed input.
const InvalidMinutes = -1

var timePattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// IsValidTimeFormat reports whether s looks like H:MM or HH:MM.
// It does not check the ranges of the components.
func IsValidTimeFormat(s string) bool {
	return timePattern.MatchString(s)
}

// ParseTimeToMinutes converts HH:MM into minutes since midnight.
func ParseTimeToMinutes(s string) (int, bool) {
	if !IsValidTimeFormat(s) {
		return InvalidMinutes, false
	}
	hh, mm, _ := strings.Cut(s, ":")
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return InvalidMinutes, false
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return InvalidMinutes, false
	}
	return hour*60 + minute, true
}

// IsValidTime reports whether s is a real time of day.
func IsValidTime(s string) bool {
	_, ok := ParseTimeToMinutes(s)
	return ok
}

// FormatMinutes renders minutes since midnight as HH:MM.
func FormatMinutes(m int) string {
	m = ((m % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
