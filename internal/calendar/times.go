// Package calendar is the scheduling collaborator boundary: it parses viewing
// preferences, computes free slots against busy windows, and manages holds on
// a Google-Calendar-style backend.
package calendar

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Preference is a parsed free-text viewing preference: which weekdays are
// acceptable and between which whole hours.
type Preference struct {
	Days      map[time.Weekday]bool
	StartHour int
	EndHour   int
}

func allDays() map[time.Weekday]bool {
	days := make(map[time.Weekday]bool, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[d] = true
	}
	return days
}

func weekdays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday: true, time.Tuesday: true, time.Wednesday: true,
		time.Thursday: true, time.Friday: true,
	}
}

func weekends() map[time.Weekday]bool {
	return map[time.Weekday]bool{time.Saturday: true, time.Sunday: true}
}

var timeRangePattern = regexp.MustCompile(
	`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*(?:[-–]|to)+\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)

// ParsePreferredTimes turns text like "weekday evenings 6-8pm" into a
// Preference. Unparseable input defaults to every day, 9-17.
func ParsePreferredTimes(preferredTimes string) Preference {
	s := strings.ToLower(strings.TrimSpace(preferredTimes))
	pref := Preference{Days: allDays(), StartHour: 9, EndHour: 17}
	if s == "" {
		return pref
	}

	switch {
	case strings.Contains(s, "weekday") || strings.Contains(s, "week days"):
		pref.Days = weekdays()
	case strings.Contains(s, "weekend") || strings.Contains(s, "week end"):
		pref.Days = weekends()
	case strings.Contains(s, "mon") || strings.Contains(s, "tue"):
		pref.Days = weekdays()
	case strings.Contains(s, "sat") || strings.Contains(s, "sunday"):
		pref.Days = weekends()
	}

	if m := timeRangePattern.FindStringSubmatch(s); m != nil {
		h1 := atoiDefault(m[1], 9)
		ap1 := strings.ToLower(m[3])
		h2 := atoiDefault(m[4], 17)
		ap2 := strings.ToLower(m[6])
		if ap1 == "pm" && h1 < 12 {
			h1 += 12
		} else if ap1 == "am" && h1 == 12 {
			h1 = 0
		}
		if ap2 == "pm" && h2 < 12 {
			h2 += 12
		} else if ap2 == "am" && h2 == 12 {
			h2 = 0
		}
		// "6-8pm" means both hours are in the pm block.
		if ap2 != "" && ap1 == "" && h1 <= 12 && h1 < h2 {
			h1 += 12
		}
		if h2 <= h1 {
			h2 = h1 + 2
		}
		pref.StartHour, pref.EndHour = h1, h2
		return pref
	}

	switch {
	case strings.Contains(s, "evening"):
		pref.StartHour, pref.EndHour = 18, 20
	case strings.Contains(s, "morning"):
		pref.StartHour, pref.EndHour = 9, 12
	case strings.Contains(s, "afternoon"):
		pref.StartHour, pref.EndHour = 13, 17
	}
	return pref
}

func atoiDefault(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
