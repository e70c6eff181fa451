package calendar

import (
	"time"

	"github.com/user/rentagent/internal/model"
)

// Interval is a half-open busy window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// ComputeSlots walks [rangeStart, rangeEnd) on a fixed grid and returns the
// slots that fall inside the preference window and do not overlap any busy
// interval. Slots come back in chronological order.
func ComputeSlots(rangeStart, rangeEnd time.Time, busy []Interval, pref Preference, slotDur time.Duration) []model.TimeSlot {
	if slotDur <= 0 {
		slotDur = time.Hour
	}
	var slots []model.TimeSlot
	cur := rangeStart.Truncate(time.Minute)
	for cur.Before(rangeEnd) {
		if !pref.Days[cur.Weekday()] {
			cur = nextMidnight(cur)
			continue
		}
		if cur.Hour() < pref.StartHour {
			cur = time.Date(cur.Year(), cur.Month(), cur.Day(), pref.StartHour, 0, 0, 0, cur.Location())
			continue
		}
		end := cur.Add(slotDur)
		dayEnd := time.Date(cur.Year(), cur.Month(), cur.Day(), pref.EndHour, 0, 0, 0, cur.Location())
		if !cur.Before(dayEnd) || end.After(dayEnd) || end.After(rangeEnd) {
			cur = nextMidnight(cur)
			continue
		}
		if !overlapsAny(busy, cur, end) {
			slots = append(slots, model.TimeSlot{
				Start:   cur.Format("2006-01-02T15:04:05"),
				End:     end.Format("2006-01-02T15:04:05"),
				Display: cur.Format("Monday Jan 2, 3:04 PM"),
			})
		}
		cur = end
	}
	return slots
}

func overlapsAny(busy []Interval, start, end time.Time) bool {
	for _, iv := range busy {
		if start.Before(iv.End) && iv.Start.Before(end) {
			return true
		}
	}
	return false
}

func nextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).Add(24 * time.Hour)
}
