package availability

import (
	"sort"
	"time"

	"schedule-booking-api/internal/model"
)

const dateLayout = "2006-01-02"

// Month lists what cannot be booked at all in a calendar month.
type Month struct {
	BlockedWeekDays []int    `json:"blockedWeekDays"`
	BlockedDates    []string `json:"blockedDates"`
}

// MonthRange returns [first of month, first of next month) in loc.
func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return first, first.AddDate(0, 1, 0)
}

// ComputeMonth reports weekdays without any rule and the dates whose booking
// count reaches the slot count of their weekday. A date with no slots but
// some booking is reported blocked too.
func ComputeMonth(rules []model.WeeklyInterval, booked []time.Time, loc *time.Location) Month {
	byDay := make(map[int]model.WeeklyInterval, len(rules))
	for _, r := range rules {
		byDay[r.WeekDay] = r
	}

	blockedWeekDays := make([]int, 0, 7)
	for wd := 0; wd < 7; wd++ {
		if _, ok := byDay[wd]; !ok {
			blockedWeekDays = append(blockedWeekDays, wd)
		}
	}

	type group struct {
		daySlots  int
		scheduled int
	}
	groups := make(map[string]*group)
	for _, b := range booked {
		local := b.In(loc)
		key := local.Format(dateLayout)
		g, ok := groups[key]
		if !ok {
			g = &group{}
			if rule, ok := byDay[int(local.Weekday())]; ok {
				g.daySlots = len(Slots(rule))
			}
			groups[key] = g
		}
		g.scheduled++
	}

	blockedDates := make([]string, 0, len(groups))
	for key, g := range groups {
		if g.scheduled >= g.daySlots {
			blockedDates = append(blockedDates, key)
		}
	}
	sort.Strings(blockedDates)

	return Month{BlockedWeekDays: blockedWeekDays, BlockedDates: blockedDates}
}
