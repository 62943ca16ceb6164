package availability

import (
	"time"

	"schedule-booking-api/internal/model"
)

// Day is the hour-level availability of one calendar date.
type Day struct {
	PossibleTimes  []int `json:"possibleTimes"`
	AvailableTimes []int `json:"availableTimes"`
}

func emptyDay() Day {
	return Day{PossibleTimes: []int{}, AvailableTimes: []int{}}
}

// Slots lists the whole hours in [start/60, end/60). Minutes that are not a
// multiple of 60 truncate toward zero.
func Slots(rule model.WeeklyInterval) []int {
	startHour := rule.StartMinutes / 60
	endHour := rule.EndMinutes / 60
	if endHour <= startHour {
		return []int{}
	}
	out := make([]int, 0, endHour-startHour)
	for h := startHour; h < endHour; h++ {
		out = append(out, h)
	}
	return out
}

// ComputeDay derives the possible and still-bookable hours of date.
//
// date is any instant on the target day; its calendar date is taken in loc.
// rule is nil when the user has no interval for that weekday. booked holds
// the instants of bookings already committed on that day.
func ComputeDay(date time.Time, loc *time.Location, rule *model.WeeklyInterval, booked []time.Time, now time.Time) Day {
	start, next := DayRange(date, loc)
	endOfDay := next.Add(-time.Nanosecond)
	if endOfDay.Before(now) {
		return emptyDay()
	}
	if rule == nil {
		return emptyDay()
	}

	possible := Slots(*rule)

	taken := make(map[int]bool, len(booked))
	for _, b := range booked {
		taken[b.In(loc).Hour()] = true
	}

	available := make([]int, 0, len(possible))
	for _, h := range possible {
		if taken[h] {
			continue
		}
		if AtHour(start, h, loc).Before(now) {
			continue
		}
		available = append(available, h)
	}
	return Day{PossibleTimes: possible, AvailableTimes: available}
}

// DayRange returns the start of date's day in loc and the start of the next day.
func DayRange(date time.Time, loc *time.Location) (time.Time, time.Time) {
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// AtHour places hour h on day's calendar date in loc.
func AtHour(day time.Time, h int, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, loc)
}

// StartOfHour truncates t to the top of its hour in loc.
func StartOfHour(t time.Time, loc *time.Location) time.Time {
	return AtHour(t, t.In(loc).Hour(), loc)
}
