package availability

import (
	"errors"
	"strings"
	"time"
)

var ErrBadDate = errors.New("unparseable date")

// ParseDate reads a date-only value ("2006-01-02") in loc. An RFC 3339
// instant is accepted too and reduced to its calendar date in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrBadDate
	}
	if d, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	start, _ := DayRange(t, loc)
	return start, nil
}
