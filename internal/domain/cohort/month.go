package cohort

import (
	"fmt"
	"strings"
	"time"
)

const monthLayout = "2006-01"

// Month is a calendar month stored as year*12 + (month-1), so the difference
// between two months is a whole number of months.
type Month int

func MonthOf(t time.Time) Month {
	return Month(t.Year()*12 + int(t.Month()) - 1)
}

// ParseMonth accepts "2006-01" and full dates, truncating to the month.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{monthLayout, time.DateOnly, time.DateTime, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
}

func (m Month) Year() int {
	return int(m) / 12
}

func (m Month) MonthOfYear() time.Month {
	return time.Month(int(m)%12 + 1)
}

// Time returns midnight UTC on the first day of the month.
func (m Month) Time() time.Time {
	return time.Date(m.Year(), m.MonthOfYear(), 1, 0, 0, 0, 0, time.UTC)
}

// LastDay returns the number of days in the month.
func (m Month) LastDay() int {
	return m.Time().AddDate(0, 1, -1).Day()
}

// Sub returns the whole number of months from o to m.
func (m Month) Sub(o Month) int {
	return int(m - o)
}

func (m Month) String() string {
	return m.Time().Format(monthLayout)
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
