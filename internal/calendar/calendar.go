// Package calendar decides on which dates the scheduled purchase runs.
//
// Each month has three execution dates derived from the base days 5, 15 and
// 25. A base day that falls on a weekend rolls forward to the next Monday.
package calendar

import (
	"fmt"
	"time"
)

var baseDays = [...]int{5, 15, 25}

var installments = map[int]string{
	5:  "1/3",
	15: "2/3",
	25: "3/3",
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ExecutionDates maps each base day to its rolled execution date.
func ExecutionDates(year int, month time.Month) map[int]time.Time {
	out := make(map[int]time.Time, len(baseDays))
	for _, day := range baseDays {
		out[day] = rollForward(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	}
	return out
}

func rollForward(d time.Time) time.Time {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// IsValidExecutionDate reports whether date is one of the three rolled
// execution dates of its month.
func IsValidExecutionDate(date time.Time) bool {
	_, ok := baseDayOf(date)
	return ok
}

// InstallmentLabel returns "1/3", "2/3" or "3/3" for the base day the date
// was rolled from.
func InstallmentLabel(date time.Time) (string, error) {
	day, ok := baseDayOf(date)
	if !ok {
		return "", fmt.Errorf("%s is not an execution date", Date(date).Format(time.DateOnly))
	}
	return installments[day], nil
}

// NextExecutionDate returns the first execution date on or after from.
func NextExecutionDate(from time.Time) time.Time {
	from = Date(from)
	for i := 0; i < 2; i++ {
		first := time.Date(from.Year(), from.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		dates := ExecutionDates(first.Year(), first.Month())
		for _, day := range baseDays {
			if d := dates[day]; !d.Before(from) {
				return d
			}
		}
	}
	return from
}

func baseDayOf(date time.Time) (int, bool) {
	date = Date(date)
	dates := ExecutionDates(date.Year(), date.Month())
	for _, day := range baseDays {
		if dates[day].Equal(date) {
			return day, true
		}
	}
	return 0, false
}
