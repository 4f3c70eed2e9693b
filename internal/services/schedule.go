// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for schedule advancement.
// Each frequency has its own advancer that computes the next occurrence
// from the current one.

package services

import (
	"fmt"
	"time"

	"raqam/internal/core"
)

// Advancer computes the occurrence that follows current.
type Advancer interface {
	Next(current time.Time) time.Time
}

// DayAdvancer adds a fixed number of days.
type DayAdvancer struct {
	Days int
}

// Next returns current shifted by d.Days calendar days.
func (d DayAdvancer) Next(current time.Time) time.Time {
	return current.AddDate(0, 0, d.Days)
}

// MonthAdvancer adds a fixed number of months. Day-of-month overflow follows
// time.AddDate normalization, so Jan 31 plus one month lands in early March.
type MonthAdvancer struct {
	Months int
}

// Next returns current shifted by m.Months months.
func (m MonthAdvancer) Next(current time.Time) time.Time {
	return current.AddDate(0, m.Months, 0)
}

// YearAdvancer adds a fixed number of years.
type YearAdvancer struct {
	Years int
}

// Next returns current shifted by y.Years years.
func (y YearAdvancer) Next(current time.Time) time.Time {
	return current.AddDate(y.Years, 0, 0)
}

var advancers = map[core.Frequency]Advancer{
	core.Daily:     DayAdvancer{Days: 1},
	core.Weekly:    DayAdvancer{Days: 7},
	core.Monthly:   MonthAdvancer{Months: 1},
	core.Quarterly: MonthAdvancer{Months: 3},
	core.Yearly:    YearAdvancer{Years: 1},
}

// GetAdvancer returns the advancer registered for a frequency.
func GetAdvancer(frequency core.Frequency) (Advancer, error) {
	a, ok := advancers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return a, nil
}

// RegisterAdvancer registers an advancer for a custom frequency. It is not
// safe to call concurrently with Advance.
func RegisterAdvancer(frequency core.Frequency, a Advancer) {
	advancers[frequency] = a
}

// Advance returns the occurrence after current for the given frequency.
func Advance(current time.Time, frequency core.Frequency) (time.Time, error) {
	a, err := GetAdvancer(frequency)
	if err != nil {
		return time.Time{}, err
	}
	return a.Next(current), nil
}
