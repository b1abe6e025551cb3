package queue

import (
	"fmt"
	"time"
)

// Schedule computes the next run of a periodic task.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// intervalSchedule runs at a fixed interval after the previous run.
type intervalSchedule struct {
	every time.Duration
}

// Next returns from shifted by the interval.
func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// dailySchedule runs once per day at hour:minute.
type dailySchedule struct {
	hour   int
	minute int
}

// Next returns today's slot, or tomorrow's once today's has passed.
func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// weeklySchedule runs once per week on weekday at hour:minute.
type weeklySchedule struct {
	weekday time.Weekday
	hour    int
	minute  int
}

// Next returns the first slot on the target weekday strictly after from.
func (s weeklySchedule) Next(from time.Time) time.Time {
	// Modulo wraps targets earlier in the week into the following week.
	daysUntil := (int(s.weekday) - int(from.Weekday()) + 7) % 7

	next := from.AddDate(0, 0, daysUntil)
	next = time.Date(next.Year(), next.Month(), next.Day(), s.hour, s.minute, 0, 0, next.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s weeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
}

// EveryInterval runs at a fixed interval.
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// DailyAt runs once a day at hour:minute in the location of the reference time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// WeeklyOn runs once a week on weekday at hour:minute.
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return weeklySchedule{weekday: weekday, hour: hour, minute: minute}
}
