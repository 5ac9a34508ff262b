// Package progress converts a chat's start date and counters into the
// current week/day of the lifespan horizon.
package progress

import (
	"math"
	"time"

	"life-weeks-bot/internal/models"
)

const (
	TotalWeeks = 4680
	TotalDays  = TotalWeeks * 7
)

// Progress is the position on the horizon at a given date.
type Progress struct {
	CurrentWeek int
	CurrentDay  int
	WeekPct     float64
	DayPct      float64
}

// WeeksBetween counts Monday-aligned week boundaries between d1 and d2.
// It is negative when d2 is before d1.
func WeeksBetween(d1, d2 time.Time) int {
	return daysBetween(monday(d1), monday(d2)) / 7
}

// Compute returns the progress of st at now. ok is false when the chat has
// not finished onboarding and the start counters are meaningless.
func Compute(st *models.ChatState, now time.Time) (p Progress, ok bool) {
	if !st.Onboarded() {
		return Progress{}, false
	}
	start := st.StartDate.Time

	p.CurrentWeek = st.StartWeek + WeeksBetween(start, now)
	p.CurrentDay = st.StartDay + daysBetween(start, now)
	p.WeekPct = round2(float64(p.CurrentWeek) / TotalWeeks * 100)
	p.DayPct = round2(float64(p.CurrentDay) / TotalDays * 100)
	return p, true
}

func monday(t time.Time) time.Time {
	d := models.DateOf(t).Time
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return d.AddDate(0, 0, -offset)
}

// daysBetween counts calendar days; both sides are reduced to dates first.
func daysBetween(d1, d2 time.Time) int {
	a := models.DateOf(d1).Time
	b := models.DateOf(d2).Time
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
