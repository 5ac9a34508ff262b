package messages

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"life-weeks-bot/internal/models"
	"life-weeks-bot/internal/progress"
)

const (
	AskAge          = "What's your age?"
	AskMorningTime  = "What's your preferred time for a morning notification?"
	AskEveningTime  = "What's your preferred time for an evening notification?"
	InvalidAge      = "Please send your age as a number from 0 to 99."
	InvalidTime     = "Please send the time as HH:MM, for example 07:30."
	AllSet          = "All set!"
	Canceled        = "Canceled!"
	NothingToCancel = "Nothing to cancel."
	MissingInfo     = "Missing information. Did you call /start?"

	FinishSetupFirst = "Please finish the setup first, or send /cancel."

	AskGoal          = "What is your day goal?"
	GoalSetFmt       = "Day goal is set to: %s"
	SkippingGoal     = "Skipping day goal!"
	EveningQuestion  = "Did you complete your day goal?\n%s"
	GoalCompletedFmt = "Well done! Streak: %d"
	GoalNotCompleted = "Streak reset. Tomorrow is a new day!"
	AlreadyAnswered  = "Already answered"

	UnknownCommandFmt = "Unknown command: %s"
	Help              = "/start - set up your age and notification times\n" +
		"/status - show your progress\n" +
		"/cancel - abort the current setup"

	NotSet = "Not set!"
)

// Button labels.
const (
	BtnSetGoal      = "Set goal"
	BtnSkip         = "Skip"
	BtnCompleted    = "Completed"
	BtnNotCompleted = "Not completed"
)

// FormatStatus renders the four-line status block. The field order is fixed.
func FormatStatus(p progress.Progress, dayGoal string, streak int) string {
	goal := dayGoal
	if goal == "" {
		goal = NotSet
	}
	return fmt.Sprintf("Weeks: %d/%d (%s%%)\nDays: %d/%d (%s%%)\nDay goal: %s\nStreak: %d",
		p.CurrentWeek, progress.TotalWeeks, formatPct(p.WeekPct),
		p.CurrentDay, progress.TotalDays, formatPct(p.DayPct),
		goal, streak,
	)
}

// Status computes and renders the status of st at now, or MissingInfo.
func Status(st *models.ChatState, now time.Time) string {
	p, ok := progress.Compute(st, now)
	if !ok {
		return MissingInfo
	}
	return FormatStatus(p, st.DayGoal, st.Streak)
}

// formatPct prints the shortest representation, keeping one decimal for whole numbers (50 -> "50.0").
func formatPct(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
