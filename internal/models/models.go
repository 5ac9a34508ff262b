package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNotOnboarded is returned by ChatState mutators before onboarding finished.
var ErrNotOnboarded = errors.New("chat is not onboarded")

// WeeksPerYear is the multiplier used to derive StartWeek from the age.
const WeeksPerYear = 52

var timeRx = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// TimeOfDay is a wall-clock time without a date, stored as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "H:MM" or "HH:MM" with hour 0-23 and minute 0-59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if !timeRx.MatchString(s) {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	parts := strings.SplitN(s, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *TimeOfDay) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*t = TimeOfDay{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan time of day: unsupported type %T", src)
	}
	if s == "" {
		*t = TimeOfDay{}
		return nil
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar date. The zero value means "not set".
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// DateOf drops the clock part of t, keeping the calendar date as seen in t's location.
func DateOf(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(dateLayout), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) parse(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	*d = Date{t}
	return nil
}

// ChatState is the per-chat progress record.
type ChatState struct {
	ChatID    int64     `db:"chat_id"    json:"chat_id"`
	Age       int       `db:"age"        json:"age"`
	MorningAt TimeOfDay `db:"morning_at" json:"morning_at"` // "HH:MM"
	EveningAt TimeOfDay `db:"evening_at" json:"evening_at"` // "HH:MM"
	StartDate Date      `db:"start_date" json:"start_date"` // zero -> onboarding not finished
	StartWeek int       `db:"start_week" json:"start_week"`
	StartDay  int       `db:"start_day"  json:"start_day"`
	DayGoal   string    `db:"day_goal"   json:"day_goal"` // "" -> not set
	Streak    int       `db:"streak"     json:"streak"`
	UpdatedAt int64     `db:"updated_at" json:"updated_at"`
}

// Onboarded reports whether the derived start fields are valid.
func (c *ChatState) Onboarded() bool {
	return c != nil && !c.StartDate.IsZero()
}

// Onboard overwrites the whole record. Re-onboarding starts over from scratch.
func (c *ChatState) Onboard(age int, morning, evening TimeOfDay, today Date) {
	c.Age = age
	c.MorningAt = morning
	c.EveningAt = evening
	c.StartDate = today
	c.StartWeek = age * WeeksPerYear
	c.StartDay = age * WeeksPerYear * 7
	c.DayGoal = ""
	c.Streak = 0
}

// SetDayGoal stores today's goal verbatim.
func (c *ChatState) SetDayGoal(goal string) error {
	if !c.Onboarded() {
		return ErrNotOnboarded
	}
	c.DayGoal = goal
	return nil
}

// SkipDay clears the goal and breaks the streak.
func (c *ChatState) SkipDay() error {
	if !c.Onboarded() {
		return ErrNotOnboarded
	}
	c.DayGoal = ""
	c.Streak = 0
	return nil
}

// CompleteGoal clears the goal and extends the streak by one.
func (c *ChatState) CompleteGoal() error {
	if !c.Onboarded() {
		return ErrNotOnboarded
	}
	c.DayGoal = ""
	c.Streak++
	return nil
}

// FailGoal clears the goal and breaks the streak.
func (c *ChatState) FailGoal() error {
	if !c.Onboarded() {
		return ErrNotOnboarded
	}
	c.DayGoal = ""
	c.Streak = 0
	return nil
}

// PromptKind tells which daily notification a prompt belongs to.
type PromptKind string

const (
	PromptMorning PromptKind = "morning"
	PromptEvening PromptKind = "evening"
)

// Prompt tracks a notification with choice buttons waiting for an answer.
type Prompt struct {
	Token      string     `db:"token"` // correlation token carried in callback data
	ChatID     int64      `db:"chat_id"`
	Kind       PromptKind `db:"kind"`
	MessageID  int        `db:"message_id"` // ID of the message carrying the buttons
	CreatedAt  int64      `db:"created_at"`
	AnsweredAt *int64     `db:"answered_at"` // nil -> still actionable
}
